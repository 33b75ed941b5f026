package signature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDigest_KnownVectors(t *testing.T) {
	t.Parallel()

	fox := []Field{
		{Name: "head", Value: "The quick brown fox "},
		{Name: "tail", Value: "jumps over the lazy dog"},
	}

	tests := []struct {
		name   string
		alg    Algorithm
		fields []Field
		secret string
		want   string
	}{
		{
			name:   "md5_secret_appended",
			alg:    MD5,
			fields: []Field{{Name: "a", Value: "a"}, {Name: "b", Value: "b"}},
			secret: "c",
			want:   "900150983cd24fb0d6963f7d28e17f72",
		},
		{
			name:   "sha1_secret_appended",
			alg:    SHA1,
			fields: []Field{{Name: "a", Value: "ab"}},
			secret: "c",
			want:   "a9993e364706816aba3e25717850c26c9cd0d89d",
		},
		{
			name:   "sha256_secret_appended",
			alg:    SHA256,
			fields: []Field{{Name: "a", Value: "a"}, {Name: "empty", Value: "", Optional: true}, {Name: "b", Value: "b"}},
			secret: "c",
			want:   "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad",
		},
		{
			name:   "hmac_sha256",
			alg:    HMACSHA256,
			fields: fox,
			secret: "key",
			want:   "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		},
		{
			name:   "hmac_md5",
			alg:    HMACMD5,
			fields: fox,
			secret: "key",
			want:   "80070713463e7749b90c2dc24911e275",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Digest(tt.alg, tt.fields, tt.secret)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
			require.True(t, Verify(tt.alg, tt.fields, tt.secret, tt.want))
		})
	}
}

func TestDigest_UnknownAlgorithm(t *testing.T) {
	t.Parallel()

	_, err := Digest("crc32", []Field{{Name: "a", Value: "a"}}, "s")
	require.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestVerify_RejectsAnySingleAlteredField(t *testing.T) {
	t.Parallel()

	fields := []Field{
		{Name: "trans_id", Value: "tx1"},
		{Name: "user_id", Value: "u1"},
		{Name: "amount_usd", Value: "2.50"},
		{Name: "currency", Value: "USD"},
		{Name: "timestamp", Value: "1700000000"},
		{Name: "status", Value: "1"},
		{Name: "ip_click", Value: "", Optional: true},
	}

	for _, alg := range []Algorithm{MD5, SHA1, SHA256, HMACMD5, HMACSHA256} {
		digest, err := Digest(alg, fields, "s3cret")
		require.NoError(t, err)
		require.True(t, Verify(alg, fields, "s3cret", digest), "alg=%s", alg)
		require.True(t, Verify(alg, fields, "s3cret", strings.ToUpper(digest)), "uppercase hex alg=%s", alg)

		for i := range fields {
			altered := append([]Field(nil), fields...)
			altered[i].Value += "x"

			require.False(t, Verify(alg, altered, "s3cret", digest), "alg=%s field=%s", alg, fields[i].Name)
		}

		require.False(t, Verify(alg, fields, "other", digest), "wrong secret alg=%s", alg)
	}
}

func TestVerify_MalformedInput(t *testing.T) {
	t.Parallel()

	fields := []Field{{Name: "user_id", Value: "u1"}, {Name: "amount", Value: "1.00"}}
	digest, err := Digest(MD5, fields, "s")
	require.NoError(t, err)

	missing := []Field{{Name: "user_id", Value: ""}, {Name: "amount", Value: "1.00"}}

	require.False(t, Verify(MD5, fields, "", digest), "empty secret")
	require.False(t, Verify(MD5, fields, "s", ""), "empty digest")
	require.False(t, Verify(MD5, missing, "s", digest), "missing required field")
	require.False(t, Verify("nope", fields, "s", digest), "unknown algorithm")
	require.False(t, Verify(MD5, fields, "s", "not-hex"), "garbage digest")
}

func TestParseAlgorithm(t *testing.T) {
	t.Parallel()

	a, err := ParseAlgorithm(" HMAC-SHA256 ")
	require.NoError(t, err)
	require.Equal(t, HMACSHA256, a)

	var b Algorithm
	require.NoError(t, b.UnmarshalText([]byte("md5")))
	require.Equal(t, MD5, b)

	_, err = ParseAlgorithm("sha512")
	require.ErrorIs(t, err, ErrUnknownAlgorithm)
}
