// Package signature computes and verifies the keyed digests offerwall vendors
// attach to their postbacks.
//
// Every vendor mandates its own construction. For plain hash algorithms the
// digest is hash(field1 + field2 + ... + secret); for HMAC algorithms the secret
// is the key and the message is field1 + field2 + .... Output is lower-case hex.
package signature

import (
	"crypto/hmac"
	"crypto/md5" //nolint:gosec // vendor-mandated
	"crypto/sha1" //nolint:gosec // vendor-mandated
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

var ErrUnknownAlgorithm = errors.New("unknown digest algorithm")

type Algorithm string

const (
	MD5        Algorithm = "md5"
	SHA1       Algorithm = "sha1"
	SHA256     Algorithm = "sha256"
	HMACMD5    Algorithm = "hmac-md5"
	HMACSHA256 Algorithm = "hmac-sha256"
)

func ParseAlgorithm(s string) (Algorithm, error) {
	a := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case MD5, SHA1, SHA256, HMACMD5, HMACSHA256:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
	}
}

// UnmarshalText lets envconf load an Algorithm straight from the environment.
func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}

	*a = parsed

	return nil
}

func (a Algorithm) String() string { return string(a) }

// Field is one value of the vendor's digest input, in the vendor's order.
// An absent optional field contributes the empty string.
type Field struct {
	Name     string
	Value    string
	Optional bool
}

// Digest returns the hex digest of fields under alg, keyed by secret.
func Digest(alg Algorithm, fields []Field, secret string) (string, error) {
	var msg strings.Builder
	for _, f := range fields {
		msg.WriteString(f.Value)
	}

	var h hash.Hash

	switch alg {
	case MD5:
		h = md5.New() //nolint:gosec
		msg.WriteString(secret)
	case SHA1:
		h = sha1.New() //nolint:gosec
		msg.WriteString(secret)
	case SHA256:
		h = sha256.New()
		msg.WriteString(secret)
	case HMACMD5:
		h = hmac.New(md5.New, []byte(secret))
	case HMACSHA256:
		h = hmac.New(sha256.New, []byte(secret))
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
	}

	h.Write([]byte(msg.String()))

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify reports whether provided is the digest of fields under alg and secret.
// Malformed input (missing required field, empty secret or digest, unknown
// algorithm) is a verification failure, never a panic.
func Verify(alg Algorithm, fields []Field, secret, provided string) bool {
	if secret == "" || provided == "" {
		return false
	}

	for _, f := range fields {
		if !f.Optional && f.Value == "" {
			return false
		}
	}

	expected, err := Digest(alg, fields, secret)
	if err != nil {
		return false
	}

	got := strings.ToLower(strings.TrimSpace(provided))

	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// FieldNames is used for logging which inputs fed a failed verification.
func FieldNames(fields []Field) []string {
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		names = append(names, f.Name)
	}

	return names
}
