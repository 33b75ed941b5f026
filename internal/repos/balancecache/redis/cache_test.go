package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/fastprodman/rewardrecon/internal/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx, cancel := context.WithTimeout(t.Context(), 2*time.Second)
	defer cancel()

	c, err := New(ctx, config.RedisConfig{Addr: addr})
	if err != nil {
		t.Skipf("redis not reachable at %s: %v", addr, err)
	}

	t.Cleanup(func() { _ = c.Close() })

	return c
}

func TestCache_RoundTrip(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := t.Context()
	account := "acc-" + uuid.NewString()

	_, err := c.GetBalance(ctx, account)
	require.ErrorIs(t, err, ErrCacheMiss)

	gen, err := c.Generation(ctx, account)
	require.NoError(t, err)
	require.Zero(t, gen)

	require.NoError(t, c.SetBalance(ctx, account, 1250, gen))

	bal, err := c.GetBalance(ctx, account)
	require.NoError(t, err)
	require.Equal(t, int64(1250), bal)

	ttl, err := c.client.TTL(ctx, key(account)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0))
	require.LessOrEqual(t, ttl, balanceTTL)

	require.NoError(t, c.InvalidateBalance(ctx, account))

	_, err = c.GetBalance(ctx, account)
	require.ErrorIs(t, err, ErrCacheMiss)

	// deleting a missing key is not an error
	require.NoError(t, c.InvalidateBalance(ctx, account))
}

func TestCache_FillAfterInvalidationIsStale(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := t.Context()
	account := "acc-" + uuid.NewString()

	gen, err := c.Generation(ctx, account)
	require.NoError(t, err)

	// a commit lands between the reader's store read and its fill
	require.NoError(t, c.InvalidateBalance(ctx, account))

	err = c.SetBalance(ctx, account, 100, gen)
	require.ErrorIs(t, err, ErrStaleFill)

	_, err = c.GetBalance(ctx, account)
	require.ErrorIs(t, err, ErrCacheMiss)

	next, err := c.Generation(ctx, account)
	require.NoError(t, err)
	require.Equal(t, gen+1, next)

	require.NoError(t, c.SetBalance(ctx, account, 600, next))

	bal, err := c.GetBalance(ctx, account)
	require.NoError(t, err)
	require.Equal(t, int64(600), bal)

	ttl, err := c.client.TTL(ctx, genKey(account)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, balanceTTL)
}
