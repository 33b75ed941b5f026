// Package redis caches account balances in Redis. Entries expire after
// balanceTTL and are deleted whenever a reconciliation commits. Each deletion
// also bumps a per-account generation counter; fills are a WATCH-guarded
// compare-and-set on that counter.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/fastprodman/rewardrecon/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const (
	balanceTTL = 5 * time.Minute
	// outlives any read in flight
	generationTTL = 24 * time.Hour

	keyPrefix    = "balance:"
	genKeyPrefix = "balance-gen:"
)

var (
	ErrCacheMiss = errors.New("balance not cached")
	// ErrStaleFill means the balance was invalidated after the caller read it.
	ErrStaleFill = errors.New("balance invalidated since read")
)

type Cache struct {
	client *redis.Client
}

// New connects and pings Redis.
func New(ctx context.Context, cfg config.RedisConfig) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Username:    cfg.User,
		Password:    cfg.Password,
		DB:          cfg.DB,
		MaxRetries:  5,
		DialTimeout: 10 * time.Second,
	})

	err := client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()

		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{client: client}, nil
}

func key(accountID string) string { return keyPrefix + accountID }

func genKey(accountID string) string { return genKeyPrefix + accountID }

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func readGeneration(ctx context.Context, g getter, accountID string) (int64, error) {
	gen, err := g.Get(ctx, genKey(accountID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("get generation %s: %w", accountID, err)
	}

	return gen, nil
}

func (c *Cache) GetBalance(ctx context.Context, accountID string) (int64, error) {
	val, err := c.client.Get(ctx, key(accountID)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrCacheMiss
	}

	if err != nil {
		return 0, fmt.Errorf("get %s: %w", accountID, err)
	}

	bal, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cached balance: %w", err)
	}

	return bal, nil
}

// Generation returns the account's invalidation counter, 0 if never bumped.
func (c *Cache) Generation(ctx context.Context, accountID string) (int64, error) {
	return readGeneration(ctx, c.client, accountID)
}

// SetBalance caches balance only if the generation still equals generation.
// Otherwise it returns ErrStaleFill and leaves the cache untouched.
func (c *Cache) SetBalance(ctx context.Context, accountID string, balance, generation int64) error {
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := readGeneration(ctx, tx, accountID)
		if err != nil {
			return err
		}

		if cur != generation {
			return ErrStaleFill
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key(accountID), balance, balanceTTL)
			return nil
		})

		return err
	}, genKey(accountID))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.TxFailedErr):
		return ErrStaleFill
	case errors.Is(err, ErrStaleFill):
		return err
	default:
		return fmt.Errorf("set %s: %w", accountID, err)
	}
}

func (c *Cache) InvalidateBalance(ctx context.Context, accountID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey(accountID))
		pipe.Expire(ctx, genKey(accountID), generationTTL)
		pipe.Del(ctx, key(accountID))

		return nil
	})
	if err != nil {
		return fmt.Errorf("invalidate %s: %w", accountID, err)
	}

	return nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
