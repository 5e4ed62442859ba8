// Package idempotency remembers which payment a client idempotency key
// produced, so retried registrations short-circuit before touching the
// database. The database unique index remains the source of truth.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "plazos:idempotency:"

func cacheKey(buyerID uuid.UUID, key string) string {
	return keyPrefix + buyerID.String() + ":" + key
}

// RedisCache shares idempotency keys between API instances.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to addr and checks it answers.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewRedisWithClient(client, ttl), nil
}

func NewRedisWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) Lookup(ctx context.Context, buyerID uuid.UUID, key string) (uuid.UUID, bool, error) {
	val, err := c.client.Get(ctx, cacheKey(buyerID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}

	if err != nil {
		return uuid.Nil, false, fmt.Errorf("looking up idempotency key: %w", err)
	}

	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("parsing cached payment id %q: %w", val, err)
	}

	return id, true, nil
}

// Remember stores the payment for key unless another one got there first.
func (c *RedisCache) Remember(ctx context.Context, buyerID uuid.UUID, key string, paymentID uuid.UUID) error {
	if err := c.client.SetNX(ctx, cacheKey(buyerID, key), paymentID.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("remembering idempotency key: %w", err)
	}

	return nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
