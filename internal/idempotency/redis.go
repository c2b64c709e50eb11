package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "ledger:idem:"

// Redis stores payloads with SETNX so the first writer wins across API replicas.
// Records expire after ttl; zero keeps them forever.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// NewRedisClient connects and pings; an unreachable server is an error.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func (r *Redis) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	return b, true, nil
}

func (r *Redis) Store(ctx context.Context, key string, payload []byte) error {
	ok, err := r.client.SetNX(ctx, keyPrefix+key, payload, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("idempotency store: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}
