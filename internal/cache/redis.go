package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fardelhq/shop/internal/config"
)

// Redis adapts go-redis to the Cache interface.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr, password string, db int) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// New picks the backend from CACHE_TYPE.
func New(cfg *config.Config) (Cache, error) {
	switch cfg.CACHE_TYPE {
	case "redis":
		return NewRedis(cfg.REDIS_ADDR, cfg.REDIS_PASSWORD, cfg.REDIS_DB)
	case "simple", "":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown CACHE_TYPE %q", cfg.CACHE_TYPE)
	}
}
