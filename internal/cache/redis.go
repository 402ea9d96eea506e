package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tweetpulse:"

// Redis shares the chart cache between several dashboard processes.
type Redis struct {
	cli *redis.Client
	ttl time.Duration
}

func NewRedis(addr string, db int, ttl time.Duration) *Redis {
	cli := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	return &Redis{cli: cli, ttl: ttl}
}

// Ping checks the server is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.cli.Ping(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.cli.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	return r.cli.Set(ctx, redisKeyPrefix+key, value, r.ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.cli.Del(ctx, redisKeyPrefix+key).Err()
}

func (r *Redis) Close() error { return r.cli.Close() }
