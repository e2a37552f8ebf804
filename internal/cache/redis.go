package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Options configures the Redis connection.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	DB       int
}

// RedisClient implements Client on top of go-redis.
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient builds a client for the given options. It does not dial; the first
// command establishes the connection.
func NewRedisClient(options Options) (*RedisClient, error) {
	redisOptions, err := redis.ParseURL(fmt.Sprintf("redis://%s:%d/%d", options.Host, options.Port, options.DB))
	if err != nil {
		return nil, fmt.Errorf("invalid redis options: %w", err)
	}

	redisOptions.Username = options.Username
	redisOptions.Password = options.Password

	return &RedisClient{client: redis.NewClient(redisOptions)}, nil
}

// Get implements Client.
func (r *RedisClient) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, unavailable(err)
	}
	return value, true, nil
}

// Set implements Client.
func (r *RedisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Incr implements Client.
func (r *RedisClient) Incr(ctx context.Context, key string) (int64, error) {
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

// Delete implements Client.
func (r *RedisClient) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// DeleteMatching implements Client using SCAN so large keyspaces are not blocked.
func (r *RedisClient) DeleteMatching(ctx context.Context, pattern string) error {
	var batch []string

	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == 100 {
			if err := r.Delete(ctx, batch...); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return unavailable(err)
	}

	return r.Delete(ctx, batch...)
}

// Ping checks connectivity.
func (r *RedisClient) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// Close releases the connection pool.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
