// Package cache wraps an optional Redis client. A nil or disconnected client turns every call into a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-trading-assistant-go/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrMiss is returned by Get when the key is absent or caching is disabled.
var ErrMiss = errors.New("cache miss")

// Cache is the subset of the cache the services rely on.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Publish(ctx context.Context, channel string, message interface{}) error
}

// RedisClient wraps redis.Client
type RedisClient struct {
	client *redis.Client
	logger *zap.Logger
}

var _ Cache = (*RedisClient)(nil)

// NewRedisClient connects to Redis. An empty address, or a failed ping, yields a disabled client.
func NewRedisClient(cfg config.Redis, logger *zap.Logger) *RedisClient {
	l := logger.Named("cache")
	if cfg.Addr == "" {
		l.Info("Redis address not configured, caching disabled")
		return &RedisClient{logger: l}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		l.Warn("Failed to connect to Redis, caching disabled", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = client.Close()
		return &RedisClient{logger: l}
	}

	l.Info("Connected to Redis", zap.String("addr", cfg.Addr))
	return &RedisClient{client: client, logger: l}
}

// Enabled reports whether a live Redis connection backs the cache.
func (r *RedisClient) Enabled() bool {
	return r != nil && r.client != nil
}

// Set stores a value in Redis with expiration
func (r *RedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if !r.Enabled() {
		return nil
	}

	jsonBytes, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache value for %s: %w", key, err)
	}

	return r.client.Set(ctx, key, jsonBytes, expiration).Err()
}

// Get retrieves a value from Redis
func (r *RedisClient) Get(ctx context.Context, key string, dest interface{}) error {
	if !r.Enabled() {
		return ErrMiss
	}

	val, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// Delete removes a key from Redis
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	if !r.Enabled() {
		return nil
	}
	return r.client.Del(ctx, key).Err()
}

// Publish sends a message to a channel
func (r *RedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	if !r.Enabled() {
		return nil
	}

	jsonBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return r.client.Publish(ctx, channel, jsonBytes).Err()
}

// Ping checks the connection. A disabled cache reports an error.
func (r *RedisClient) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return errors.New("redis client not initialized")
	}
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	if r.Enabled() {
		return r.client.Close()
	}
	return nil
}
