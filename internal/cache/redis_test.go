package cache

import (
	"context"
	"testing"
	"time"

	"ai-trading-assistant-go/internal/config"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRedisClient_Disabled(t *testing.T) {
	ctx := context.Background()
	c := NewRedisClient(config.Redis{}, zap.NewNop())

	assert.False(t, c.Enabled())
	assert.NoError(t, c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute))

	var out map[string]int
	assert.ErrorIs(t, c.Get(ctx, "k", &out), ErrMiss)
	assert.NoError(t, c.Delete(ctx, "k"))
	assert.NoError(t, c.Publish(ctx, "prices", "hello"))
	assert.Error(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestRedisClient_NilReceiver(t *testing.T) {
	var c *RedisClient
	var out string
	assert.False(t, c.Enabled())
	assert.ErrorIs(t, c.Get(context.Background(), "k", &out), ErrMiss)
}

func TestRedisClient_UnreachableServer(t *testing.T) {
	c := NewRedisClient(config.Redis{Addr: "127.0.0.1:1"}, zap.NewNop())
	assert.False(t, c.Enabled())
}
