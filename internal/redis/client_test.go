package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pantry/internal/config"
)

func setupTestRedis(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, s
}

func TestNewAndPing(t *testing.T) {
	s := miniredis.RunT(t)
	cfg := &config.Config{Redis: config.RedisConfig{Addr: s.Addr()}}

	client := New(cfg)
	defer client.Close()

	require.NoError(t, Ping(context.Background(), client))

	s.Close()
	assert.Error(t, Ping(context.Background(), client))
}
