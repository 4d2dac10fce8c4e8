package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boddenberg/txsim-bench-go/internal/domain"
	"github.com/boddenberg/txsim-bench-go/internal/infra/cache"
)

func newRedisCache(t *testing.T, ttl time.Duration) (*cache.Redis[domain.DatasetSummary], *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	c := cache.NewRedis[domain.DatasetSummary](client, "txsim:dataset:", ttl, zap.NewNop())
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedis_SetAndGet(t *testing.T) {
	c, mr := newRedisCache(t, time.Hour)

	summary := domain.DatasetSummary{ID: "abc", Transactions: 42, Frauds: 3}
	c.Set("abc", summary)

	assert.True(t, mr.Exists("txsim:dataset:abc"))
	got, ok := c.Get("abc")
	require.True(t, ok)
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, 42, got.Transactions)
	assert.Equal(t, 3, got.Frauds)
	require.NoError(t, c.Ping(context.Background()))
}

func TestRedis_ExpiryAndDelete(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)

	c.Set("a", domain.DatasetSummary{ID: "a"})
	c.Set("b", domain.DatasetSummary{ID: "b"})

	mr.FastForward(2 * time.Minute)
	_, ok := c.Get("a")
	assert.False(t, ok, "expected entry to expire")

	c.Set("b", domain.DatasetSummary{ID: "b"})
	c.Delete("b")
	_, ok = c.Get("b")
	assert.False(t, ok, "expected entry to be deleted")
}

func TestRedis_UndecodableEntryIsMiss(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)

	require.NoError(t, mr.Set("txsim:dataset:bad", "not-json"))
	_, ok := c.Get("bad")
	assert.False(t, ok)
}

func TestRedis_ServerDownIsMiss(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)
	mr.Close()

	c.Set("x", domain.DatasetSummary{ID: "x"})
	_, ok := c.Get("x")
	assert.False(t, ok)
}
