package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-generator/internal/config"
)

func newTestCache(t *testing.T, ttl time.Duration) (*PDFCache, *miniredis.Miniredis) {
	t.Helper()
	mrs := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mrs.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := config.Default()
	cfg.Cache.PDFCacheEnabled = true
	cfg.Cache.PDFCacheTTL = ttl
	c := NewPDFCache(rdb, cfg)
	require.NotNil(t, c)
	return c, mrs
}

func TestNewPDFCache_Disabled(t *testing.T) {
	cfg := config.Default()
	assert.Nil(t, NewPDFCache(nil, cfg))

	mrs := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mrs.Addr()})
	defer rdb.Close()
	cfg.Cache.PDFCacheEnabled = false
	assert.Nil(t, NewPDFCache(rdb, cfg))
}

func TestPDFCache_SetGet(t *testing.T) {
	c, mrs := newTestCache(t, 2*time.Minute)
	ctx := context.Background()

	_, ok := c.Get(ctx, "<h1>Hi</h1>")
	assert.False(t, ok)

	c.Set(ctx, "<h1>Hi</h1>", []byte("%PDF-1.4 data"))

	got, ok := c.Get(ctx, "<h1>Hi</h1>")
	require.True(t, ok)
	assert.Equal(t, []byte("%PDF-1.4 data"), got)
	assert.Equal(t, 2*time.Minute, mrs.TTL(c.Key("<h1>Hi</h1>")))

	_, ok = c.Get(ctx, "<h1>Other</h1>")
	assert.False(t, ok)
}

func TestPDFCache_DefaultTTL(t *testing.T) {
	c, mrs := newTestCache(t, 0)
	c.Set(context.Background(), "x", []byte("pdf"))
	assert.Equal(t, time.Minute, mrs.TTL(c.Key("x")))
}

func TestPDFCache_KeyDependsOnSettings(t *testing.T) {
	a, _ := newTestCache(t, time.Minute)
	b := *a
	b.variant = "LETTER"

	assert.Equal(t, a.Key("<p/>"), a.Key("<p/>"))
	assert.NotEqual(t, a.Key("<p/>"), b.Key("<p/>"))
	assert.Contains(t, a.Key("<p/>"), keyPrefix)
}

func TestPDFCache_RedisDownIsAMiss(t *testing.T) {
	c, mrs := newTestCache(t, time.Minute)
	mrs.Close()

	c.Set(context.Background(), "x", []byte("pdf"))
	_, ok := c.Get(context.Background(), "x")
	assert.False(t, ok)
}
