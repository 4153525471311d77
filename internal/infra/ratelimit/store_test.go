package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStore_AlwaysReturnsStorage(t *testing.T) {
	if s := NewStore(RedisConfig{}); s == nil {
		t.Fatalf("expected non-nil memory store when redis addr empty")
	}

	if s := NewStore(RedisConfig{Addr: "127.0.0.1:1", DB: 0}); s == nil {
		t.Fatalf("expected non-nil store even with unreachable redis")
	}
}

func TestNewStore_UsesRedisWhenReachable(t *testing.T) {
	mrs := miniredis.RunT(t)

	s := NewStore(RedisConfig{Addr: mrs.Addr()})
	require.NotNil(t, s)
	defer s.Close()

	require.NoError(t, s.Set("limiter:k", []byte("1"), time.Minute))
	assert.True(t, mrs.Exists("limiter:k"), "counter should land in redis")
}
