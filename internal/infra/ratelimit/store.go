package ratelimit

import (
	"github.com/gofiber/fiber/v2"
	memoryStorage "github.com/gofiber/storage/memory/v2"
	redisStorage "github.com/gofiber/storage/redis/v2"

	"pdf-generator/internal/infra/logging"
)

// RedisConfig selects the Redis database holding limiter counters.
type RedisConfig struct {
	Addr string
	DB   int
}

// NewStore returns Redis-backed limiter storage, or in-memory storage when
// Redis is not configured or unreachable.
func NewStore(cfg RedisConfig) (store fiber.Storage) {
	if cfg.Addr == "" {
		return memoryStorage.New()
	}

	// redis storage panics when the initial ping fails.
	defer func() {
		if r := recover(); r != nil {
			logging.Error("Redis limiter store init panicked, falling back to memory", "panic", r)
			store = memoryStorage.New()
		}
	}()
	store = redisStorage.New(redisStorage.Config{
		Addrs:    []string{cfg.Addr},
		Database: cfg.DB,
	})
	logging.Info("Using Redis for rate limiting", "addr", cfg.Addr, "db", cfg.DB)
	return store
}
