package middleware

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"pdf-generator/internal/config"
	"pdf-generator/internal/http/respond"
	"pdf-generator/internal/infra/logging"
)

// UserRateLimit limits anonymous requests per client (IP and User-Agent).
// Requests authenticated with the configured secret are not limited.
// A zero user limit disables it.
func UserRateLimit(cfg config.Config, store fiber.Storage) fiber.Handler {
	if cfg.RateLimiter.UserLimit <= 0 {
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	userLimiter := limiter.New(limiter.Config{
		Max:               cfg.RateLimiter.UserLimit,
		Expiration:        cfg.RateLimiter.Interval,
		LimiterMiddleware: limiter.SlidingWindow{},
		Storage:           store,
		KeyGenerator:      clientKey,
		LimitReached: func(c *fiber.Ctx) error {
			rateLimitRejects.Inc()
			logging.Warn("Rate limit exceeded", "user", clientKey(c), "path", c.Path())
			return respond.Error(c, fiber.StatusTooManyRequests, "Too Many Requests")
		},
	})

	return func(c *fiber.Ctx) error {
		if key, ok := c.Locals(APIKeyLocal).(string); ok && key == cfg.Auth.APIKey {
			return c.Next()
		}
		return userLimiter(c)
	}
}

func clientKey(c *fiber.Ctx) string {
	sum := sha256.Sum256([]byte(c.IP() + c.Get(fiber.HeaderUserAgent)))
	return hex.EncodeToString(sum[:])
}
