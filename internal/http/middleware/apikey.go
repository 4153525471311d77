package middleware

import (
	"crypto/subtle"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/keyauth"

	"pdf-generator/internal/config"
	"pdf-generator/internal/domain"
	"pdf-generator/internal/http/respond"
	"pdf-generator/internal/infra/logging"
)

const (
	// APIKeyHeader carries the shared secret.
	APIKeyHeader = "x-api-key"
	// APIKeyLocal is the fiber.Ctx local holding an accepted key.
	APIKeyLocal = "api_key"
)

// APIKeyGuard rejects requests without the configured shared secret. It is a
// pass-through when no secret is configured or the secret is the sentinel.
//
// A request whose header is the literal sentinel is accepted whatever the
// configured secret is. Each such request is logged at warn level.
func APIKeyGuard(cfg config.Config) fiber.Handler {
	if !cfg.GuardEnabled() {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	secret := []byte(cfg.Auth.APIKey)

	return keyauth.New(keyauth.Config{
		KeyLookup:  "header:" + APIKeyHeader,
		ContextKey: APIKeyLocal,
		Validator: func(c *fiber.Ctx, key string) (bool, error) {
			if subtle.ConstantTimeCompare([]byte(key), secret) == 1 {
				return true, nil
			}
			if key == config.SentinelDisabled {
				logging.Warn("API key sentinel bypass used", "path", c.Path(), "ip", c.IP())
				return true, nil
			}
			return false, domain.ErrInvalidAPIKey
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			// keyauth may call the handler with a nil error.
			if err == nil || !errors.Is(err, keyauth.ErrMissingOrMalformedAPIKey) {
				err = domain.ErrInvalidAPIKey
			} else {
				err = domain.ErrMissingAPIKey
			}
			logging.Warn("Request rejected", "path", c.Path(), "reason", err.Error())
			return respond.For(c).Unauthorized(err)
		},
	})
}
