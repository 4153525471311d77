package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/healthcheck"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/rs/xid"

	"pdf-generator/internal/config"
	"pdf-generator/internal/infra/logging"
)

// HealthPath is the liveness endpoint.
const HealthPath = "/ops/health"

// Register attaches the global middleware chain to the app.
func Register(app *fiber.App, cfg config.Config) {
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e any) {
			panicRecoveries.Inc()
			logging.Error("Handler panicked", "path", c.Path(), "panic", e)
		},
	}))

	app.Use(cors.New())

	app.Use(requestid.New(requestid.Config{
		Generator: func() string {
			return xid.New().String()
		},
	}))

	app.Use(healthcheck.New(healthcheck.Config{
		LivenessEndpoint: HealthPath,
	}))

	app.Use(Metrics())

	app.Use(func(c *fiber.Ctx) error {
		requestID := c.Get(fiber.HeaderXRequestID)
		if requestID == "" {
			requestID = c.GetRespHeader(fiber.HeaderXRequestID)
		}
		logging.Info("Incoming request", "method", c.Method(), "path", c.Path(), "request_id", requestID)
		return c.Next()
	})

	if cfg.GuardEnabled() {
		logging.Info("API key guard enabled")
	} else {
		logging.Warn("API key guard disabled; all requests are accepted")
	}
}
