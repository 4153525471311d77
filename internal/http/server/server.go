package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"pdf-generator/internal/config"
	"pdf-generator/internal/http/handlers"
	"pdf-generator/internal/http/middleware"
	"pdf-generator/internal/http/respond"
	"pdf-generator/internal/infra/cache"
	"pdf-generator/internal/infra/logging"
	"pdf-generator/internal/infra/ratelimit"
	"pdf-generator/internal/render"
)

// Deps are the collaborators of the HTTP server. Only Config is required.
type Deps struct {
	Config config.Config
	// Redis backs the PDF cache. nil disables caching.
	Redis *redis.Client
	// Engine renders documents. nil selects the headless Chrome engine.
	Engine render.Engine
	// Store holds rate limiter counters. nil selects one from the config.
	Store fiber.Storage
}

// closer is implemented by engines that own external processes.
type closer interface {
	Close()
}

// New creates and configures the Fiber app.
func New(deps Deps) *fiber.App {
	cfg := deps.Config

	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Limits.MaxHTMLBytes,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		ErrorHandler:          errorHandler,
	})

	middleware.Register(app, cfg)
	registerRoutes(app, deps)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

func registerRoutes(app *fiber.App, deps Deps) {
	cfg := deps.Config

	engine := deps.Engine
	var stats handlers.StatsProvider
	if engine == nil {
		chromium := render.NewChromiumEngine(cfg)
		engine, stats = chromium, chromium
	} else if sp, ok := engine.(handlers.StatsProvider); ok {
		stats = sp
	}
	if c, ok := engine.(closer); ok {
		app.Hooks().OnShutdown(func() error {
			c.Close()
			return nil
		})
	}

	opts := []render.Option{render.WithMaxPDFBytes(cfg.Limits.MaxPDFBytes)}
	// NewPDFCache returns a typed nil; only wrap a real cache.
	if pdfCache := cache.NewPDFCache(deps.Redis, cfg); pdfCache != nil {
		opts = append(opts, render.WithCache(pdfCache))
		logging.Info("PDF cache enabled", "ttl", cfg.Cache.PDFCacheTTL.String())
	}
	svc := handlers.NewPDFService(render.NewAdapter(engine, opts...), stats)

	store := deps.Store
	if store == nil && cfg.RateLimiter.UserLimit > 0 {
		store = ratelimit.NewStore(ratelimit.RedisConfig{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.RateLimitDB,
		})
	}
	guard := middleware.APIKeyGuard(cfg)
	limit := middleware.UserRateLimit(cfg, store)

	app.Get("/", handlers.Index)
	app.Post("/pdf", guard, limit, svc.HandleConversion)

	if cfg.Server.Testing {
		logging.Warn("Test routes enabled")
		app.Get("/test", handlers.TestForm)
		app.Post("/test-api-key", guard, handlers.TestAPIKey)
	}

	ops := app.Group("/ops")
	ops.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	ops.Get("/monitor", monitor.New())
	ops.Get("/chrome/stats", svc.HandleChromeStats)
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		msg = e.Message
	}

	if code >= fiber.StatusInternalServerError {
		logging.Error("Request failed", "path", c.Path(), "status", code, "error", err)
	} else {
		logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)
	}

	return respond.Error(c, code, msg)
}
