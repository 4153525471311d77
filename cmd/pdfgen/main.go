package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"pdf-generator/internal/config"
	"pdf-generator/internal/http/server"
	"pdf-generator/internal/infra/logging"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "pdfgen",
		Usage: "HTTP service rendering HTML documents to PDF",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to the YAML configuration file",
				Sources: cli.EnvVars("CONFIG_PATH"),
				Value:   "config.yaml",
			},
			&cli.StringFlag{
				Name:  "port",
				Usage: "Listen port, overrides server.port and PDFGS_PORT",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Minimum log level, overrides logger.level",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := config.LoadFrom(cmd.String("config"))
			if p := cmd.String("port"); p != "" {
				cfg = cfg.WithPort(p)
			}
			if l := cmd.String("log-level"); l != "" {
				cfg.Logger.Level = l
			}
			return serve(cfg)
		},
	}
}

// serve runs the HTTP server until a termination signal arrives or the
// listener fails.
func serve(cfg config.Config) error {
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	logging.SetLogLevel(cfg.Logger.Level)

	var rdb *redis.Client
	if cfg.Cache.RedisHost != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.PDFCacheDB,
		})
		defer rdb.Close()
	}

	app := server.New(server.Deps{Config: cfg, Redis: rdb})

	idleConnsClosed := make(chan struct{})
	if err := startServer(app, cfg, idleConnsClosed); err != nil {
		return err
	}
	<-idleConnsClosed
	return nil
}

// startServer starts the Fiber app and listens for shutdown signals. It
// returns the listen error if the server cannot start.
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) error {
	listenErr := make(chan error, 1)
	go func() {
		logging.Info("Server listening", "addr", cfg.Addr(), "guard", cfg.GuardEnabled(), "testing", cfg.Server.Testing)
		if err := app.Listen(cfg.Addr()); err != nil {
			listenErr <- err
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigint)

	select {
	case err := <-listenErr:
		logging.Error("Server error", "error", err)
		_ = app.Shutdown()
		return fmt.Errorf("listen on %s: %w", cfg.Addr(), err)
	case <-sigint:
	}

	logging.Warn("Shutdown signal received, closing server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
	return nil
}
