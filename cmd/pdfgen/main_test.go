package main

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"pdf-generator/internal/config"
)

func TestStartServer_GracefulShutdownOnSignal(t *testing.T) {
	app := fiber.New()
	var cfg config.Config
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = ":0"

	idleConnsClosed := make(chan struct{})
	go func() { _ = startServer(app, cfg, idleConnsClosed) }()

	time.Sleep(100 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("failed to send SIGTERM: %v", err)
	}

	select {
	case <-idleConnsClosed:
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for graceful shutdown")
	}
}

func TestStartServer_ReturnsListenError(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	defer busy.Close()

	var cfg config.Config
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = ":" + strconv.Itoa(busy.Addr().(*net.TCPAddr).Port)

	done := make(chan error, 1)
	go func() { done <- startServer(fiber.New(), cfg, make(chan struct{})) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected listen error for a port in use")
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("startServer kept waiting after the listener failed")
	}
}

func TestCommand_UsesConfigAndShutsDown(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "cfg.yaml")
	err := os.WriteFile(cfgPath, []byte(`
server:
  host: "127.0.0.1"
  port: ":0"
  prefork: false
limits:
  max_html_bytes: 1048576
  max_pdf_bytes: 1048576
logger:
  file: "`+filepath.Join(t.TempDir(), `pdfgen.log`)+`"
  level: "info"
  max_size_mb: 1
  max_backups: 1
  max_age_days: 1
  compress: false
cache:
  pdf_cache_enabled: false
  pdf_cache_ttl: 1m
  redis_host: ""
pdf:
  default_paper: "A4"
  timeout_secs: 1
  chrome_no_sandbox: true
  chrome_pool_size: 0
`), 0o644)
	if err != nil {
		t.Fatalf("write cfg: %v", err)
	}

	t.Setenv("CHROME_BIN", "/bin/true")

	done := make(chan error, 1)
	go func() {
		done <- newCommand().Run(context.Background(), []string{"pdfgen", "--config", cfgPath, "--log-level", "warn"})
	}()

	time.Sleep(200 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatalf("signal command: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("command returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for command to exit")
	}
}
