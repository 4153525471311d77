package chrome

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"pdf-generator/internal/config"
	"pdf-generator/internal/infra/logging"
)

var (
	// ErrPoolDisabled is returned by NewPool when the configured size is not positive.
	ErrPoolDisabled = errors.New("chrome pool disabled")
	// ErrPoolClosed is returned when acquiring from or restarting a closed pool.
	ErrPoolClosed = errors.New("chrome pool closed")
)

// Tab is a browser tab leased from the pool. Ctx is a chromedp context.
type Tab struct {
	Ctx    context.Context
	cancel context.CancelFunc
}

// Pool shares one headless Chrome process between a bounded number of tabs.
type Pool struct {
	mu  sync.Mutex
	cfg config.Config

	sem        chan struct{}
	profileDir string

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	closed      bool
	restarts    int
	lastRestart time.Time

	// launch starts the browser behind browserCtx. nil means launchChrome.
	launch func(ctx context.Context) error
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	Enabled      bool      `json:"enabled"`
	Capacity     int       `json:"capacity"`
	Idle         int       `json:"idle"`
	InUse        int       `json:"in_use"`
	PoolSizeConf int       `json:"pool_size_conf"`
	ProfileDir   string    `json:"profile_dir"`
	TimeoutSecs  int       `json:"timeout_secs"`
	Restarts     int       `json:"restarts"`
	LastRestart  time.Time `json:"last_restart"`
}

// NewPool starts one Chrome process and prepares cfg.PDF.ChromePoolSize tab
// slots on it. Every tab leased from the pool shares that process.
func NewPool(cfg config.Config) (*Pool, error) {
	return newPool(cfg, nil)
}

func newPool(cfg config.Config, launch func(context.Context) error) (*Pool, error) {
	size := cfg.PDF.ChromePoolSize
	if size <= 0 {
		return nil, ErrPoolDisabled
	}

	p := &Pool{
		cfg:    cfg,
		sem:    make(chan struct{}, size),
		launch: launch,
	}
	if err := p.startBrowser(); err != nil {
		return nil, err
	}
	for i := 0; i < size; i++ {
		p.sem <- struct{}{}
	}

	logging.Info("Chrome pool ready", "size", size, "profile_dir", p.profileDir)
	return p, nil
}

// startBrowser must be called with mu held or before the pool is shared.
func (p *Pool) startBrowser() error {
	dir, err := createProfileDir(p.cfg)
	if err != nil {
		return fmt.Errorf("create chrome profile dir: %w", err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), AllocatorOptions(p.cfg, dir)...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	launch := p.launch
	if launch == nil {
		launch = launchChrome
	}
	// No deadline: the browser outlives every render.
	if err := launch(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		_ = os.RemoveAll(dir)
		return fmt.Errorf("start chrome: %w", err)
	}

	p.profileDir = dir
	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel
	return nil
}

// launchChrome runs an empty action list, which makes chromedp start the
// process and attach the first target to ctx.
func launchChrome(ctx context.Context) error {
	return chromedp.Run(ctx)
}

func (p *Pool) stopBrowser() {
	if p.browserCancel != nil {
		p.browserCancel()
		p.browserCancel = nil
	}
	if p.allocCancel != nil {
		p.allocCancel()
		p.allocCancel = nil
	}
	if p.profileDir != "" {
		_ = os.RemoveAll(p.profileDir)
		p.profileDir = ""
	}
	p.browserCtx = nil
}

// Acquire blocks until a tab is free, ctx is done or the pool is closed.
func (p *Pool) Acquire(ctx context.Context) (*Tab, error) {
	p.mu.Lock()
	closed, sem := p.closed, p.sem
	p.mu.Unlock()
	if closed || sem == nil {
		return nil, ErrPoolClosed
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-sem:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.browserCtx == nil {
		sem <- struct{}{}
		return nil, ErrPoolClosed
	}
	tabCtx, cancel := chromedp.NewContext(p.browserCtx)
	return &Tab{Ctx: tabCtx, cancel: cancel}, nil
}

// Release closes the tab and returns its slot. renderErr is logged when the
// tab failed in a way that suggests the browser is gone.
func (p *Pool) Release(tab *Tab, renderErr error) {
	if tab != nil && tab.cancel != nil {
		tab.cancel()
	}
	if IsSessionInterrupted(renderErr) {
		logging.Warn("Chrome tab released after interrupted session", "error", renderErr)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.sem == nil {
		return
	}
	select {
	case p.sem <- struct{}{}:
	default:
	}
}

// Restart replaces the browser process and its profile directory. Leased tabs
// keep their slot and fail on their own.
func (p *Pool) Restart() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}

	p.stopBrowser()
	if err := p.startBrowser(); err != nil {
		return err
	}
	p.restarts++
	p.lastRestart = time.Now()
	logging.Warn("Chrome pool restarted", "restarts", p.restarts, "profile_dir", p.profileDir)
	return nil
}

// Stats reports capacity and usage. timeoutSecs is echoed for the stats endpoint.
func (p *Pool) Stats(timeoutSecs int) Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		PoolSizeConf: p.cfg.PDF.ChromePoolSize,
		ProfileDir:   p.profileDir,
		TimeoutSecs:  timeoutSecs,
		Restarts:     p.restarts,
		LastRestart:  p.lastRestart,
	}
	if p.closed || p.sem == nil {
		return s
	}
	s.Enabled = true
	s.Capacity = cap(p.sem)
	s.Idle = len(p.sem)
	s.InUse = s.Capacity - s.Idle
	return s
}

// Close stops the browser. It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.stopBrowser()
}

// AllocatorOptions builds the Chrome flags for a profile directory.
func AllocatorOptions(cfg config.Config, profileDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserDataDir(profileDir),
		// Force software rendering and avoid Vulkan/ANGLE issues in minimal container environments.
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-gpu-compositing", true),
		chromedp.Flag("disable-features", "Vulkan,UseSkiaRenderer"),
		chromedp.Flag("use-gl", "swiftshader"),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if cfg.PDF.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.PDF.ChromePath))
	}
	if cfg.PDF.ChromeNoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

func createProfileDir(cfg config.Config) (string, error) {
	base := cfg.PDF.UserDataDir
	if base == "" {
		base = os.TempDir()
	}
	if err := os.MkdirAll(base, 0o700); err != nil {
		return "", err
	}
	return os.MkdirTemp(base, "chrome-profile-*")
}

// IsSessionInterrupted reports errors caused by the browser connection going
// away rather than by the document being rendered. Context cancellation and
// deadlines are not session loss.
func IsSessionInterrupted(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"target closed", "session closed", "websocket", "connection reset", "broken pipe", "invalid context"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
