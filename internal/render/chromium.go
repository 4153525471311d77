package render

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"pdf-generator/internal/config"
	"pdf-generator/internal/infra/chrome"
	"pdf-generator/internal/infra/logging"
)

const (
	acquireTimeout = 5 * time.Second
	settleDelay    = 200 * time.Millisecond
)

// tabPool is the part of chrome.Pool the engine renders through.
type tabPool interface {
	Acquire(ctx context.Context) (*chrome.Tab, error)
	Release(tab *chrome.Tab, renderErr error)
	Restart() error
}

type printFunc func(ctx context.Context, html string, paper config.PaperSize, margin float64) ([]byte, error)

// ChromiumEngine renders through headless Chrome. With a positive pool size
// tabs are leased from a shared browser, otherwise every render starts its own.
type ChromiumEngine struct {
	cfg      config.Config
	printTab printFunc

	poolMu sync.Mutex
	pool   *chrome.Pool
}

// NewChromiumEngine returns an engine for cfg. The shared browser is started
// on first use.
func NewChromiumEngine(cfg config.Config) *ChromiumEngine {
	return &ChromiumEngine{cfg: cfg, printTab: renderInTab}
}

func (e *ChromiumEngine) getPool() (*chrome.Pool, error) {
	e.poolMu.Lock()
	defer e.poolMu.Unlock()

	if e.cfg.PDF.ChromePoolSize <= 0 {
		return nil, nil
	}
	if e.pool != nil {
		return e.pool, nil
	}
	pool, err := chrome.NewPool(e.cfg)
	if err != nil {
		return nil, err
	}
	e.pool = pool
	return e.pool, nil
}

// Render implements Engine.
func (e *ChromiumEngine) Render(ctx context.Context, html string) ([]byte, error) {
	paper, ok := e.cfg.Paper()
	if !ok {
		return nil, fmt.Errorf("default paper %q not configured", e.cfg.PDF.DefaultPaper)
	}

	pool, err := e.getPool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return renderWithNewBrowser(ctx, html, paper, e.cfg)
	}
	return e.renderPooled(ctx, pool, html, paper)
}

// renderPooled prints html in a leased tab. The pool is restarted and the
// render retried once only when the browser connection was lost while the
// tab itself was still live. A tab that hit its own deadline, or was torn
// down by another caller's restart, is not retried.
func (e *ChromiumEngine) renderPooled(ctx context.Context, pool tabPool, html string, paper config.PaperSize) ([]byte, error) {
	timeout := time.Duration(e.cfg.PDF.TimeoutSecs) * time.Second
	runOnce := func() (pdf []byte, sessionLost bool, err error) {
		acquireCtx, acquireCancel := context.WithTimeout(ctx, acquireTimeout)
		defer acquireCancel()

		tab, err := pool.Acquire(acquireCtx)
		if err != nil {
			return nil, false, fmt.Errorf("acquire chrome tab: %w", err)
		}

		tabCtx, cancel := context.WithTimeout(tab.Ctx, timeout)
		pdf, err = e.printTab(tabCtx, html, paper, e.cfg.PDF.Margin)
		sessionLost = err != nil && tabCtx.Err() == nil && chrome.IsSessionInterrupted(err)
		cancel()

		pool.Release(tab, err)
		return pdf, sessionLost, err
	}

	pdf, sessionLost, err := runOnce()
	if sessionLost && ctx.Err() == nil {
		logging.Warn("Chrome session interrupted; restarting pool and retrying once", "error", err)
		if err := pool.Restart(); err != nil {
			return nil, fmt.Errorf("restart chrome pool: %w", err)
		}
		pdf, _, err = runOnce()
	}
	return pdf, err
}

// Stats reports the tab pool state. A disabled pool reports zero values.
func (e *ChromiumEngine) Stats() (chrome.Stats, error) {
	pool, err := e.getPool()
	if err != nil {
		return chrome.Stats{}, err
	}
	if pool == nil {
		return chrome.Stats{
			PoolSizeConf: e.cfg.PDF.ChromePoolSize,
			TimeoutSecs:  e.cfg.PDF.TimeoutSecs,
		}, nil
	}
	return pool.Stats(e.cfg.PDF.TimeoutSecs), nil
}

// Close stops the shared browser, if one was started.
func (e *ChromiumEngine) Close() {
	e.poolMu.Lock()
	defer e.poolMu.Unlock()
	if e.pool != nil {
		e.pool.Close()
		e.pool = nil
	}
}

func renderWithNewBrowser(ctx context.Context, html string, paper config.PaperSize, cfg config.Config) ([]byte, error) {
	base := cfg.PDF.UserDataDir
	if base == "" {
		base = os.TempDir()
	}
	tmpDir, err := os.MkdirTemp(base, "chromedata-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chrome.AllocatorOptions(cfg, tmpDir)...)
	defer allocCancel()
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	chromeCtx, cancelTimeout := context.WithTimeout(chromeCtx, time.Duration(cfg.PDF.TimeoutSecs)*time.Second)
	defer cancelTimeout()

	return renderInTab(chromeCtx, html, paper, cfg.PDF.Margin)
}

// renderInTab loads html into an existing chromedp tab and prints it.
func renderInTab(ctx context.Context, html string, paper config.PaperSize, margin float64) ([]byte, error) {
	var pdf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frame, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frame.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			return waitForRenderReady(ctx, settleDelay)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paper.Width).
				WithPaperHeight(paper.Height).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdf, nil
}

// waitForRenderReady gives web fonts and late layout a moment to settle.
func waitForRenderReady(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
