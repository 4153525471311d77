package render

import (
	"context"
	"fmt"
	"time"

	"pdf-generator/internal/domain"
	"pdf-generator/internal/infra/logging"
)

// Cache is an optional store for rendered output.
type Cache interface {
	Get(ctx context.Context, html string) ([]byte, bool)
	Set(ctx context.Context, html string, pdf []byte)
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCache serves repeated documents from c.
func WithCache(c Cache) Option {
	return func(a *Adapter) { a.cache = c }
}

// WithMaxPDFBytes rejects engine output larger than n bytes.
func WithMaxPDFBytes(n int) Option {
	return func(a *Adapter) { a.maxPDFBytes = n }
}

// Adapter makes a single, blocking render attempt and normalizes every
// engine failure, including panics, into domain.ErrRender.
type Adapter struct {
	engine      Engine
	cache       Cache
	maxPDFBytes int
}

// NewAdapter wraps engine.
func NewAdapter(engine Engine, opts ...Option) *Adapter {
	a := &Adapter{engine: engine}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Render returns the engine output unchanged, or domain.ErrRender. The cause
// is logged and never returned.
func (a *Adapter) Render(ctx context.Context, html string) (pdf []byte, err error) {
	if a.cache != nil {
		if cached, ok := a.cache.Get(ctx, html); ok {
			rendersTotal.WithLabelValues(outcomeCacheHit).Inc()
			return cached, nil
		}
	}

	start := time.Now()
	defer func() {
		renderDuration.Observe(time.Since(start).Seconds())
		if r := recover(); r != nil {
			logging.Error("PDF engine panicked", "panic", fmt.Sprint(r))
			rendersTotal.WithLabelValues(outcomePanic).Inc()
			pdf, err = nil, domain.ErrRender
		}
	}()

	if a.engine == nil {
		logging.Error("PDF generation failed", "error", "no rendering engine configured")
		rendersTotal.WithLabelValues(outcomeError).Inc()
		return nil, domain.ErrRender
	}

	pdf, err = a.engine.Render(ctx, html)
	if err != nil {
		logging.Error("PDF generation failed", "error", err)
		rendersTotal.WithLabelValues(outcomeError).Inc()
		return nil, domain.ErrRender
	}
	if a.maxPDFBytes > 0 && len(pdf) > a.maxPDFBytes {
		logging.Error("PDF generation failed", "error", "output exceeds allowed size", "bytes", len(pdf), "max_bytes", a.maxPDFBytes)
		rendersTotal.WithLabelValues(outcomeError).Inc()
		return nil, domain.ErrRender
	}

	rendersTotal.WithLabelValues(outcomeOK).Inc()
	if a.cache != nil {
		a.cache.Set(ctx, html, pdf)
	}
	return pdf, nil
}
