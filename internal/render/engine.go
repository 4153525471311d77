// Package render turns validated HTML into PDF bytes. The Engine does the
// actual work; Adapter wraps it so callers only ever see domain.ErrRender.
package render

import (
	"context"
	"errors"
)

// Engine renders an HTML document into PDF bytes.
type Engine interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// EngineFunc adapts a function to an Engine.
type EngineFunc func(ctx context.Context, html string) ([]byte, error)

func (f EngineFunc) Render(ctx context.Context, html string) ([]byte, error) {
	if f == nil {
		return nil, errors.New("render engine func is nil")
	}
	return f(ctx, html)
}
