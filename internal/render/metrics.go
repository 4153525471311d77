package render

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfgen_renders_total",
			Help: "Total number of PDF renders by outcome",
		},
		[]string{"outcome"},
	)

	renderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pdfgen_render_duration_seconds",
			Help:    "Time spent in the rendering engine",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
)

const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomePanic    = "panic"
	outcomeCacheHit = "cache_hit"
)
