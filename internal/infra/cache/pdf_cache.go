package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"pdf-generator/internal/config"
	"pdf-generator/internal/infra/logging"
)

const (
	keyPrefix  = "pdfcache:"
	opTimeout  = time.Second
	defaultTTL = time.Minute
)

// PDFCache stores rendered PDFs in Redis keyed by the HTML and the render
// settings that affect the output.
type PDFCache struct {
	rdb     *redis.Client
	ttl     time.Duration
	variant string
}

// NewPDFCache returns nil when caching is disabled or rdb is nil.
func NewPDFCache(rdb *redis.Client, cfg config.Config) *PDFCache {
	if rdb == nil || !cfg.Cache.PDFCacheEnabled {
		return nil
	}
	paper, _ := cfg.Paper()
	variant := cfg.PDF.DefaultPaper +
		strconv.FormatFloat(paper.Width, 'f', 2, 64) + "x" +
		strconv.FormatFloat(paper.Height, 'f', 2, 64) + "@" +
		strconv.FormatFloat(cfg.PDF.Margin, 'f', 2, 64)
	return &PDFCache{rdb: rdb, ttl: cfg.Cache.PDFCacheTTL, variant: variant}
}

// Key computes the Redis key for html.
func (c *PDFCache) Key(html string) string {
	h := sha256.New()
	h.Write([]byte(html))
	h.Write([]byte(c.variant))
	return keyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached PDF. Misses and Redis failures both report false;
// failures are logged.
func (c *PDFCache) Get(ctx context.Context, html string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := c.Key(html)
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logging.Warn("Redis read failed", "error", err)
		return nil, false
	}
	logging.Debug("PDF cache hit", "key", key)
	return data, true
}

// Set stores pdf for html. A non-positive TTL falls back to one minute.
func (c *PDFCache) Set(ctx context.Context, html string, pdf []byte) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ttl := c.ttl
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if err := c.rdb.Set(ctx, c.Key(html), pdf, ttl).Err(); err != nil {
		logging.Warn("Redis write failed", "error", err)
	}
}
