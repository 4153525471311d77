package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SentinelDisabled is the API key value that turns the guard off.
const SentinelDisabled = "none"

// PaperSize describes page dimensions in inches.
type PaperSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Config is the process-wide configuration. It is built once at startup and
// passed by value afterwards.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
		// Testing enables the diagnostic /test routes.
		Testing      bool          `yaml:"testing"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
	} `yaml:"server"`

	Auth struct {
		APIKey string `yaml:"api_key"`
	} `yaml:"auth"`

	Limits struct {
		MaxHTMLBytes int `yaml:"max_html_bytes"`
		MaxPDFBytes  int `yaml:"max_pdf_bytes"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		PDFCacheEnabled bool          `yaml:"pdf_cache_enabled"`
		PDFCacheTTL     time.Duration `yaml:"pdf_cache_ttl"`
		RedisHost       string        `yaml:"redis_host"`
		RateLimitDB     int           `yaml:"redis_rate_db"`
		PDFCacheDB      int           `yaml:"redis_pdf_db"`
	} `yaml:"cache"`

	RateLimiter struct {
		// UserLimit caps anonymous requests per client per Interval. 0 disables it.
		UserLimit int           `yaml:"user_limit"`
		Interval  time.Duration `yaml:"interval"`
	} `yaml:"rate_limiter"`

	PDF struct {
		DefaultPaper    string               `yaml:"default_paper"`
		PaperSizes      map[string]PaperSize `yaml:"paper_sizes"`
		Margin          float64              `yaml:"margin"`
		TimeoutSecs     int                  `yaml:"timeout_secs"`
		ChromePath      string               `yaml:"chrome_path"`
		ChromeNoSandbox bool                 `yaml:"chrome_no_sandbox"`
		// ChromePoolSize is the number of reusable tabs. 0 starts a browser per
		// request, a negative value sizes the pool from the CPU count.
		ChromePoolSize int    `yaml:"chrome_pool_size"`
		UserDataDir    string `yaml:"user_data_dir"`
	} `yaml:"pdf"`
}

// GuardEnabled reports whether requests must carry the shared API key.
func (c Config) GuardEnabled() bool {
	return c.Auth.APIKey != "" && c.Auth.APIKey != SentinelDisabled
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return c.Server.Host + c.Server.Port
}

// Paper returns the configured default paper size.
func (c Config) Paper() (PaperSize, bool) {
	p, ok := c.PDF.PaperSizes[strings.ToUpper(c.PDF.DefaultPaper)]
	return p, ok
}

// Default returns a configuration usable without any file.
func Default() Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = ":9898"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 60 * time.Second
	cfg.Limits.MaxHTMLBytes = 5 * 1024 * 1024
	cfg.Limits.MaxPDFBytes = 50 * 1024 * 1024
	cfg.Logger.Level = "info"
	cfg.Logger.MaxSizeMB = 10
	cfg.Logger.MaxBackups = 3
	cfg.Logger.MaxAgeDays = 7
	cfg.Cache.PDFCacheTTL = 10 * time.Minute
	cfg.RateLimiter.Interval = time.Minute
	cfg.PDF.DefaultPaper = "A4"
	cfg.PDF.PaperSizes = map[string]PaperSize{
		"A3":     {Width: 11.69, Height: 16.54},
		"A4":     {Width: 8.27, Height: 11.69},
		"A5":     {Width: 5.83, Height: 8.27},
		"LETTER": {Width: 8.5, Height: 11},
		"LEGAL":  {Width: 8.5, Height: 14},
	}
	cfg.PDF.Margin = 0.4
	cfg.PDF.TimeoutSecs = 30
	return cfg
}

// Load reads the file named by CONFIG_PATH, or config.yaml when unset.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads the YAML file at path on top of Default, applies environment
// overrides and validates the result. A missing file is not an error; an
// unreadable or invalid one panics.
func LoadFrom(path string) Config {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			panic(fmt.Errorf("parse config %s: %w", path, err))
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		panic(fmt.Errorf("read config %s: %w", path, err))
	}

	applyEnv(&cfg)
	normalize(&cfg)

	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	return cfg
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("PDFGS_X_API_KEY"); ok {
		cfg.Auth.APIKey = v
	}
	if v, ok := os.LookupEnv("PDFGS_IN_TESTING"); ok {
		cfg.Server.Testing = isTruthy(v)
	}
	if v := os.Getenv("PDFGS_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if cfg.PDF.ChromePath == "" {
		if v := os.Getenv("CHROME_BIN"); v != "" {
			cfg.PDF.ChromePath = v
		}
	}
}

func normalize(cfg *Config) {
	if cfg.Server.Port != "" && !strings.HasPrefix(cfg.Server.Port, ":") {
		cfg.Server.Port = ":" + cfg.Server.Port
	}
	cfg.PDF.DefaultPaper = strings.ToUpper(cfg.PDF.DefaultPaper)
	if len(cfg.PDF.PaperSizes) > 0 {
		sizes := make(map[string]PaperSize, len(cfg.PDF.PaperSizes))
		for name, size := range cfg.PDF.PaperSizes {
			sizes[strings.ToUpper(name)] = size
		}
		cfg.PDF.PaperSizes = sizes
	}
	if cfg.PDF.ChromePoolSize < 0 {
		cfg.PDF.ChromePoolSize = WorkerCount()
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Limits.MaxHTMLBytes <= 0 {
		return errors.New("limits.max_html_bytes must be positive")
	}
	if c.Limits.MaxPDFBytes <= 0 {
		return errors.New("limits.max_pdf_bytes must be positive")
	}
	if _, ok := c.Paper(); !ok {
		return fmt.Errorf("pdf.default_paper %q is not in pdf.paper_sizes", c.PDF.DefaultPaper)
	}
	if c.PDF.Margin < 0 || c.PDF.Margin > 2 {
		return errors.New("pdf.margin must be between 0 and 2 inches")
	}
	if c.PDF.TimeoutSecs <= 0 {
		return errors.New("pdf.timeout_secs must be positive")
	}
	if c.RateLimiter.UserLimit < 0 {
		return errors.New("rate_limiter.user_limit must not be negative")
	}
	if c.RateLimiter.UserLimit > 0 && c.RateLimiter.Interval <= 0 {
		return errors.New("rate_limiter.interval must be positive")
	}
	return nil
}

// WorkerCount is the number of concurrent renderers sized from the CPU count.
func WorkerCount() int {
	return 2*runtime.NumCPU() + 1
}

func isTruthy(v string) bool {
	switch strings.TrimSpace(v) {
	case "true", "True", "TRUE", "1":
		return true
	}
	return false
}

// WithPort returns a copy of c listening on port. "8080" and ":8080" are
// equivalent.
func (c Config) WithPort(port string) Config {
	if port != "" && !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	c.Server.Port = port
	return c
}
