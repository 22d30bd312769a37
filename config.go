package httpdispatch

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the engine's tunables, with the defaults spec.md §6
// prescribes. There are no package-level globals: a Config is built once
// and handed to NewManager, grounded on
// felipecampolina-FCReverseProxy/internal/config/config.go's env-var
// loader shape.
type Config struct {
	RedirectLimit          int
	MaxConcurrency         int
	ConnectTimeoutMs       int
	ReadTimeoutMs          int
	DisableTLSVerification bool
	UseNativeRedirects     bool
	PromotionIntervalMs    int

	// CacheCapacity bounds the cache provider's size; TrimLRU is invoked
	// with this cap after every writeback. Zero disables trimming.
	CacheCapacity int
}

// DefaultConfig returns the spec.md §6 defaults.
func DefaultConfig() Config {
	return Config{
		RedirectLimit:          3,
		MaxConcurrency:         2,
		ConnectTimeoutMs:       30000,
		ReadTimeoutMs:          30000,
		DisableTLSVerification: false,
		UseNativeRedirects:     false,
		PromotionIntervalMs:    60000,
		CacheCapacity:          10000,
	}
}

// LoadConfig reads HTTPDISPATCH_* environment variables over the defaults,
// loading a local .env file first (if present) the way
// felipecampolina-FCReverseProxy's cmd/server/main.go does via godotenv.
func LoadConfig() Config {
	_ = godotenv.Load()

	cfg := DefaultConfig()
	cfg.RedirectLimit = getEnvInt("HTTPDISPATCH_REDIRECT_LIMIT", cfg.RedirectLimit)
	cfg.MaxConcurrency = getEnvInt("HTTPDISPATCH_MAX_CONCURRENCY", cfg.MaxConcurrency)
	cfg.ConnectTimeoutMs = getEnvInt("HTTPDISPATCH_CONNECT_TIMEOUT_MS", cfg.ConnectTimeoutMs)
	cfg.ReadTimeoutMs = getEnvInt("HTTPDISPATCH_READ_TIMEOUT_MS", cfg.ReadTimeoutMs)
	cfg.DisableTLSVerification = getEnvBool("HTTPDISPATCH_DISABLE_TLS_VERIFICATION", cfg.DisableTLSVerification)
	cfg.UseNativeRedirects = getEnvBool("HTTPDISPATCH_USE_NATIVE_REDIRECTS", cfg.UseNativeRedirects)
	cfg.PromotionIntervalMs = getEnvInt("HTTPDISPATCH_PROMOTION_INTERVAL_MS", cfg.PromotionIntervalMs)
	cfg.CacheCapacity = getEnvInt("HTTPDISPATCH_CACHE_CAPACITY", cfg.CacheCapacity)
	return cfg
}

// Validate checks the config for missing/mis-typed values, surfaced as a
// ConfigurationError (per spec.md §7).
func (c Config) Validate() error {
	if c.MaxConcurrency <= 0 {
		return &ConfigurationError{Key: "HTTPDISPATCH_MAX_CONCURRENCY", Message: "must be positive"}
	}
	if c.RedirectLimit < 0 {
		return &ConfigurationError{Key: "HTTPDISPATCH_REDIRECT_LIMIT", Message: "must not be negative"}
	}
	if c.ConnectTimeoutMs <= 0 || c.ReadTimeoutMs <= 0 {
		return &ConfigurationError{Key: "HTTPDISPATCH_CONNECT_TIMEOUT_MS/HTTPDISPATCH_READ_TIMEOUT_MS", Message: "must be positive"}
	}
	return nil
}

func (c Config) PromotionInterval() time.Duration {
	return time.Duration(c.PromotionIntervalMs) * time.Millisecond
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func getEnvBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return parsed
}
