package config

import (
	"os"
	"time"
)

// RateLimitConfig controls the per-identity request limiter.  The limiter is a
// counted fixed window: at most Limit actions per Window for a given
// (identity hash, action) pair.  TTL bounds how long counter keys live in
// Redis after their window closes.
type RateLimitConfig struct {
	Enabled bool
	Limit   int
	Window  time.Duration
	TTL     time.Duration
	Prefix  string
	Debug   bool
}

// LoadRateLimitConfig reads limiter settings from the environment, applying
// defaults suitable for a small public deployment.
func LoadRateLimitConfig() RateLimitConfig {
	cfg := RateLimitConfig{
		Enabled: envBool("RATE_LIMIT_ENABLED", true),
		Limit:   envInt("RATE_LIMIT_COUNT", 30),
		Window:  envDur("RATE_LIMIT_WINDOW", time.Minute),
		TTL:     envDur("RATE_LIMIT_TTL", 10*time.Minute),
		Prefix:  envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:   envBool("RATE_LIMIT_DEBUG", false),
	}
	if cfg.Limit < 1 {
		cfg.Limit = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	// Keys must outlive the window they count, otherwise the limit resets early.
	if cfg.TTL < 2*cfg.Window {
		cfg.TTL = 2 * cfg.Window
	}
	return cfg
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
