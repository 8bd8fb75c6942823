// Package config holds the process-wide settings for a batch run or the
// HTTP front-end. Everything is resolved once at startup; a bad value
// aborts before any file is processed.
package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/wanghaisheng/brand-qr-checker-verify/internal/batch"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/classify"
	"github.com/wanghaisheng/brand-qr-checker-verify/internal/preprocess"
)

// Config is the full configuration surface.
type Config struct {
	InputDir     string
	Tolerance    string
	ResizeTarget int
	Concurrency  int
	Mode         string
	ValidDir     string
	InvalidDir   string
	LogLevel     string

	// serve mode
	Serve       bool
	HTTPAddr    string
	RedisAddr   string
	JWTSecret   string
	JWTAudience string
}

// Parse reads flags with environment fallbacks. It returns (nil, true, nil)
// when the program should exit cleanly, e.g. after -h.
func Parse(args []string, output io.Writer) (*Config, bool, error) {
	fs := flag.NewFlagSet("qr-checker-verify", flag.ContinueOnError)
	fs.SetOutput(output)

	cfg := &Config{}
	fs.StringVar(&cfg.InputDir, "dir", getEnv("QR_INPUT_DIR", "."), "directory holding the QR images to audit")
	fs.StringVar(&cfg.Tolerance, "tolerance", getEnv("QR_TOLERANCE", preprocess.ToleranceMedium), "tolerance profile: none, medium or high")
	fs.IntVar(&cfg.ResizeTarget, "resize", getEnvInt("QR_RESIZE_TARGET", 1024), "resize target in pixels, applied to every attempt")
	fs.IntVar(&cfg.Concurrency, "concurrency", getEnvInt("QR_CONCURRENCY", batch.DefaultConcurrency), "maximum number of files verified at once")
	fs.StringVar(&cfg.Mode, "mode", getEnv("QR_MODE", string(classify.ScanOnly)), "handling mode: scan-only, move-all, copy-all, move-scannable-only or move-non-scannable-only")
	fs.StringVar(&cfg.ValidDir, "valid-dir", getEnv("QR_VALID_DIR", "valid"), "bucket for scannable images")
	fs.StringVar(&cfg.InvalidDir, "invalid-dir", getEnv("QR_INVALID_DIR", "invalid"), "bucket for non-scannable images")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("QR_LOG_LEVEL", "info"), "zap log level")
	fs.BoolVar(&cfg.Serve, "serve", false, "run the HTTP verification endpoint instead of a batch")
	fs.StringVar(&cfg.HTTPAddr, "addr", getEnv("QR_HTTP_ADDR", ":8080"), "listen address for -serve")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address for the verdict cache (empty disables caching)")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, err
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.JWTAudience = os.Getenv("JWT_AUDIENCE")

	if err := cfg.Validate(); err != nil {
		return nil, false, err
	}
	return cfg, false, nil
}

// Validate rejects configuration the engine cannot run with.
func (c *Config) Validate() error {
	if _, err := preprocess.ProfileByName(c.Tolerance); err != nil {
		return err
	}
	if c.ResizeTarget <= 0 {
		return fmt.Errorf("config: resize target must be positive, got %d", c.ResizeTarget)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency ceiling must be at least 1, got %d", c.Concurrency)
	}
	if _, err := classify.ParseMode(c.Mode); err != nil {
		return err
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}
