package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/example/smile-overlay/internal/smile"
)

// Config is the immutable startup configuration of the service.
type Config struct {
	Host                    string        `validate:"required"`
	Port                    int           `validate:"min=1,max=65535"`
	Threshold               float64       `validate:"gte=0"`
	IndexHTMLPath           string        `validate:"required"`
	MaxBodyBytes            int64         `validate:"min=1"`
	MaxImagePixels          int           `validate:"min=0"`
	LandmarkAddr            string        `validate:"required,hostname_port"`
	LandmarkTimeout         time.Duration `validate:"min=0"`
	MaxConcurrentDetections int           `validate:"min=1"`
	RedisAddr               string        `validate:"omitempty,hostname_port"`
	CacheTTL                time.Duration `validate:"min=0"`
	MetricsAddr             string        `validate:"omitempty,hostname_port"`
	LogLevel                string        `validate:"oneof=debug info warn error"`
	ShutdownTimeout         time.Duration `validate:"min=0"`
}

// Default returns the configuration used when no environment overrides are set.
func Default() Config {
	return Config{
		Host:                    "127.0.0.1",
		Port:                    8080,
		Threshold:               smile.DefaultThreshold,
		IndexHTMLPath:           "web/index.html",
		MaxBodyBytes:            10 << 20,
		MaxImagePixels:          24_000_000,
		LandmarkAddr:            "127.0.0.1:50051",
		LandmarkTimeout:         5 * time.Second,
		MaxConcurrentDetections: runtime.NumCPU(),
		CacheTTL:                10 * time.Minute,
		LogLevel:                "info",
		ShutdownTimeout:         15 * time.Second,
	}
}

// Addr is the host:port the HTTP server listens on.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Load reads a .env file when present, then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromLookup(os.LookupEnv)
}

// FromLookup builds and validates a Config from the given variable lookup.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	env := envReader{lookup: lookup}

	cfg.Host = env.str("SMILE_HOST", cfg.Host)
	cfg.Port = env.integer("SMILE_PORT", cfg.Port)
	cfg.Threshold = env.number("SMILE_THRESHOLD", cfg.Threshold)
	cfg.IndexHTMLPath = env.str("SMILE_INDEX_HTML", cfg.IndexHTMLPath)
	cfg.MaxBodyBytes = int64(env.integer("SMILE_MAX_BODY_BYTES", int(cfg.MaxBodyBytes)))
	cfg.MaxImagePixels = env.integer("MAX_IMAGE_PIXELS", cfg.MaxImagePixels)
	cfg.LandmarkAddr = env.str("LANDMARK_PROVIDER_ADDR", cfg.LandmarkAddr)
	cfg.LandmarkTimeout = env.duration("LANDMARK_TIMEOUT", cfg.LandmarkTimeout)
	cfg.MaxConcurrentDetections = env.integer("MAX_CONCURRENT_DETECTIONS", cfg.MaxConcurrentDetections)
	cfg.RedisAddr = env.str("REDIS_ADDR", cfg.RedisAddr)
	cfg.CacheTTL = env.duration("LANDMARK_CACHE_TTL", cfg.CacheTTL)
	cfg.MetricsAddr = env.str("METRICS_ADDR", cfg.MetricsAddr)
	cfg.LogLevel = env.str("LOG_LEVEL", cfg.LogLevel)
	cfg.ShutdownTimeout = env.duration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	if len(env.errs) > 0 {
		return Config{}, errors.Join(env.errs...)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and that every listener stays on loopback.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !isLoopback(c.Host) {
		return fmt.Errorf("invalid config: host %q is not a loopback address", c.Host)
	}
	if c.MetricsAddr != "" {
		host, _, err := net.SplitHostPort(c.MetricsAddr)
		if err != nil || !isLoopback(host) {
			return fmt.Errorf("invalid config: metrics address %q is not a loopback address", c.MetricsAddr)
		}
	}
	return nil
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) str(key, fallback string) string {
	if value, ok := e.lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func (e *envReader) integer(key string, fallback int) int {
	raw := e.str(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return value
}

func (e *envReader) number(key string, fallback float64) float64 {
	raw := e.str(key, "")
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return value
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return fallback
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return value
}
