// ABOUTME: Configuration loader for the carshop CLI
// ABOUTME: Loads settings from .env and environment variables with defaults

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL = "http://localhost:8000/api"
	appName       = "carshop"
)

type Config struct {
	// Remote API
	APIURL         string
	RequestTimeout time.Duration

	// Local state (credential slot, cookie jar, log file)
	ConfigDir string

	// Cart
	CartDebounce time.Duration // quiescence window for quantity edits (default 500ms)
	CartCacheTTL time.Duration // how long a fetched cart is served without refetching; 0 always refetches

	// Payment polling
	PaymentPollInterval time.Duration
	PaymentPollTimeout  time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file from the working directory, then the
// environment. Variables already set in the environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		APIURL:         strings.TrimRight(getEnv("CARSHOP_API_URL", DefaultAPIURL), "/"),
		RequestTimeout: time.Duration(getEnvInt("CARSHOP_REQUEST_TIMEOUT", 30)) * time.Second,

		ConfigDir: getEnv("CARSHOP_CONFIG_DIR", DefaultConfigDir()),

		CartDebounce: time.Duration(getEnvInt("CARSHOP_CART_DEBOUNCE_MS", 500)) * time.Millisecond,
		CartCacheTTL: time.Duration(getEnvInt("CARSHOP_CART_CACHE_TTL", 30)) * time.Second,

		PaymentPollInterval: time.Duration(getEnvInt("CARSHOP_PAYMENT_POLL_INTERVAL", 5)) * time.Second,
		PaymentPollTimeout:  time.Duration(getEnvInt("CARSHOP_PAYMENT_POLL_TIMEOUT", 600)) * time.Second,

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges. Called by FromEnv and again after flag overrides.
func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("CARSHOP_API_URL must be an absolute URL, got %q", c.APIURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("CARSHOP_API_URL must use http or https, got %q", u.Scheme)
	}

	for _, d := range []struct {
		name  string
		value time.Duration
		min   time.Duration
	}{
		{"CARSHOP_REQUEST_TIMEOUT", c.RequestTimeout, time.Second},
		{"CARSHOP_CART_DEBOUNCE_MS", c.CartDebounce, 0},
		{"CARSHOP_CART_CACHE_TTL", c.CartCacheTTL, 0},
		{"CARSHOP_PAYMENT_POLL_INTERVAL", c.PaymentPollInterval, time.Second},
		{"CARSHOP_PAYMENT_POLL_TIMEOUT", c.PaymentPollTimeout, time.Second},
	} {
		if d.value < d.min {
			return fmt.Errorf("%s must be at least %s, got %s", d.name, d.min, d.value)
		}
	}

	if c.ConfigDir == "" {
		return fmt.Errorf("CARSHOP_CONFIG_DIR could not be determined; set it explicitly")
	}
	return nil
}

// DefaultConfigDir returns the default config directory following XDG spec
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
