// Package config loads formpilot configuration from a YAML file with
// environment variable overrides. A missing file is not an error; defaults
// apply and env vars still win.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"formpilot/internal/automation"
)

// Config is the root configuration document.
type Config struct {
	Environment string           `yaml:"environment"`
	Automation  AutomationConfig `yaml:"automation"`
	Server      ServerConfig     `yaml:"server"`
	Store       StoreConfig      `yaml:"store"`
	Logging     LoggingConfig    `yaml:"logging"`
}

// AutomationConfig tunes the browser automation pipeline.
type AutomationConfig struct {
	PortalURL           string `yaml:"portal_url"`
	FallbackURL         string `yaml:"fallback_url"`
	TimeoutMs           int    `yaml:"timeout_ms"`
	Retries             int    `yaml:"retries"`
	Headless            bool   `yaml:"headless"`
	NavigationTimeoutMs int    `yaml:"navigation_timeout_ms"`
	FieldWaitMs         int    `yaml:"field_wait_ms"`
	ViewportWidth       int    `yaml:"viewport_width"`
	ViewportHeight      int    `yaml:"viewport_height"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr              string `yaml:"addr"`
	WebhookSecret     string `yaml:"webhook_secret"`
	MaxConcurrentRuns int    `yaml:"max_concurrent_runs"`
}

// StoreConfig selects the submission record backend.
type StoreConfig struct {
	Type  string      `yaml:"type"` // "memory" or "redis"
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLHours int    `yaml:"ttl_hours"`
}

// LoggingConfig controls the categorized debug log files.
type LoggingConfig struct {
	Debug   bool   `yaml:"debug"`
	Level   string `yaml:"level"`
	Workdir string `yaml:"workdir"`
}

// DefaultConfig returns the configuration used when no file or overrides are
// present.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Automation: AutomationConfig{
			PortalURL:           "https://ecd.beacukai.go.id",
			FallbackURL:         "https://ecd.beacukai.go.id",
			TimeoutMs:           120000,
			Retries:             2,
			Headless:            true,
			NavigationTimeoutMs: 30000,
			FieldWaitMs:         5000,
			ViewportWidth:       1920,
			ViewportHeight:      1080,
		},
		Server: ServerConfig{
			Addr:              ":8080",
			MaxConcurrentRuns: 2,
		},
		Store: StoreConfig{
			Type: "memory",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				TTLHours: 72,
			},
		},
		Logging: LoggingConfig{
			Level:   "info",
			Workdir: ".",
		},
	}
}

// Load reads the config file at path, applies it over defaults, then applies
// environment overrides. An empty path or a missing file leaves defaults in
// place.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to env overrides
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv layers FORMPILOT_* environment variables over the current values.
func (c *Config) applyEnv() {
	setStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	setStr("FORMPILOT_ENVIRONMENT", &c.Environment)
	setStr("FORMPILOT_PORTAL_URL", &c.Automation.PortalURL)
	setStr("FORMPILOT_FALLBACK_URL", &c.Automation.FallbackURL)
	setInt("FORMPILOT_TIMEOUT_MS", &c.Automation.TimeoutMs)
	setInt("FORMPILOT_RETRIES", &c.Automation.Retries)
	setBool("FORMPILOT_HEADLESS", &c.Automation.Headless)
	setStr("FORMPILOT_ADDR", &c.Server.Addr)
	setStr("FORMPILOT_WEBHOOK_SECRET", &c.Server.WebhookSecret)
	setInt("FORMPILOT_MAX_CONCURRENT_RUNS", &c.Server.MaxConcurrentRuns)
	setStr("FORMPILOT_STORE_TYPE", &c.Store.Type)
	setStr("FORMPILOT_REDIS_ADDR", &c.Store.Redis.Addr)
	setStr("FORMPILOT_REDIS_PASSWORD", &c.Store.Redis.Password)
	setInt("FORMPILOT_REDIS_DB", &c.Store.Redis.DB)
	setBool("FORMPILOT_DEBUG", &c.Logging.Debug)
	setStr("FORMPILOT_LOG_LEVEL", &c.Logging.Level)
}

// Validate rejects configurations the services cannot start with.
func (c *Config) Validate() error {
	if c.Automation.PortalURL == "" {
		return fmt.Errorf("automation.portal_url is required")
	}
	if c.Automation.TimeoutMs <= 0 {
		return fmt.Errorf("automation.timeout_ms must be positive, got %d", c.Automation.TimeoutMs)
	}
	if c.Automation.Retries < 0 {
		return fmt.Errorf("automation.retries must not be negative, got %d", c.Automation.Retries)
	}
	switch c.Store.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("store.type must be memory or redis, got %q", c.Store.Type)
	}
	if c.Server.MaxConcurrentRuns <= 0 {
		return fmt.Errorf("server.max_concurrent_runs must be positive, got %d", c.Server.MaxConcurrentRuns)
	}
	return nil
}

// AutomationPipeline maps the loaded document onto the pipeline configuration.
func (c *Config) AutomationPipeline() automation.Config {
	cfg := automation.DefaultConfig()
	cfg.PortalURL = c.Automation.PortalURL
	cfg.FallbackURL = c.Automation.FallbackURL
	cfg.Environment = c.Environment
	cfg.DefaultTimeout = time.Duration(c.Automation.TimeoutMs) * time.Millisecond
	cfg.DefaultRetries = c.Automation.Retries
	cfg.DefaultHeadless = c.Automation.Headless
	if c.Automation.NavigationTimeoutMs > 0 {
		cfg.NavigationTimeout = time.Duration(c.Automation.NavigationTimeoutMs) * time.Millisecond
	}
	if c.Automation.FieldWaitMs > 0 {
		cfg.FieldWait = time.Duration(c.Automation.FieldWaitMs) * time.Millisecond
	}
	if c.Automation.ViewportWidth > 0 {
		cfg.ViewportWidth = c.Automation.ViewportWidth
	}
	if c.Automation.ViewportHeight > 0 {
		cfg.ViewportHeight = c.Automation.ViewportHeight
	}
	return cfg
}
