package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Client     ClientConfig
	Provider   ProviderConfig
	ImageProxy ImageProxyConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port     string `envconfig:"PORT" default:"8080"`
	Host     string `envconfig:"HOST" default:"0.0.0.0"`
	HTTPOnly bool   `envconfig:"HTTP_ONLY" default:"false"`
	TLSCert  string `envconfig:"TLS_CERT" default:"domain_srv.crt"`
	TLSKey   string `envconfig:"TLS_KEY" default:"domain_srv.key"`
}

// ClientConfig holds widget client configuration. The origin plays the role
// of the page location the widget was loaded from.
type ClientConfig struct {
	Origin string `envconfig:"WIDGET_ORIGIN" default:"http://localhost:8080"`
}

// ProviderConfig selects where room status comes from. URL wins over File.
type ProviderConfig struct {
	File string `envconfig:"STATUS_FILE" default:"status.yaml"`
	URL  string `envconfig:"STATUS_URL"`
}

// ImageProxyConfig holds artwork cache configuration.
type ImageProxyConfig struct {
	CacheDir string        `envconfig:"IMAGE_CACHE_DIR" default:"image_proxy"`
	MaxAge   time.Duration `envconfig:"IMAGE_CACHE_MAX_AGE" default:"8h"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     "8080",
			Host:     "0.0.0.0",
			HTTPOnly: false,
			TLSCert:  "domain_srv.crt",
			TLSKey:   "domain_srv.key",
		},
		Client: ClientConfig{
			Origin: "http://localhost:8080",
		},
		Provider: ProviderConfig{
			File: "status.yaml",
		},
		ImageProxy: ImageProxyConfig{
			CacheDir: "image_proxy",
			MaxAge:   8 * time.Hour,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
	}
}

// Scheme returns the scheme the server is reachable on.
func (s ServerConfig) Scheme() string {
	if s.HTTPOnly {
		return "http"
	}
	return "https"
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}
