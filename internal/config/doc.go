// Package config provides 12-factor configuration management for the widget
// server and the widget client.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags in cmd/server and cmd/widget override environment variables.
//
// Configuration Sections:
//   - Server: listen address and TLS material
//   - Client: page origin the client connects back to
//   - Provider: status file or status URL
//   - ImageProxy: artwork cache directory and max age
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Server running on %s://%s\n", cfg.Server.Scheme(), cfg.Server.Addr())
//
// Environment Variables:
//   - PORT, HOST, HTTP_ONLY, TLS_CERT, TLS_KEY
//   - WIDGET_ORIGIN
//   - STATUS_FILE, STATUS_URL
//   - IMAGE_CACHE_DIR, IMAGE_CACHE_MAX_AGE
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
