// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output with short timestamps
//
// Every long-lived component takes a *Logger and derives its own child via
// Component, so log lines carry a "component" field (client, ws, imageproxy).
//
// Example Usage:
//
//	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	log := logger.Component("client")
//	log.Info("Connected", zap.String("endpoint", endpoint))
package logging
