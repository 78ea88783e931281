// Package main is the entry point for the Sonos widget server.
//
// The server renders the now-playing widget for a room on request over a
// WebSocket, serves the browser page and assets, and proxies album artwork
// through a local disk cache.
//
// Configuration:
//   - Environment variables (see internal/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# HTTPS with domain_srv.crt / domain_srv.key in the working directory
//	./server
//
//	# Plain HTTP on a custom address with debug logging
//	./server -host 127.0.0.1 -port 9000 -http -debug
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
