// Package server wires the widget HTTP server.
//
// Routes:
//   - GET /              index page, or a WebSocket session on upgrade
//   - GET /static/*      embedded browser assets (gzip)
//   - GET /image_proxy   artwork cache
//   - GET /health        liveness probe
//   - GET /metrics       Prometheus exposition
//
// The server listens with TLS unless Server.HTTPOnly is set.
package server
