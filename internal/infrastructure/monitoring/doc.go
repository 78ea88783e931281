// Package monitoring provides Prometheus metrics for the widget server and
// the widget client.
//
// Metrics are registered against the prometheus.Registerer passed to
// NewMetrics; the server uses the default registry and exposes it on
// /metrics, tests use a private registry. Every recording method accepts a
// nil receiver.
//
// Example Usage:
//
//	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
//	router.Use(monitoring.Middleware(metrics))
//	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
package monitoring
