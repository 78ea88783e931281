// Package middleware provides the gin middleware of the widget server.
//
// CORS lets widget pages hosted elsewhere fetch artwork through the image
// proxy. RateLimit applies a per-IP token bucket; idle clients are forgotten
// after IdleTimeout.
//
// Example Usage:
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
