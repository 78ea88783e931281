/*
Package tracing tags every HTTP request with a trace and span ID and logs a
span line when the request completes.

# Usage

	tracer := tracing.New("widget-server", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

Handlers read the IDs back with GetTraceID and GetSpanID. A long-lived
WebSocket session is one span that ends when the socket closes.

# Trace Format

Traces use standard HTTP headers for propagation:
  - X-Trace-ID: Unique identifier for entire request flow
  - X-Span-ID: Identifier for current operation

An incoming X-Trace-ID is kept, so a reverse proxy can correlate its own
logs with ours.
*/
package tracing
