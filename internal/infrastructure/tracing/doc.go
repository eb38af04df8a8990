/*
Package tracing correlates API requests with the sync work they trigger.

Every request gets a trace id, taken from an incoming X-Trace-ID header or
generated, and a span that records route, status and duration. The trace id
is echoed in the response and carried on the request context, so handlers
and the components below them can tag their log lines with it.

Completed spans are handed to a buffered collector and logged off the request
path. When the buffer is full spans are dropped rather than delaying
responses.

# Usage

	tracer := tracing.New(logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	// In a handler or below:
	log := logger.With(zap.String("trace_id", string(tracing.GetTraceID(ctx))))
*/
package tracing
