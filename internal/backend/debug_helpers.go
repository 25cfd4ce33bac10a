package backend

import (
	"context"
	"net/http/httptrace"
	"time"

	"github.com/lamim/vecplot/internal/debug"
)

// LogRequest logs an HTTP request via the debug logger if available in context.
func LogRequest(ctx context.Context, method, url string, headers map[string]string, body string) {
	fetch := FetchLogFromContext(ctx)
	logger := DebugLoggerFromContext(ctx)
	if logger == nil || fetch == nil {
		return
	}
	logger.LogRequest(fetch, method, url, headers, body)
}

// LogResponse logs an HTTP response via the debug logger if available in context.
func LogResponse(ctx context.Context, statusCode int, headers map[string]string, body string, bodySize int, duration time.Duration) {
	fetch := FetchLogFromContext(ctx)
	logger := DebugLoggerFromContext(ctx)
	if logger == nil || fetch == nil {
		return
	}
	logger.LogResponse(fetch, statusCode, headers, body, bodySize, duration)
}

// LogError logs an error via the debug logger if available in context.
func LogError(ctx context.Context, message, category, errContext string) {
	fetch := FetchLogFromContext(ctx)
	logger := DebugLoggerFromContext(ctx)
	if logger == nil || fetch == nil {
		return
	}
	logger.LogError(fetch, message, category, errContext)
}

// SetMetadata attaches a value to the current fetch log if debugging.
func SetMetadata(ctx context.Context, key string, value any) {
	fetch := FetchLogFromContext(ctx)
	logger := DebugLoggerFromContext(ctx)
	if logger == nil || fetch == nil {
		return
	}
	logger.SetMetadata(fetch, key, value)
}

// NewTraceContext creates an httptrace context for timing breakdown if debug is enabled.
// Returns the enhanced context, timing breakdown pointer, and a finalize function.
func NewTraceContext(ctx context.Context) (context.Context, *debug.TimingBreakdown, func()) {
	fetch := FetchLogFromContext(ctx)
	logger := DebugLoggerFromContext(ctx)
	if logger == nil || fetch == nil {
		return ctx, nil, func() {}
	}

	timing, finalize := logger.NewTraceContext(fetch)
	if trace := logger.TraceFor(fetch); trace != nil {
		return httptrace.WithClientTrace(ctx, trace), timing, finalize
	}
	return ctx, timing, finalize
}

// HeadersToMap converts http.Header to a map for logging.
func HeadersToMap(headers map[string][]string) map[string]string {
	if headers == nil {
		return nil
	}
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if len(v) > 0 {
			result[k] = v[0]
		}
	}
	return result
}
