package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"
)

// RetryConfig configures retry behavior for HTTP requests
type RetryConfig struct {
	MaxRetries      int
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	BackoffFactor   float64
	RetryableErrors []int // HTTP status codes to retry
	// Limiter, when set, paces every attempt including retries.
	Limiter *RateLimiter
}

// DefaultRetryConfig returns a default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		BackoffFactor:  2.0,
		RetryableErrors: []int{
			http.StatusTooManyRequests,     // 429
			http.StatusInternalServerError, // 500
			http.StatusBadGateway,          // 502
			http.StatusServiceUnavailable,  // 503
			http.StatusGatewayTimeout,      // 504
		},
	}
}

var (
	rateLimitIndicators = []string{
		"rate limit",
		"ratelimit",
		"too many requests",
		"quota exceeded",
		"limit exceeded",
	}
	transientIndicators = []string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"no such host",
		"temporary",
		"eof",
	}
)

// RetryableError checks if an error or status code should trigger a retry
func (rc *RetryConfig) RetryableError(err error, statusCode int) bool {
	for _, code := range rc.RetryableErrors {
		if statusCode == code {
			return true
		}
	}

	if err != nil {
		errStr := strings.ToLower(err.Error())
		for _, indicator := range rateLimitIndicators {
			if strings.Contains(errStr, indicator) {
				return true
			}
		}
	}

	return false
}

// CalculateBackoff calculates the backoff duration for a given attempt
func (rc *RetryConfig) CalculateBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	// Exponential backoff: initial * factor^attempt
	backoff := float64(rc.InitialBackoff) * math.Pow(rc.BackoffFactor, float64(attempt))

	// Add jitter (±25%) to avoid thundering herd
	//nolint:gosec // math/rand/v2 is sufficient for jitter
	jitter := backoff * 0.25 * (2*rand.Float64() - 1)
	backoff += jitter

	if backoff > float64(rc.MaxBackoff) {
		backoff = float64(rc.MaxBackoff)
	}

	return time.Duration(backoff)
}

// DoWithRetry executes the given function with retry logic
func (rc *RetryConfig) DoWithRetry(ctx context.Context, operation func() error) error {
	var lastErr error

	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled: %w", ctx.Err())
		default:
		}

		if err := rc.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		lastErr = operation()
		if lastErr == nil {
			return nil
		}

		if attempt == rc.MaxRetries {
			break
		}

		if !rc.isRetryable(lastErr) {
			return lastErr
		}

		if err := SleepWithContext(ctx, rc.CalculateBackoff(attempt)); err != nil {
			return fmt.Errorf("context cancelled during retry: %w", err)
		}
	}

	return fmt.Errorf("max retries (%d) exceeded: %w", rc.MaxRetries, lastErr)
}

// HTTPResponse is a fully read response.
type HTTPResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Attempts   int
	Latency    time.Duration
}

// DoHTTPRequestDetailed sends req with retries, reading the whole body. Each
// attempt is logged to the debug logger in ctx. Non-2xx responses become
// *HTTPError with the backend's message parsed out of the body.
func (rc *RetryConfig) DoHTTPRequestDetailed(ctx context.Context, client *http.Client, req *http.Request) (*HTTPResponse, error) {
	var out *HTTPResponse
	attempts := 0

	err := rc.DoWithRetry(ctx, func() error {
		attempts++
		attemptReq := req.Clone(ctx)
		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return fmt.Errorf("failed to rewind request body: %w", err)
			}
			attemptReq.Body = body
		}

		traceCtx, timing, finalize := NewTraceContext(ctx)
		attemptReq = attemptReq.WithContext(traceCtx)

		if logger, fetch := DebugLoggerFromContext(ctx), FetchLogFromContext(ctx); logger != nil && fetch != nil {
			logger.LogRequestWithTiming(fetch, attemptReq.Method, attemptReq.URL.String(),
				HeadersToMap(attemptReq.Header), "", timing, attempts-1)
		}

		start := time.Now()
		resp, err := client.Do(attemptReq)
		if err != nil {
			LogError(ctx, err.Error(), "http", "request failed")
			return fmt.Errorf("request failed: %w", err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		latency := time.Since(start)
		finalize()

		if logger, fetch := DebugLoggerFromContext(ctx), FetchLogFromContext(ctx); logger != nil && fetch != nil {
			logger.LogResponseWithTiming(fetch, resp.StatusCode, HeadersToMap(resp.Header),
				string(body), len(body), latency, timing)
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &HTTPError{StatusCode: resp.StatusCode, Message: ParseErrorBody(body)}
		}

		out = &HTTPResponse{
			StatusCode: resp.StatusCode,
			Headers:    resp.Header,
			Body:       body,
			Latency:    latency,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.Attempts = attempts
	return out, nil
}

// isRetryable determines if an error should be retried
func (rc *RetryConfig) isRetryable(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return rc.RetryableError(nil, httpErr.StatusCode)
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, indicator := range rateLimitIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	for _, indicator := range transientIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// SleepWithContext sleeps for the given duration or until context is cancelled
func SleepWithContext(ctx context.Context, duration time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(duration):
		return nil
	}
}
