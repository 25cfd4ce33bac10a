// Package backend defines the interface for embedding data sources and the
// HTTP plumbing shared by every source implementation.
package backend

import (
	"context"
	"time"

	"github.com/lamim/vecplot/internal/dataset"
	"github.com/lamim/vecplot/internal/debug"
)

// Reduction methods a backend may apply before returning points.
const (
	MethodPaCMAP = "pacmap"
	MethodUMAP   = "umap"
	MethodTriMAP = "trimap"
)

// FetchOptions controls a single dataset fetch.
type FetchOptions struct {
	Collection string
	// ApplyReduction asks the backend to project embeddings to Components dimensions.
	ApplyReduction bool
	Method         string
	Components     int
	// Limit caps the number of objects; 0 keeps the backend default.
	Limit int
}

// DefaultFetchOptions returns the options the dashboard uses out of the box.
func DefaultFetchOptions(collection string) FetchOptions {
	return FetchOptions{
		Collection:     collection,
		ApplyReduction: true,
		Method:         MethodPaCMAP,
		Components:     3,
	}
}

// Source is a backend that lists collections and returns their embeddings.
type Source interface {
	Name() string
	// Collections lists the collection names the backend can serve.
	Collections(ctx context.Context) ([]string, error)
	// Fetch returns the points and metadata of one collection.
	Fetch(ctx context.Context, opts FetchOptions) (*FetchResult, error)
}

// FetchResult is a fetched dataset plus transport statistics.
type FetchResult struct {
	Dataset      *dataset.Dataset
	Latency      time.Duration
	RequestCount int
	BytesRead    int
}

// contextKey is a private type for context keys to avoid collisions
type contextKey int

const (
	debugLoggerKey contextKey = iota
	fetchLogKey
)

// WithDebugLogger returns a context with the debug logger attached
func WithDebugLogger(ctx context.Context, logger *debug.Logger) context.Context {
	return context.WithValue(ctx, debugLoggerKey, logger)
}

// DebugLoggerFromContext retrieves the debug logger from context
func DebugLoggerFromContext(ctx context.Context) *debug.Logger {
	if logger, ok := ctx.Value(debugLoggerKey).(*debug.Logger); ok {
		return logger
	}
	return nil
}

// WithFetchLog returns a context with the current fetch log attached
func WithFetchLog(ctx context.Context, fetch *debug.FetchLog) context.Context {
	return context.WithValue(ctx, fetchLogKey, fetch)
}

// FetchLogFromContext retrieves the current fetch log from context
func FetchLogFromContext(ctx context.Context) *debug.FetchLog {
	if fetch, ok := ctx.Value(fetchLogKey).(*debug.FetchLog); ok {
		return fetch
	}
	return nil
}
