// Package fastapi provides a client for the embedding service that fronts
// Weaviate and runs dimensionality reduction before returning points.
// It implements the backend.Source interface.
package fastapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lamim/vecplot/internal/backend"
	"github.com/lamim/vecplot/internal/dataset"
)

const (
	defaultBaseURL = "http://localhost:8000"
	defaultTimeout = 120 * time.Second
)

// Options configures a Client. Zero values fall back to defaults and the
// FASTAPI_URL environment variable.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RateLimit  float64
	MaxRetries int
}

// Client represents a FastAPI embedding service client
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryCfg   backend.RetryConfig
}

// NewClient creates a new FastAPI client
func NewClient(opts Options) (*Client, error) {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = os.Getenv("FASTAPI_URL")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid FastAPI URL %q", baseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	retryCfg := backend.DefaultRetryConfig()
	if opts.MaxRetries > 0 {
		retryCfg.MaxRetries = opts.MaxRetries
	}
	if opts.RateLimit > 0 {
		retryCfg.Limiter = backend.NewRateLimiter(opts.RateLimit)
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		retryCfg:   retryCfg,
	}, nil
}

// Name returns the source name
func (c *Client) Name() string {
	return "fastapi"
}

type collectionsResponse struct {
	Collections map[string]string `json:"collections"`
}

// Collections lists collection names via GET /weaviate_collections.
func (c *Client) Collections(ctx context.Context) ([]string, error) {
	resp, err := c.get(ctx, "/weaviate_collections", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	var result collectionsResponse
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		backend.LogError(ctx, err.Error(), "parse", "failed to unmarshal collections response")
		return nil, fmt.Errorf("failed to unmarshal collections response: %w", err)
	}

	names := make([]string, 0, len(result.Collections))
	for _, name := range result.Collections {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil, backend.ErrNoCollections
	}
	return names, nil
}

// queryResponse accepts both the current results-array shape and the older
// parallel data/metadata shape.
type queryResponse struct {
	Results []struct {
		Embedding []float64        `json:"embedding"`
		Metadata  dataset.Metadata `json:"metadata"`
	} `json:"results"`
	PaCMAPApplied  bool   `json:"pacmap_applied"`
	Message        string `json:"message"`
	CollectionName string `json:"collection_name"`

	Shape    []int              `json:"shape"`
	Data     [][]float64        `json:"data"`
	Metadata []dataset.Metadata `json:"metadata"`
}

// Fetch queries a collection via GET /query_weaviate.
func (c *Client) Fetch(ctx context.Context, opts backend.FetchOptions) (*backend.FetchResult, error) {
	if opts.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	params := url.Values{}
	params.Set("collection_name", opts.Collection)
	params.Set("query", "")
	params.Set("apply_dr", strconv.FormatBool(opts.ApplyReduction))
	if opts.Method != "" {
		params.Set("dr_method", opts.Method)
	}
	if opts.Components > 0 {
		params.Set("n_components", strconv.Itoa(opts.Components))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	start := time.Now()
	resp, err := c.get(ctx, "/query_weaviate", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch collection %s: %w", opts.Collection, err)
	}

	ds, err := decodeDataset(resp.Body)
	if err != nil {
		backend.LogError(ctx, err.Error(), "parse", "failed to unmarshal query response")
		return nil, err
	}
	if ds.Collection == "" {
		ds.Collection = opts.Collection
	}
	backend.SetMetadata(ctx, "points", ds.Len())
	backend.SetMetadata(ctx, "pacmap_applied", ds.Reduced)

	return &backend.FetchResult{
		Dataset:      ds,
		Latency:      time.Since(start),
		RequestCount: resp.Attempts,
		BytesRead:    len(resp.Body),
	}, nil
}

func decodeDataset(body []byte) (*dataset.Dataset, error) {
	var result queryResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal query response: %w", err)
	}

	ds := &dataset.Dataset{
		Collection: result.CollectionName,
		Reduced:    result.PaCMAPApplied,
		Message:    result.Message,
	}

	if result.Results != nil {
		ds.Points = make([]dataset.Point, len(result.Results))
		ds.Metadata = make([]dataset.Metadata, len(result.Results))
		for i, r := range result.Results {
			ds.Points[i] = r.Embedding
			ds.Metadata[i] = r.Metadata
		}
		return ds, nil
	}

	ds.Points = make([]dataset.Point, len(result.Data))
	for i, p := range result.Data {
		ds.Points[i] = p
	}
	ds.Metadata = result.Metadata
	return ds, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) (*backend.HTTPResponse, error) {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.retryCfg.DoHTTPRequestDetailed(ctx, c.httpClient, req)
}
