// Package weaviate reads collections straight from a Weaviate instance.
// Vectors come back as stored, without dimensionality reduction, so only
// collections holding 2D or 3D vectors are plottable through this source.
package weaviate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"sort"
	"time"

	"github.com/lamim/vecplot/internal/backend"
	"github.com/lamim/vecplot/internal/dataset"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const (
	defaultURL      = "http://localhost:8080"
	defaultPageSize = 100
)

// DefaultProperties are the sample properties requested for every object.
var DefaultProperties = []string{
	"malware_family",
	"reporter",
	"file_name",
	"sha256_hash",
	"file_type",
	"file_size",
	"op_code",
}

// Options configures a Client.
type Options struct {
	URL        string
	APIKey     string
	Properties []string
	PageSize   int
	Timeout    time.Duration
	RateLimit  float64
	MaxRetries int
}

// Client is a Weaviate-backed source.
type Client struct {
	client     *weaviate.Client
	properties []string
	pageSize   int
	retryCfg   backend.RetryConfig
}

// NewClient creates a new Weaviate client. An empty URL falls back to
// WEAVIATE_URL, then to a local instance.
func NewClient(opts Options) (*Client, error) {
	rawURL := opts.URL
	if rawURL == "" {
		rawURL = os.Getenv("WEAVIATE_URL")
	}
	if rawURL == "" {
		rawURL = defaultURL
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid Weaviate URL %q", rawURL)
	}

	cfg := weaviate.Config{
		Host:   u.Host,
		Scheme: u.Scheme,
	}
	if opts.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{Value: opts.APIKey}
	}
	if opts.Timeout > 0 {
		cfg.ConnectionClient = &http.Client{Timeout: opts.Timeout}
	}

	wc, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %w", err)
	}

	props := opts.Properties
	if len(props) == 0 {
		props = DefaultProperties
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	retryCfg := backend.DefaultRetryConfig()
	if opts.MaxRetries > 0 {
		retryCfg.MaxRetries = opts.MaxRetries
	}
	if opts.RateLimit > 0 {
		retryCfg.Limiter = backend.NewRateLimiter(opts.RateLimit)
	}

	return &Client{
		client:     wc,
		properties: props,
		pageSize:   pageSize,
		retryCfg:   retryCfg,
	}, nil
}

// Name returns the source name
func (c *Client) Name() string {
	return "weaviate"
}

// Collections lists the class names in the Weaviate schema.
func (c *Client) Collections(ctx context.Context) ([]string, error) {
	var schema *models.Schema
	err := c.retryCfg.DoWithRetry(ctx, func() error {
		var err error
		schema, err = c.client.Schema().Getter().Do(ctx)
		return err
	})
	if err != nil {
		backend.LogError(ctx, err.Error(), "schema", "failed to read schema")
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}

	names := classNames(schema)
	if len(names) == 0 {
		return nil, backend.ErrNoCollections
	}
	return names, nil
}

func classNames(schema *models.Schema) []string {
	if schema == nil {
		return nil
	}
	names := make([]string, 0, len(schema.Classes))
	for _, class := range schema.Classes {
		if class != nil && class.Class != "" {
			names = append(names, class.Class)
		}
	}
	sort.Strings(names)
	return names
}

func (c *Client) fields() []graphql.Field {
	fields := make([]graphql.Field, 0, len(c.properties)+1)
	for _, prop := range c.properties {
		fields = append(fields, graphql.Field{Name: prop})
	}
	fields = append(fields, graphql.Field{
		Name: "_additional",
		Fields: []graphql.Field{
			{Name: "id"},
			{Name: "vector"},
		},
	})
	return fields
}

// Fetch pages through every object of a collection. Reduction options are
// ignored; the returned dataset carries the stored vectors.
func (c *Client) Fetch(ctx context.Context, opts backend.FetchOptions) (*backend.FetchResult, error) {
	if opts.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}

	start := time.Now()
	ds := &dataset.Dataset{Collection: opts.Collection}
	requests := 0
	offset := 0

	for {
		fetchLimit := c.pageSize
		if opts.Limit > 0 {
			remaining := opts.Limit - ds.Len()
			if remaining <= 0 {
				break
			}
			if remaining < fetchLimit {
				fetchLimit = remaining
			}
		}

		var resp *models.GraphQLResponse
		err := c.retryCfg.DoWithRetry(ctx, func() error {
			requests++
			var err error
			resp, err = c.client.GraphQL().Get().
				WithClassName(opts.Collection).
				WithLimit(fetchLimit).
				WithOffset(offset).
				WithFields(c.fields()...).
				Do(ctx)
			return err
		})
		if err != nil {
			backend.LogError(ctx, err.Error(), "graphql", "failed to query objects")
			return nil, fmt.Errorf("failed to fetch collection %s: %w", opts.Collection, err)
		}

		points, meta, seen, err := parseObjects(resp, opts.Collection)
		if err != nil {
			backend.LogError(ctx, err.Error(), "parse", "failed to parse objects")
			return nil, err
		}
		if seen == 0 {
			break
		}

		ds.Points = append(ds.Points, points...)
		ds.Metadata = append(ds.Metadata, meta...)
		offset += seen

		if seen < fetchLimit {
			break
		}
	}

	if opts.ApplyReduction {
		ds.Message = "Weaviate returns stored vectors; no reduction was applied."
	}
	backend.SetMetadata(ctx, "points", ds.Len())
	backend.SetMetadata(ctx, "pages", requests)

	return &backend.FetchResult{
		Dataset:      ds,
		Latency:      time.Since(start),
		RequestCount: requests,
	}, nil
}

// parseObjects converts a GraphQL Get response into points and metadata.
// Objects without a vector are skipped so the two slices stay parallel;
// seen counts every object in the page.
func parseObjects(resp *models.GraphQLResponse, class string) (points []dataset.Point, meta []dataset.Metadata, seen int, err error) {
	if resp == nil {
		return nil, nil, 0, nil
	}
	if len(resp.Errors) > 0 {
		return nil, nil, 0, fmt.Errorf("weaviate: %s", resp.Errors[0].Message)
	}

	data, ok := resp.Data["Get"].(map[string]any)
	if !ok {
		return nil, nil, 0, nil
	}
	items, ok := data[class].([]any)
	if !ok {
		return nil, nil, 0, nil
	}

	points = make([]dataset.Point, 0, len(items))
	meta = make([]dataset.Metadata, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		additional, _ := obj["_additional"].(map[string]any)
		vec, ok := additional["vector"].([]any)
		if !ok || len(vec) == 0 {
			continue
		}
		point := make(dataset.Point, len(vec))
		for i, v := range vec {
			if f, ok := v.(float64); ok {
				point[i] = f
			}
		}

		record, err := recordFromProperties(obj)
		if err != nil {
			return nil, nil, 0, err
		}
		record.UUID, _ = additional["id"].(string)
		record.VectorLength = len(vec)

		points = append(points, point)
		meta = append(meta, record)
	}
	return points, meta, len(items), nil
}

func recordFromProperties(obj map[string]any) (dataset.Metadata, error) {
	props := make(map[string]any, len(obj))
	for k, v := range obj {
		if k != "_additional" {
			props[k] = v
		}
	}

	raw, err := json.Marshal(props)
	if err != nil {
		return dataset.Metadata{}, fmt.Errorf("failed to encode properties: %w", err)
	}

	var record dataset.Metadata
	if err := json.Unmarshal(raw, &record.Properties); err != nil {
		return dataset.Metadata{}, fmt.Errorf("failed to decode properties: %w", err)
	}
	var label struct {
		ClusterLabel dataset.OptInt `json:"cluster_label"`
	}
	if err := json.Unmarshal(raw, &label); err != nil {
		return dataset.Metadata{}, fmt.Errorf("failed to decode cluster label: %w", err)
	}
	record.ClusterLabel = label.ClusterLabel
	return record, nil
}
