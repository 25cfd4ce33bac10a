// Package metrics provides collection and aggregation of fetch and view results.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/lamim/vecplot/internal/interaction"
	"github.com/lamim/vecplot/internal/plot"
)

// Fetch records one collection fetch from a backend source.
type Fetch struct {
	Collection    string        `json:"collection"`
	Source        string        `json:"source"`
	Success       bool          `json:"success"`
	Error         string        `json:"error,omitempty"`
	ErrorCategory string        `json:"error_category,omitempty"`
	Status        string        `json:"status,omitempty"`
	Points        int           `json:"points"`
	Dimension     int           `json:"dimension"`
	Reduced       bool          `json:"reduced"`
	Message       string        `json:"message,omitempty"`
	Latency       time.Duration `json:"latency"`
	RequestCount  int           `json:"request_count,omitempty"`
	BytesRead     int           `json:"bytes_read,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Selection is a resolved point click.
type Selection struct {
	Index   int                  `json:"index"`
	Details []interaction.Detail `json:"details"`
}

// Result represents a single rendered view of a collection
type Result struct {
	Collection    string        `json:"collection"`
	View          string        `json:"view"`
	Source        string        `json:"source"`
	ColorBy       string        `json:"color_by"`
	Mode          string        `json:"mode,omitempty"`
	Palette       string        `json:"palette,omitempty"`
	Success       bool          `json:"success"`
	Error         string        `json:"error,omitempty"`
	ErrorCategory string        `json:"error_category,omitempty"`
	Status        string        `json:"status"`
	Plotted       bool          `json:"plotted"`
	Dimension     int           `json:"dimension"`
	Points        int           `json:"points"`
	PlottedPoints int           `json:"plotted_points"`
	TraceCount    int           `json:"trace_count"`
	VisibleTraces int           `json:"visible_traces"`
	Isolated      string        `json:"isolated,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
	Latency       time.Duration `json:"latency"`
	Timestamp     time.Time     `json:"timestamp"`

	Traces    []plot.Trace `json:"traces,omitempty"`
	Ranges    plot.Ranges  `json:"ranges"`
	Selection *Selection   `json:"selection,omitempty"`
}

// Summary contains aggregated metrics for a collection
type Summary struct {
	Collection      string        `json:"collection"`
	Source          string        `json:"source,omitempty"`
	FetchSucceeded  bool          `json:"fetch_succeeded"`
	FetchLatency    time.Duration `json:"fetch_latency"`
	FetchRequests   int           `json:"fetch_requests"`
	Points          int           `json:"points"`
	Dimension       int           `json:"dimension"`
	TotalViews      int           `json:"total_views"`
	SuccessfulViews int           `json:"successful_views"`
	FailedViews     int           `json:"failed_views"`
	PlottedViews    int           `json:"plotted_views"`
	SuccessRate     float64       `json:"success_rate"`
	TotalTraces     int           `json:"total_traces"`
	AvgTraces       float64       `json:"avg_traces"`
	TotalLatency    time.Duration `json:"total_latency"`
	AvgLatency      time.Duration `json:"avg_latency"`
	MinLatency      time.Duration `json:"min_latency"`
	MaxLatency      time.Duration `json:"max_latency"`
	P50Latency      time.Duration `json:"p50_latency"`
	P95Latency      time.Duration `json:"p95_latency"`

	// Error breakdown
	ErrorBreakdown map[string]int `json:"error_breakdown,omitempty"`
}

// Collector handles collection and aggregation of fetch and view results
type Collector struct {
	fetches []Fetch
	results []Result
	mu      sync.RWMutex
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		results: make([]Result, 0),
	}
}

// AddFetch records a collection fetch
func (c *Collector) AddFetch(f Fetch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetches = append(c.fetches, f)
}

// GetFetches returns all recorded fetches
func (c *Collector) GetFetches() []Fetch {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fetches := make([]Fetch, len(c.fetches))
	copy(fetches, c.fetches)
	return fetches
}

// FetchFor returns the last fetch recorded for a collection.
func (c *Collector) FetchFor(collection string) (Fetch, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.fetches) - 1; i >= 0; i-- {
		if c.fetches[i].Collection == collection {
			return c.fetches[i], true
		}
	}
	return Fetch{}, false
}

// AddResult adds a view result to the collector
func (c *Collector) AddResult(r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = append(c.results, r)
}

// GetResults returns all collected results
func (c *Collector) GetResults() []Result {
	c.mu.RLock()
	defer c.mu.RUnlock()
	results := make([]Result, len(c.results))
	copy(results, c.results)
	return results
}

// GetResultsByCollection returns results filtered by collection, in view order
func (c *Collector) GetResultsByCollection(collection string) []Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var filtered []Result
	for _, r := range c.results {
		if r.Collection == collection {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// GetResultsByView returns results filtered by view name
func (c *Collector) GetResultsByView(view string) []Result {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var filtered []Result
	for _, r := range c.results {
		if r.View == view {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// ComputeSummary computes summary metrics for a collection
func (c *Collector) ComputeSummary(collection string) *Summary {
	summary := &Summary{
		Collection:     collection,
		ErrorBreakdown: make(map[string]int),
	}

	if f, ok := c.FetchFor(collection); ok {
		summary.Source = f.Source
		summary.FetchSucceeded = f.Success
		summary.FetchLatency = f.Latency
		summary.FetchRequests = f.RequestCount
		summary.Points = f.Points
		summary.Dimension = f.Dimension
		if !f.Success && f.ErrorCategory != "" {
			summary.ErrorBreakdown["fetch_"+f.ErrorCategory]++
		}
	}

	results := c.GetResultsByCollection(collection)
	if len(results) == 0 {
		return summary
	}

	summary.TotalViews = len(results)
	latencies := make([]time.Duration, 0, len(results))
	for i, r := range results {
		if r.Success {
			summary.SuccessfulViews++
		} else {
			summary.FailedViews++
			if r.ErrorCategory != "" {
				summary.ErrorBreakdown[r.ErrorCategory]++
			} else if r.Error != "" {
				summary.ErrorBreakdown["unknown"]++
			}
		}
		if r.Plotted {
			summary.PlottedViews++
		}
		summary.TotalTraces += r.TraceCount

		summary.TotalLatency += r.Latency
		latencies = append(latencies, r.Latency)
		if i == 0 || r.Latency < summary.MinLatency {
			summary.MinLatency = r.Latency
		}
		if r.Latency > summary.MaxLatency {
			summary.MaxLatency = r.Latency
		}
	}

	n := len(results)
	summary.AvgLatency = summary.TotalLatency / time.Duration(n)
	summary.AvgTraces = float64(summary.TotalTraces) / float64(n)
	summary.SuccessRate = float64(summary.SuccessfulViews) / float64(n) * 100
	summary.P50Latency = calculatePercentileDuration(latencies, 0.50)
	summary.P95Latency = calculatePercentileDuration(latencies, 0.95)

	return summary
}

// calculatePercentileDuration calculates the percentile of a duration slice
func calculatePercentileDuration(durations []time.Duration, percentile float64) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(durations))
	copy(sorted, durations)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	index := int(float64(len(sorted)-1) * percentile)
	if index < 0 {
		index = 0
	}
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// GetAllCollections returns every collection seen in fetches or results, sorted
func (c *Collector) GetAllCollections() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	for _, f := range c.fetches {
		seen[f.Collection] = true
	}
	for _, r := range c.results {
		seen[r.Collection] = true
	}

	collections := make([]string, 0, len(seen))
	for name := range seen {
		collections = append(collections, name)
	}
	sort.Strings(collections)
	return collections
}

// GetAllViews returns the view names in first-seen order
func (c *Collector) GetAllViews() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool)
	var views []string
	for _, r := range c.results {
		if !seen[r.View] {
			seen[r.View] = true
			views = append(views, r.View)
		}
	}
	return views
}
