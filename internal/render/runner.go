// Package render fetches collections from a backend source and renders every
// configured view of each one.
package render

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lamim/vecplot/internal/backend"
	"github.com/lamim/vecplot/internal/config"
	"github.com/lamim/vecplot/internal/dataset"
	"github.com/lamim/vecplot/internal/debug"
	"github.com/lamim/vecplot/internal/interaction"
	"github.com/lamim/vecplot/internal/metrics"
	"github.com/lamim/vecplot/internal/plot"
	"github.com/lamim/vecplot/internal/progress"
)

// Runner executes fetches and view renders
type Runner struct {
	source      backend.Source
	config      *config.Config
	collector   *metrics.Collector
	progress    *progress.Manager
	debugLogger *debug.Logger
}

// NewRunner creates a new runner
func NewRunner(cfg *config.Config, src backend.Source, prog *progress.Manager, debugLog *debug.Logger) *Runner {
	return &Runner{
		source:      src,
		config:      cfg,
		collector:   metrics.NewCollector(),
		progress:    prog,
		debugLogger: debugLog,
	}
}

// SetProgress replaces the progress manager, once the number of collections
// to render is known.
func (r *Runner) SetProgress(prog *progress.Manager) {
	r.progress = prog
}

// ResolveCollections returns the configured collections, or every collection
// the source lists when none are configured.
func (r *Runner) ResolveCollections(ctx context.Context) ([]string, error) {
	if len(r.config.Collections) > 0 {
		return r.config.Collections, nil
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.General.TimeoutDuration())
	defer cancel()

	if r.debugLogger.IsEnabled() {
		fetchLog := r.debugLogger.StartFetch(r.source.Name(), "", "collections")
		timeoutCtx = backend.WithDebugLogger(timeoutCtx, r.debugLogger)
		timeoutCtx = backend.WithFetchLog(timeoutCtx, fetchLog)
		defer r.debugLogger.EndFetch(fetchLog)
	}

	names, err := r.source.Collections(timeoutCtx)
	if err != nil {
		backend.LogError(timeoutCtx, err.Error(), categorizeError(err), "list collections")
		return nil, err
	}
	return names, nil
}

// Run fetches every collection and renders every view of each one
func (r *Runner) Run(ctx context.Context, collections []string) error {
	if r.progress.IsEnabled() {
		fmt.Println("Starting render...")
	} else {
		fmt.Printf("Rendering %d views for %d collections from %s\n", len(r.config.Views), len(collections), r.source.Name())
		fmt.Printf("Concurrency: %d, Timeout: %s\n\n", r.config.General.Concurrency, r.config.General.Timeout)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.config.General.Concurrency)

	for _, name := range collections {
		g.Go(func() error {
			r.runCollection(gctx, name)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	if r.progress != nil {
		r.progress.Finish()
	}

	fmt.Println("\nRender completed!")
	return ctx.Err()
}

// FetchOptions builds the backend fetch options for a collection from the
// [fetch] config section.
func FetchOptions(cfg config.FetchConfig, collection string) backend.FetchOptions {
	opts := backend.DefaultFetchOptions(collection)
	opts.ApplyReduction = cfg.ApplyReduction()
	opts.Method = cfg.DRMethod
	opts.Components = cfg.NComponents
	opts.Limit = cfg.Limit
	return opts
}

func (r *Runner) runCollection(ctx context.Context, collection string) {
	fetch := metrics.Fetch{
		Collection: collection,
		Source:     r.source.Name(),
		Timestamp:  time.Now(),
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, r.config.General.TimeoutDuration())
	defer cancel()

	var fetchLog *debug.FetchLog
	if r.debugLogger.IsEnabled() {
		fetchLog = r.debugLogger.StartFetch(r.source.Name(), collection, "fetch")
		timeoutCtx = backend.WithDebugLogger(timeoutCtx, r.debugLogger)
		timeoutCtx = backend.WithFetchLog(timeoutCtx, fetchLog)
		defer r.debugLogger.EndFetch(fetchLog)
	}

	if r.progress != nil {
		r.progress.Start(collection, "fetch")
	}
	if !r.progress.IsEnabled() {
		fmt.Printf("[%s] Fetching '%s'...\n", r.source.Name(), collection)
	}

	start := time.Now()
	result, err := r.source.Fetch(timeoutCtx, FetchOptions(r.config.Fetch, collection))
	fetch.Latency = time.Since(start)

	if err != nil {
		fetch.Error = err.Error()
		fetch.ErrorCategory = categorizeError(err)
		r.debugLogger.LogError(fetchLog, err.Error(), fetch.ErrorCategory, "fetch execution")
		r.debugLogger.SetStatus(fetchLog, debug.StatusFailed)
		r.collector.AddFetch(fetch)

		if r.progress != nil {
			r.progress.Complete(collection, "fetch", false)
			r.progress.Skip(len(r.config.Views))
		}
		r.progress.PrintAbove("  ✗ %s failed: %v", collection, err)

		for _, view := range r.config.Views {
			r.collector.AddResult(metrics.Result{
				Collection:    collection,
				View:          view.Name,
				Source:        r.source.Name(),
				ColorBy:       view.ColorBy,
				Error:         fmt.Sprintf("fetch failed: %v", err),
				ErrorCategory: "fetch_failed",
				Status:        dataset.StatusNoData,
				Timestamp:     time.Now(),
			})
		}
		return
	}

	ds := result.Dataset
	fetch.Success = true
	fetch.Points = ds.Len()
	fetch.Dimension = ds.Dimension()
	fetch.Reduced = ds.Reduced
	fetch.Message = ds.Message
	fetch.Status = ds.Validate()
	fetch.RequestCount = result.RequestCount
	fetch.BytesRead = result.BytesRead
	if result.Latency > 0 {
		fetch.Latency = result.Latency
	}
	r.collector.AddFetch(fetch)

	r.debugLogger.SetMetadata(fetchLog, "points", fetch.Points)
	r.debugLogger.SetMetadata(fetchLog, "dimension", fetch.Dimension)
	r.debugLogger.SetMetadata(fetchLog, "latency_ms", fetch.Latency.Milliseconds())

	if r.progress != nil {
		r.progress.Complete(collection, "fetch", true)
	}
	if !r.progress.IsEnabled() {
		fmt.Printf("  ✓ %s: %d points, %dD, %v latency\n",
			collection, fetch.Points, fetch.Dimension, fetch.Latency.Round(time.Millisecond))
	}

	for _, view := range r.config.Views {
		if r.progress != nil {
			r.progress.Start(collection, view.Name)
		}

		res := RenderView(ds, view)
		res.Collection = collection
		res.Source = r.source.Name()

		if r.progress != nil {
			r.progress.Complete(collection, view.Name, res.Success)
		}
		if !r.progress.IsEnabled() {
			mark := "✓"
			if !res.Success {
				mark = "✗"
			}
			fmt.Printf("  %s %s/%s: %s\n", mark, collection, view.Name, res.Status)
		}
		for _, w := range res.Warnings {
			r.debugLogger.LogError(fetchLog, w, "view_warning", view.Name)
		}

		r.collector.AddResult(res)
	}
}

// RenderView renders one view of a dataset: it builds the interaction state
// for the view, replays its legend clicks, transforms the data and resolves
// the configured point selection.
func RenderView(ds *dataset.Dataset, view config.ViewConfig) metrics.Result {
	start := time.Now()
	res := metrics.Result{
		View:      view.Name,
		ColorBy:   view.ColorBy,
		Timestamp: start,
	}
	if ds != nil {
		res.Collection = ds.Collection
		res.Points = ds.Len()
	}

	state, err := viewState(view)
	if err != nil {
		res.Error = err.Error()
		res.ErrorCategory = "validation"
		res.Latency = time.Since(start)
		return res
	}
	res.Mode = string(state.Mode())
	res.Palette = string(state.Policy)

	for _, name := range view.LegendClicks {
		names := interaction.Names(state.Render(ds).Traces)
		curve := slices.Index(names, name)
		if curve < 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("legend entry %q not found", name))
			continue
		}
		state, _ = state.LegendClick(names, curve)
	}

	out := state.Render(ds)
	res.Status = out.Status
	res.Dimension = out.Dimension
	res.Traces = out.Traces
	res.Plotted = out.Traces != nil
	res.Success = res.Plotted
	if !res.Plotted {
		res.Error = out.Status
		res.ErrorCategory = "validation"
	} else {
		res.Ranges = plot.AxisRanges(ds)
	}
	if state.Mode() == interaction.Isolate && state.Isolated != nil {
		res.Isolated = state.Isolated.Value
	}

	res.TraceCount = len(out.Traces)
	for _, t := range out.Traces {
		res.PlottedPoints += t.Len()
		if t.Shown() {
			res.VisibleTraces++
		}
	}

	if view.SelectPoint != nil {
		sel, ok := interaction.PointClick(ds, []int{*view.SelectPoint})
		if ok && sel != nil {
			res.Selection = &metrics.Selection{Index: sel.Index, Details: sel.Details(false)}
		} else {
			res.Warnings = append(res.Warnings, fmt.Sprintf("select_point %d has no record", *view.SelectPoint))
		}
	}

	res.Latency = time.Since(start)
	return res
}

func viewState(view config.ViewConfig) (interaction.State, error) {
	colorBy, err := plot.ParseColorBy(view.ColorBy)
	if err != nil {
		return interaction.State{}, err
	}
	mode, err := interaction.ParseMode(view.Mode)
	if err != nil {
		return interaction.State{}, err
	}
	policy, err := plot.ParsePolicy(view.Palette)
	if err != nil {
		return interaction.State{}, err
	}

	state := interaction.NewState(colorBy).WithMode(colorBy, mode)
	state.Policy = policy
	return state, nil
}

// GetCollector returns the metrics collector
func (r *Runner) GetCollector() *metrics.Collector {
	return r.collector
}
