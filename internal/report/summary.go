// Package report generates HTML, Markdown, JSON and PNG reports from rendered views.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lamim/vecplot/internal/metrics"
)

// hoverSampleCount is how many hover labels the markdown report shows per trace.
const hoverSampleCount = 2

// Generator creates reports from render results
type Generator struct {
	collector *metrics.Collector
	outputDir string
}

// NewGenerator creates a new report generator
func NewGenerator(collector *metrics.Collector, outputDir string) *Generator {
	return &Generator{
		collector: collector,
		outputDir: outputDir,
	}
}

// GenerateAll generates all report formats
func (g *Generator) GenerateAll() error {
	if err := g.GenerateMarkdown(); err != nil {
		return fmt.Errorf("failed to generate markdown report: %w", err)
	}
	if err := g.GenerateJSON(); err != nil {
		return fmt.Errorf("failed to generate JSON report: %w", err)
	}
	if err := g.GenerateHTML(); err != nil {
		return fmt.Errorf("failed to generate HTML report: %w", err)
	}
	if err := g.GeneratePNG(); err != nil {
		return fmt.Errorf("failed to generate PNG snapshots: %w", err)
	}
	return nil
}

// GenerateMarkdown creates a markdown summary report
func (g *Generator) GenerateMarkdown() error {
	collections := g.collector.GetAllCollections()
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	var sb strings.Builder
	sb.WriteString("# Vector Plot Report\n\n")
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", timestamp))

	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Collection | Source | Points | Dim | Fetch Latency | Views | Plotted | Avg Traces |\n")
	sb.WriteString("|------------|--------|--------|-----|---------------|-------|---------|------------|\n")

	for _, collection := range collections {
		s := g.collector.ComputeSummary(collection)
		fetch := fmt.Sprintf("%v", s.FetchLatency.Round(time.Millisecond))
		if !s.FetchSucceeded {
			fetch = "❌ failed"
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %d | %d | %s | %d | %d/%d | %.1f |\n",
			escapeMD(collection),
			s.Source,
			s.Points,
			s.Dimension,
			fetch,
			s.TotalViews,
			s.PlottedViews,
			s.TotalViews,
			s.AvgTraces,
		))
	}
	sb.WriteString("\n")

	for _, collection := range collections {
		sb.WriteString(fmt.Sprintf("## %s\n\n", collection))

		if f, ok := g.collector.FetchFor(collection); ok {
			switch {
			case !f.Success:
				sb.WriteString(fmt.Sprintf("Fetch failed (%s): %s\n\n", f.ErrorCategory, f.Error))
			case f.Message != "":
				sb.WriteString(fmt.Sprintf("> %s\n\n", f.Message))
			}
		}

		for _, r := range g.collector.GetResultsByCollection(collection) {
			writeViewMarkdown(&sb, r)
		}
	}

	outputPath := filepath.Join(g.outputDir, "report.md")
	// #nosec G306 - 0640 allows owner/group to read, which is appropriate for report files
	return os.WriteFile(outputPath, []byte(sb.String()), 0640)
}

func writeViewMarkdown(sb *strings.Builder, r metrics.Result) {
	status := "✅ Plotted"
	if !r.Plotted {
		status = "❌ Not plotted"
	}
	sb.WriteString(fmt.Sprintf("### %s (%s)\n\n", r.View, r.ColorBy))
	sb.WriteString(fmt.Sprintf("%s | mode: %s | %s\n\n", status, orDash(r.Mode), orDash(r.Status)))
	if r.Isolated != "" {
		sb.WriteString(fmt.Sprintf("Isolated: **%s**\n\n", r.Isolated))
	}
	for _, w := range r.Warnings {
		sb.WriteString(fmt.Sprintf("- ⚠️ %s\n", w))
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("\n")
	}

	if len(r.Traces) > 0 {
		sb.WriteString("| Trace | Color | Points | Visible | Sample |\n")
		sb.WriteString("|-------|-------|--------|---------|--------|\n")
		for i, e := range Legend(r.Traces) {
			visible := "yes"
			if !e.Visible {
				visible = "legend only"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %d | %s | %s |\n",
				escapeMD(e.Name),
				orDash(e.Color),
				e.Points,
				visible,
				escapeMD(strings.Join(hoverSamples(r.Traces[i], hoverSampleCount), "<br>")),
			))
		}
		sb.WriteString("\n")
	}

	if r.Selection != nil {
		sb.WriteString(fmt.Sprintf("**Selected point %d**\n\n", r.Selection.Index))
		sb.WriteString("| Field | Value |\n")
		sb.WriteString("|-------|-------|\n")
		for _, d := range r.Selection.Details {
			sb.WriteString(fmt.Sprintf("| %s | %s |\n", d.Label, escapeMD(d.Value)))
		}
		sb.WriteString("\n")
	}
}

// GenerateJSON creates a JSON report with raw data
func (g *Generator) GenerateJSON() error {
	data := map[string]interface{}{
		"timestamp":   time.Now(),
		"collections": g.collector.GetAllCollections(),
		"views":       g.collector.GetAllViews(),
		"fetches":     g.collector.GetFetches(),
		"results":     g.collector.GetResults(),
	}

	summaries := make(map[string]*metrics.Summary)
	for _, collection := range g.collector.GetAllCollections() {
		summaries[collection] = g.collector.ComputeSummary(collection)
	}
	data["summaries"] = summaries

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	outputPath := filepath.Join(g.outputDir, "report.json")
	// #nosec G306 - 0640 allows owner/group to read, which is appropriate for report files
	return os.WriteFile(outputPath, jsonData, 0640)
}

// PrintLegends writes a terminal legend for every plotted view.
func (g *Generator) PrintLegends() {
	for _, r := range g.collector.GetResults() {
		fmt.Println(TerminalLegend(r))
	}
}

func escapeMD(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
