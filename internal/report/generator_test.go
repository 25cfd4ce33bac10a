package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lamim/vecplot/internal/config"
	"github.com/lamim/vecplot/internal/dataset"
	"github.com/lamim/vecplot/internal/metrics"
	"github.com/lamim/vecplot/internal/render"
)

func record(family, reporter string, cluster int64) dataset.Metadata {
	m := dataset.Metadata{UUID: family + "-" + reporter, VectorLength: 768}
	if family != "" {
		m.Properties.MalwareFamily = dataset.Some(family)
	}
	if reporter != "" {
		m.Properties.Reporter = dataset.Some(reporter)
	}
	m.Properties.FileSize = dataset.SomeInt(1048576)
	m.ClusterLabel = dataset.SomeInt(cluster)
	return m
}

func sampleDataset() *dataset.Dataset {
	return &dataset.Dataset{
		Collection: "Malware|1",
		Reduced:    true,
		Points:     []dataset.Point{{0, 0}, {1, 2}, {2, 1}, {3, 3}},
		Metadata: []dataset.Metadata{
			record("Emotet", "abuse_ch", 0),
			record("Emotet", "vxunderground", 0),
			record("TrickBot", "abuse_ch", 1),
			record("", "abuse_ch", -1),
		},
	}
}

func setupMockCollector(t *testing.T) *metrics.Collector {
	t.Helper()
	c := metrics.NewCollector()
	ds := sampleDataset()

	c.AddFetch(metrics.Fetch{
		Collection:   ds.Collection,
		Source:       "fastapi",
		Success:      true,
		Points:       ds.Len(),
		Dimension:    2,
		Reduced:      true,
		Latency:      120 * time.Millisecond,
		RequestCount: 1,
	})

	first := 0
	views := []config.ViewConfig{
		{Name: "component", ColorBy: "component"},
		{Name: "family", ColorBy: "family", SelectPoint: &first},
		{Name: "emotet", ColorBy: "family", LegendClicks: []string{"Emotet"}},
		{Name: "cluster", ColorBy: "cluster", Mode: "multiselect", LegendClicks: []string{"Cluster 1"}},
	}
	for _, v := range views {
		res := render.RenderView(ds, v)
		res.Source = "fastapi"
		if !res.Plotted {
			t.Fatalf("view %s should plot: %+v", v.Name, res)
		}
		c.AddResult(res)
	}

	c.AddFetch(metrics.Fetch{
		Collection:    "Broken",
		Source:        "fastapi",
		Error:         "backend error (status 404): Collection 'Broken' does not exist",
		ErrorCategory: "client_error",
	})
	c.AddResult(metrics.Result{
		Collection:    "Broken",
		View:          "family",
		Source:        "fastapi",
		ColorBy:       "family",
		Error:         "fetch failed",
		ErrorCategory: "fetch_failed",
		Status:        dataset.StatusNoData,
	})

	return c
}

func readReport(t *testing.T, dir, name string) string {
	t.Helper()
	content, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(content)
}

func TestLegend_Entries(t *testing.T) {
	ds := sampleDataset()
	res := render.RenderView(ds, config.ViewConfig{Name: "cluster", ColorBy: "cluster", Mode: "multiselect", LegendClicks: []string{"Cluster 1"}})

	entries := Legend(res.Traces)
	if len(entries) != 3 {
		t.Fatalf("expected 3 legend entries, got %d", len(entries))
	}
	if entries[0].Name != "Cluster 0" || entries[0].Points != 2 || entries[0].Visible {
		t.Errorf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Name != "Cluster 1" || !entries[1].Visible {
		t.Errorf("clicked cluster should stay visible, got %+v", entries[1])
	}
	if entries[2].Name != "Unclustered" || entries[2].Color != "#b0b0b0" {
		t.Errorf("expected neutral unclustered entry, got %+v", entries[2])
	}
}

func TestLegend_ComponentScale(t *testing.T) {
	res := render.RenderView(sampleDataset(), config.ViewConfig{Name: "component", ColorBy: "component"})
	entries := Legend(res.Traces)
	if len(entries) != 1 || entries[0].Color != ScaleColor || entries[0].Name != "Component 1" {
		t.Errorf("unexpected component legend %+v", entries)
	}
}

func TestTerminalLegend(t *testing.T) {
	res := render.RenderView(sampleDataset(), config.ViewConfig{Name: "family", ColorBy: "family"})
	res.Collection = "Malware1"

	out := TerminalLegend(res)
	for _, want := range []string{"Malware1 / family", "Emotet (2)", "TrickBot (1)", "Unknown (1)"} {
		if !strings.Contains(out, want) {
			t.Errorf("terminal legend missing %q:\n%s", want, out)
		}
	}

	failed := TerminalLegend(metrics.Result{Collection: "c", View: "v", Error: "no data"})
	if !strings.Contains(failed, "✗ no data") {
		t.Errorf("expected failure line, got:\n%s", failed)
	}
}

func TestHoverMarkdown(t *testing.T) {
	got := hoverMarkdown("Family: <b>Emotet</b><br>Coords: [0.00, 0.00]")
	if !strings.Contains(got, "**Emotet**") {
		t.Errorf("expected bold family, got %q", got)
	}
	if strings.Contains(got, "<br>") || strings.Contains(got, "\n") {
		t.Errorf("expected a single line, got %q", got)
	}
}

func TestParseHex(t *testing.T) {
	r, g, b, _ := parseHex("#e6194b").RGBA()
	if r>>8 != 0xe6 || g>>8 != 0x19 || b>>8 != 0x4b {
		t.Errorf("unexpected color %x %x %x", r>>8, g>>8, b>>8)
	}
	nr, ng, nb, _ := parseHex("bogus").RGBA()
	if nr>>8 != 0xb0 || ng>>8 != 0xb0 || nb>>8 != 0xb0 {
		t.Errorf("expected neutral fallback, got %x %x %x", nr>>8, ng>>8, nb>>8)
	}
}

func TestGenerateMarkdown_Content(t *testing.T) {
	c := setupMockCollector(t)
	tmpDir := t.TempDir()

	if err := NewGenerator(c, tmpDir).GenerateMarkdown(); err != nil {
		t.Fatalf("GenerateMarkdown failed: %v", err)
	}
	content := readReport(t, tmpDir, "report.md")

	checks := []string{
		"# Vector Plot Report",
		`| Malware\|1 | fastapi | 4 | 2 |`,
		"| Broken | fastapi | 0 | 0 | ❌ failed |",
		"Fetch failed (client_error)",
		"### emotet (family)",
		`Isolated: **Emotet**`,
		"**Selected point 0**",
		"| Family | Emotet |",
		"| File Size | 1,048,576 bytes |",
		"**Emotet**",
		"legend only",
	}
	for _, want := range checks {
		if !strings.Contains(content, want) {
			t.Errorf("markdown report missing %q", want)
		}
	}
}

func TestGenerateMarkdown_EmptyResults(t *testing.T) {
	tmpDir := t.TempDir()
	if err := NewGenerator(metrics.NewCollector(), tmpDir).GenerateMarkdown(); err != nil {
		t.Fatalf("GenerateMarkdown failed: %v", err)
	}
	if !strings.Contains(readReport(t, tmpDir, "report.md"), "# Vector Plot Report") {
		t.Error("report should still contain title even with empty results")
	}
}

func TestGenerateJSON_Structure(t *testing.T) {
	c := setupMockCollector(t)
	tmpDir := t.TempDir()

	if err := NewGenerator(c, tmpDir).GenerateJSON(); err != nil {
		t.Fatalf("GenerateJSON failed: %v", err)
	}

	var data map[string]json.RawMessage
	if err := json.Unmarshal([]byte(readReport(t, tmpDir, "report.json")), &data); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	for _, key := range []string{"timestamp", "collections", "views", "fetches", "results", "summaries"} {
		if _, ok := data[key]; !ok {
			t.Errorf("JSON report missing %q", key)
		}
	}

	var summaries map[string]metrics.Summary
	if err := json.Unmarshal(data["summaries"], &summaries); err != nil {
		t.Fatalf("invalid summaries: %v", err)
	}
	s := summaries["Malware|1"]
	if s.TotalViews != 4 || s.PlottedViews != 4 || !s.FetchSucceeded {
		t.Errorf("unexpected summary %+v", s)
	}
	if summaries["Broken"].ErrorBreakdown["fetch_client_error"] != 1 {
		t.Errorf("expected fetch error in breakdown, got %v", summaries["Broken"].ErrorBreakdown)
	}
}

func TestGenerateHTML_Structure(t *testing.T) {
	c := setupMockCollector(t)
	tmpDir := t.TempDir()

	if err := NewGenerator(c, tmpDir).GenerateHTML(); err != nil {
		t.Fatalf("GenerateHTML failed: %v", err)
	}
	content := readReport(t, tmpDir, "report.html")

	checks := []string{
		"<!DOCTYPE html>",
		PlotlyURL,
		`<div id="plot-1" class="plot">`,
		`Plotly.newPlot("plot-4"`,
		`"showlegend":false`,
		`"type":"scattergl"`,
		`"visible":"legendonly"`,
		`<span class="swatch scale">`,
		"<h2>Malware|1</h2>",
		"Fetch failed (client_error)",
		"<th colspan=\"2\">Point 0</th>",
	}
	for _, want := range checks {
		if !strings.Contains(content, want) {
			t.Errorf("HTML report missing %q", want)
		}
	}
	if strings.Contains(content, `Plotly.newPlot("plot-0"`) {
		t.Error("failed view should not get a plot")
	}
}

func TestGenerateHTML_EscapesNames(t *testing.T) {
	c := metrics.NewCollector()
	c.AddResult(metrics.Result{Collection: "<script>", View: "v", ColorBy: "family", Error: "x"})
	tmpDir := t.TempDir()

	if err := NewGenerator(c, tmpDir).GenerateHTML(); err != nil {
		t.Fatalf("GenerateHTML failed: %v", err)
	}
	content := readReport(t, tmpDir, "report.html")
	if !strings.Contains(content, "<h2>&lt;script&gt;</h2>") {
		t.Error("collection names should be escaped")
	}
}

func TestSnapshotName(t *testing.T) {
	got := SnapshotName(metrics.Result{Collection: "Malware|1", View: "family drill"})
	if got != "Malware_1_family_drill.png" {
		t.Errorf("unexpected snapshot name %q", got)
	}
}

func TestGenerateAll_CreatesAll(t *testing.T) {
	c := setupMockCollector(t)
	tmpDir := t.TempDir()

	if err := NewGenerator(c, tmpDir).GenerateAll(); err != nil {
		t.Fatalf("GenerateAll failed: %v", err)
	}

	files := []string{"report.md", "report.json", "report.html", "Malware_1_family.png", "Malware_1_cluster.png"}
	for _, file := range files {
		if _, err := os.Stat(filepath.Join(tmpDir, file)); err != nil {
			t.Errorf("%s was not created: %v", file, err)
		}
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "Broken_family.png")); err == nil {
		t.Error("failed view should not get a snapshot")
	}

	png := readReport(t, tmpDir, "Malware_1_component.png")
	if !bytes.HasPrefix([]byte(png), []byte("\x89PNG")) {
		t.Error("snapshot is not a PNG")
	}
}
