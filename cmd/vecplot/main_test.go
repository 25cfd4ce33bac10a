package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lamim/vecplot/internal/config"
	"github.com/lamim/vecplot/internal/metrics"
	"github.com/lamim/vecplot/internal/report"
)

func TestParseFormats_All(t *testing.T) {
	result := parseFormats("all")
	if len(result) != 1 {
		t.Errorf("expected 1 element for 'all', got %d", len(result))
	}
	if result[0] != "all" {
		t.Errorf("expected 'all', got %s", result[0])
	}
}

func TestParseFormats_List(t *testing.T) {
	result := parseFormats("html, MD,json,,png")
	expected := []string{"html", "md", "json", "png"}
	if len(result) != len(expected) {
		t.Fatalf("expected %d formats, got %v", len(expected), result)
	}
	for i, exp := range expected {
		if result[i] != exp {
			t.Errorf("expected %s at index %d, got %s", exp, i, result[i])
		}
	}
}

func TestParseCollections(t *testing.T) {
	result := parseCollections(" Malware , Benign,,")
	if len(result) != 2 || result[0] != "Malware" || result[1] != "Benign" {
		t.Errorf("expected [Malware Benign], got %v", result)
	}
	if got := parseCollections(""); len(got) != 0 {
		t.Errorf("expected no collections for empty flag, got %v", got)
	}
}

func TestLoadEnvFile_ParsesValues(t *testing.T) {
	t.Setenv("VECPLOT_TEST_KEY1", "")
	t.Setenv("VECPLOT_TEST_KEY2", "")
	t.Setenv("VECPLOT_TEST_KEY3", "")

	envPath := filepath.Join(t.TempDir(), ".env")
	content := `# comment line
VECPLOT_TEST_KEY1=value1

  VECPLOT_TEST_KEY2 = "quoted value"
VECPLOT_TEST_KEY3='single'
NOT_A_PAIR
`
	if err := os.WriteFile(envPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test .env: %v", err)
	}

	loadEnvFile(envPath)

	if got := os.Getenv("VECPLOT_TEST_KEY1"); got != "value1" {
		t.Errorf("expected VECPLOT_TEST_KEY1=value1, got %q", got)
	}
	if got := os.Getenv("VECPLOT_TEST_KEY2"); got != "quoted value" {
		t.Errorf("expected VECPLOT_TEST_KEY2='quoted value', got %q", got)
	}
	if got := os.Getenv("VECPLOT_TEST_KEY3"); got != "single" {
		t.Errorf("expected VECPLOT_TEST_KEY3=single, got %q", got)
	}
}

func TestLoadEnvFile_Missing(t *testing.T) {
	// Should not panic
	loadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
}

func TestLoadConfig_DefaultFallback(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatalf("expected defaults when config.toml is missing, got %v", err)
	}
	if cfg.Backend.Type != config.BackendFastAPI {
		t.Errorf("expected default backend fastapi, got %s", cfg.Backend.Type)
	}
	if len(cfg.Views) == 0 {
		t.Error("expected default views")
	}
}

func TestLoadConfig_ExplicitPathMissing(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "other.toml"))
	if err == nil {
		t.Error("expected error for missing explicit config path")
	}
}

func TestLoadConfig_RoundTripsInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vecplot.toml")
	if err := config.Default().Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected addr :8080, got %s", cfg.Server.Addr)
	}
}

func TestInitializeSource_FastAPI(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.URL = "http://127.0.0.1:8000"

	src, err := initializeSource(cfg, nil)
	if err != nil {
		t.Fatalf("initializeSource failed: %v", err)
	}
	if src.Name() != "fastapi" {
		t.Errorf("expected fastapi source, got %s", src.Name())
	}
}

func TestInitializeSource_Weaviate(t *testing.T) {
	t.Setenv("VECPLOT_TEST_WEAVIATE_KEY", "secret")
	cfg := config.Default()
	cfg.Backend.Type = config.BackendWeaviate
	cfg.Backend.URL = "http://127.0.0.1:8080"
	cfg.Backend.APIKeyEnv = "VECPLOT_TEST_WEAVIATE_KEY"

	src, err := initializeSource(cfg, nil)
	if err != nil {
		t.Fatalf("initializeSource failed: %v", err)
	}
	if src.Name() != "weaviate" {
		t.Errorf("expected weaviate source, got %s", src.Name())
	}
}

func TestInitializeSource_InvalidURL(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.URL = "not a url"

	if _, err := initializeSource(cfg, nil); err == nil {
		t.Error("expected error for invalid backend URL")
	}
}

func TestInitializeSource_UnknownType(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Type = "bogus"

	_, err := initializeSource(cfg, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown backend type") {
		t.Errorf("expected unknown backend type error, got %v", err)
	}
}

func TestEnsureOutputDir(t *testing.T) {
	base := t.TempDir()

	dir, err := ensureOutputDir(base)
	if err != nil {
		t.Fatalf("ensureOutputDir failed: %v", err)
	}
	if filepath.Dir(dir) != base {
		t.Errorf("expected session dir under %s, got %s", base, dir)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Errorf("expected directory at %s", dir)
	}
}

func TestGenerateReports_SelectedFormats(t *testing.T) {
	dir := t.TempDir()
	collector := metrics.NewCollector()
	collector.AddFetch(metrics.Fetch{
		Collection: "Malware",
		Source:     "mock",
		Success:    true,
		Points:     3,
		Dimension:  2,
		Latency:    10 * time.Millisecond,
		Timestamp:  time.Now(),
	})

	generateReports("md,json", report.NewGenerator(collector, dir), dir)

	for _, name := range []string{"report.md", "report.json"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s to be generated: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "report.html")); err == nil {
		t.Error("expected report.html to be skipped")
	}
}

func TestPrintSummary_NoPanic(t *testing.T) {
	collector := metrics.NewCollector()
	collector.AddFetch(metrics.Fetch{Collection: "Broken", Source: "mock", ErrorCategory: "network"})
	collector.AddFetch(metrics.Fetch{Collection: "Malware", Source: "mock", Success: true, Points: 4, Dimension: 3})
	collector.AddResult(metrics.Result{Collection: "Malware", View: "family", Success: true, Plotted: true, TraceCount: 2})

	printBanner()
	printSummary(collector)
}
