package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
collections = ["Malware1", "Malware2"]

[general]
concurrency = 4
timeout = "90s"
output_dir = "./output"

[backend]
type = "Weaviate"
url = "http://weaviate:8080"
api_key_env = "WEAVIATE_API_KEY"
rate_limit = 5

[fetch]
apply_dr = false
dr_method = "umap"
n_components = 2
limit = 500

[[views]]
name = "families"
color_by = "family"
mode = "multiselect"
palette = "hash"
legend_clicks = ["Emotet"]
select_point = 3

[server]
addr = "127.0.0.1:9000"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.General.Concurrency != 4 {
		t.Errorf("expected concurrency 4, got %d", cfg.General.Concurrency)
	}
	if cfg.General.TimeoutDuration().Seconds() != 90 {
		t.Errorf("expected 90s timeout, got %v", cfg.General.TimeoutDuration())
	}
	if cfg.Backend.Type != BackendWeaviate {
		t.Errorf("expected backend type to be normalized to weaviate, got %s", cfg.Backend.Type)
	}
	if cfg.Backend.RateLimit != 5 || cfg.Backend.MaxRetries != 3 {
		t.Errorf("unexpected backend tuning %+v", cfg.Backend)
	}
	if cfg.Fetch.ApplyReduction() {
		t.Error("expected apply_dr = false to be honored")
	}
	if cfg.Fetch.DRMethod != "umap" || cfg.Fetch.NComponents != 2 || cfg.Fetch.Limit != 500 {
		t.Errorf("unexpected fetch config %+v", cfg.Fetch)
	}
	if len(cfg.Collections) != 2 {
		t.Errorf("expected 2 collections, got %d", len(cfg.Collections))
	}
	if len(cfg.Views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(cfg.Views))
	}
	view := cfg.Views[0]
	if view.ColorBy != "family" || view.Mode != "multiselect" || view.Palette != "hash" {
		t.Errorf("unexpected view %+v", view)
	}
	if view.SelectPoint == nil || *view.SelectPoint != 3 {
		t.Errorf("expected select_point 3, got %v", view.SelectPoint)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("expected server addr, got %s", cfg.Server.Addr)
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	cfg, err := Load(writeConfig(t, "# empty\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.General.Concurrency != 2 {
		t.Errorf("expected default concurrency 2, got %d", cfg.General.Concurrency)
	}
	if cfg.General.Timeout != "60s" {
		t.Errorf("expected default timeout 60s, got %s", cfg.General.Timeout)
	}
	if cfg.General.OutputDir != "./results" {
		t.Errorf("expected default output_dir ./results, got %s", cfg.General.OutputDir)
	}
	if cfg.Backend.Type != BackendFastAPI {
		t.Errorf("expected default backend fastapi, got %s", cfg.Backend.Type)
	}
	if !cfg.Fetch.ApplyReduction() || cfg.Fetch.DRMethod != "pacmap" || cfg.Fetch.NComponents != 3 {
		t.Errorf("unexpected default fetch config %+v", cfg.Fetch)
	}
	if len(cfg.Views) != 4 {
		t.Fatalf("expected one default view per color mode, got %d", len(cfg.Views))
	}
	if cfg.Views[0].ColorBy != "component" || cfg.Views[3].ColorBy != "cluster" {
		t.Errorf("unexpected default view order %+v", cfg.Views)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.Server.Addr)
	}
	if cfg.Server.SessionTTLDuration() != 30*time.Minute {
		t.Errorf("expected default session_ttl 30m, got %s", cfg.Server.SessionTTL)
	}
}

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoad_MissingFileError(t *testing.T) {
	_, err := Load("/nonexistent/path/config.toml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !os.IsNotExist(err) {
		t.Logf("error is wrapped: %v", err)
	}
}

func TestLoad_InvalidTOMLError(t *testing.T) {
	if _, err := Load(writeConfig(t, `this is not valid toml [[[`)); err == nil {
		t.Fatal("expected error for invalid TOML, got nil")
	}
}

func TestLoad_PathTraversalRejected(t *testing.T) {
	_, err := Load("../../etc/passwd")
	if err == nil || !strings.Contains(err.Error(), "invalid config path") {
		t.Fatalf("expected invalid config path error, got %v", err)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "backend type",
			content: "[backend]\ntype = \"pinecone\"\n",
			want:    "backend has invalid type: pinecone",
		},
		{
			name:    "dr method",
			content: "[fetch]\ndr_method = \"tsne\"\n",
			want:    "fetch has invalid dr_method: tsne",
		},
		{
			name:    "components",
			content: "[fetch]\nn_components = 4\n",
			want:    "fetch has invalid n_components: 4",
		},
		{
			name:    "color mode",
			content: "[[views]]\nname = \"bad\"\ncolor_by = \"size\"\n",
			want:    "view 'bad' has invalid color_by: size",
		},
		{
			name:    "mode",
			content: "[[views]]\ncolor_by = \"family\"\nmode = \"lasso\"\n",
			want:    "view 'family' has invalid mode: lasso",
		},
		{
			name:    "palette",
			content: "[[views]]\ncolor_by = \"reporter\"\npalette = \"random\"\n",
			want:    "view 'reporter' has invalid palette: random",
		},
		{
			name:    "duplicate view",
			content: "[[views]]\ncolor_by = \"family\"\n[[views]]\ncolor_by = \"family\"\n",
			want:    "view 'family' is defined more than once",
		},
		{
			name:    "select point",
			content: "[[views]]\ncolor_by = \"family\"\nselect_point = -1\n",
			want:    "view 'family' has invalid select_point: -1",
		},
		{
			name:    "log format",
			content: "[server]\nlog_format = \"xml\"\n",
			want:    "server has invalid log_format: xml",
		},
		{
			name:    "log level",
			content: "[server]\nlog_level = \"loud\"\n",
			want:    "server has invalid log_level: loud",
		},
		{
			name:    "session ttl",
			content: "[server]\nsession_ttl = \"forever\"\n",
			want:    "server has invalid session_ttl: forever",
		},
		{
			name:    "publish bucket",
			content: "[publish]\nenabled = true\nendpoint = \"localhost:9000\"\n",
			want:    "publish is enabled but no bucket is set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if err.Error() != tt.want {
				t.Errorf("unexpected error message: %v", err)
			}
		})
	}
}

func TestSave_LoadRoundtrip(t *testing.T) {
	point := 7
	disabled := false
	original := &Config{
		General: GeneralConfig{
			Concurrency: 3,
			Timeout:     "45s",
			OutputDir:   "./test-output",
		},
		Backend:     BackendConfig{Type: BackendFastAPI, URL: "http://localhost:8000", RateLimit: 1, MaxRetries: 2},
		Fetch:       FetchConfig{ApplyDR: &disabled, DRMethod: "trimap", NComponents: 2},
		Collections: []string{"Malware1"},
		Views: []ViewConfig{
			{Name: "clusters", ColorBy: "cluster", LegendClicks: []string{"Cluster 0"}, SelectPoint: &point},
		},
	}

	configPath := filepath.Join(t.TempDir(), "roundtrip.toml")
	if err := original.Save(configPath); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.General.Concurrency != original.General.Concurrency {
		t.Errorf("concurrency mismatch: %d vs %d", loaded.General.Concurrency, original.General.Concurrency)
	}
	if loaded.Fetch.ApplyReduction() {
		t.Error("apply_dr false was lost in roundtrip")
	}
	if loaded.Fetch.DRMethod != "trimap" {
		t.Errorf("dr_method mismatch: %s", loaded.Fetch.DRMethod)
	}
	if len(loaded.Views) != 1 || loaded.Views[0].SelectPoint == nil || *loaded.Views[0].SelectPoint != point {
		t.Errorf("views mismatch: %+v", loaded.Views)
	}
	if len(loaded.Views[0].LegendClicks) != 1 || loaded.Views[0].LegendClicks[0] != "Cluster 0" {
		t.Errorf("legend clicks mismatch: %v", loaded.Views[0].LegendClicks)
	}
}

func TestTimeoutDuration_Parse(t *testing.T) {
	tests := []struct {
		input    string
		expected int64 // milliseconds
	}{
		{"30s", 30000},
		{"1m", 60000},
		{"500ms", 500},
		{"2h", 7200000},
	}

	for _, tt := range tests {
		g := GeneralConfig{Timeout: tt.input}
		d := g.TimeoutDuration()
		if d.Milliseconds() != tt.expected {
			t.Errorf("TimeoutDuration(%s) = %dms, want %dms", tt.input, d.Milliseconds(), tt.expected)
		}
	}
}

func TestTimeoutDuration_Invalid(t *testing.T) {
	g := GeneralConfig{Timeout: "invalid"}
	d := g.TimeoutDuration()
	if d.Seconds() != 60 {
		t.Errorf("expected default 60s for invalid duration, got %v", d)
	}
}
