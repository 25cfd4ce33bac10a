// Package config provides configuration loading and validation for vecplot.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/lamim/vecplot/internal/interaction"
	"github.com/lamim/vecplot/internal/plot"
)

// Backend types
const (
	BackendFastAPI  = "fastapi"
	BackendWeaviate = "weaviate"
)

// Config represents the main configuration structure
type Config struct {
	General     GeneralConfig `toml:"general"`
	Backend     BackendConfig `toml:"backend"`
	Fetch       FetchConfig   `toml:"fetch"`
	Collections []string      `toml:"collections"`
	Views       []ViewConfig  `toml:"views"`
	Server      ServerConfig  `toml:"server"`
	Publish     PublishConfig `toml:"publish"`
}

// GeneralConfig contains general settings
type GeneralConfig struct {
	Concurrency int    `toml:"concurrency"`
	Timeout     string `toml:"timeout"`
	OutputDir   string `toml:"output_dir"`
}

// BackendConfig selects and tunes the embedding source.
type BackendConfig struct {
	Type       string  `toml:"type"`
	URL        string  `toml:"url,omitempty"`
	APIKeyEnv  string  `toml:"api_key_env,omitempty"`
	RateLimit  float64 `toml:"rate_limit"`
	MaxRetries int     `toml:"max_retries"`
}

// FetchConfig controls what the backend is asked for.
type FetchConfig struct {
	// ApplyDR is a pointer so an explicit false is distinguishable from unset.
	ApplyDR     *bool  `toml:"apply_dr,omitempty"`
	DRMethod    string `toml:"dr_method"`
	NComponents int    `toml:"n_components"`
	Limit       int    `toml:"limit,omitempty"`
}

// ApplyReduction reports whether dimensionality reduction was requested.
func (f FetchConfig) ApplyReduction() bool {
	return f.ApplyDR == nil || *f.ApplyDR
}

// ViewConfig describes one rendered view of a collection.
type ViewConfig struct {
	Name         string   `toml:"name"`
	ColorBy      string   `toml:"color_by"`
	Mode         string   `toml:"mode,omitempty"`
	Palette      string   `toml:"palette,omitempty"`
	LegendClicks []string `toml:"legend_clicks,omitempty"`
	SelectPoint  *int     `toml:"select_point,omitempty"`
}

// ServerConfig configures the dashboard server.
type ServerConfig struct {
	Addr       string `toml:"addr"`
	LogFormat  string `toml:"log_format"`
	LogLevel   string `toml:"log_level"`
	SessionTTL string `toml:"session_ttl"` // idle time before a dashboard session is dropped
}

// SessionTTLDuration parses the session TTL string into a Duration
func (s ServerConfig) SessionTTLDuration() time.Duration {
	d, err := time.ParseDuration(s.SessionTTL)
	if err != nil || d <= 0 {
		return 30 * time.Minute
	}
	return d
}

// PublishConfig configures report upload to S3-compatible storage.
type PublishConfig struct {
	Enabled      bool   `toml:"enabled"`
	Endpoint     string `toml:"endpoint,omitempty"`
	Bucket       string `toml:"bucket,omitempty"`
	Prefix       string `toml:"prefix,omitempty"`
	Region       string `toml:"region,omitempty"`
	UseSSL       bool   `toml:"use_ssl"`
	AccessKeyEnv string `toml:"access_key_env,omitempty"`
	SecretKeyEnv string `toml:"secret_key_env,omitempty"`
}

// TimeoutDuration parses the timeout string into a Duration
func (g GeneralConfig) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(g.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// DefaultViews returns one view per color mode, in menu order.
func DefaultViews() []ViewConfig {
	views := make([]ViewConfig, 0, len(plot.ColorModes))
	for _, c := range plot.ColorModes {
		views = append(views, ViewConfig{Name: string(c), ColorBy: string(c)})
	}
	return views
}

// validatePath checks for path traversal attempts
func validatePath(path string) error {
	// Clean the path
	cleanPath := filepath.Clean(path)

	// Check for path traversal sequences that go above current directory
	// This prevents ../../../etc/passwd type attacks
	if strings.HasPrefix(cleanPath, "..") || strings.Contains(cleanPath, "../") {
		return fmt.Errorf("path contains invalid traversal sequence: %s", path)
	}

	return nil
}

// Load reads and parses the TOML configuration file
func Load(path string) (*Config, error) {
	// Validate path for security
	if err := validatePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	// #nosec G304 - Path validated above, this is intentional file inclusion
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, used when no
// config file exists.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.General.Concurrency <= 0 {
		c.General.Concurrency = 2
	}
	if c.General.Timeout == "" {
		c.General.Timeout = "60s"
	}
	if c.General.OutputDir == "" {
		c.General.OutputDir = "./results"
	}

	c.Backend.Type = strings.ToLower(strings.TrimSpace(c.Backend.Type))
	if c.Backend.Type == "" {
		c.Backend.Type = BackendFastAPI
	}
	if c.Backend.RateLimit <= 0 {
		c.Backend.RateLimit = 2
	}
	if c.Backend.MaxRetries <= 0 {
		c.Backend.MaxRetries = 3
	}

	if c.Fetch.DRMethod == "" {
		c.Fetch.DRMethod = "pacmap"
	}
	if c.Fetch.NComponents == 0 {
		c.Fetch.NComponents = 3
	}

	if len(c.Views) == 0 {
		c.Views = DefaultViews()
	}
	for i := range c.Views {
		if c.Views[i].Name == "" {
			c.Views[i].Name = c.Views[i].ColorBy
		}
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	c.Server.LogFormat = strings.ToLower(c.Server.LogFormat)
	if c.Server.LogFormat == "" {
		c.Server.LogFormat = "text"
	}
	c.Server.LogLevel = strings.ToLower(c.Server.LogLevel)
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.SessionTTL == "" {
		c.Server.SessionTTL = "30m"
	}

	if c.Publish.Region == "" {
		c.Publish.Region = "us-east-1"
	}
	if c.Publish.AccessKeyEnv == "" {
		c.Publish.AccessKeyEnv = "S3_ACCESS_KEY"
	}
	if c.Publish.SecretKeyEnv == "" {
		c.Publish.SecretKeyEnv = "S3_SECRET_KEY"
	}
}

// Validate checks the configuration after defaults have been applied.
func (c *Config) Validate() error {
	if c.Backend.Type != BackendFastAPI && c.Backend.Type != BackendWeaviate {
		return fmt.Errorf("backend has invalid type: %s", c.Backend.Type)
	}

	switch c.Fetch.DRMethod {
	case "pacmap", "umap", "trimap":
	default:
		return fmt.Errorf("fetch has invalid dr_method: %s", c.Fetch.DRMethod)
	}
	if c.Fetch.NComponents != 2 && c.Fetch.NComponents != 3 {
		return fmt.Errorf("fetch has invalid n_components: %d", c.Fetch.NComponents)
	}
	if c.Fetch.Limit < 0 {
		return fmt.Errorf("fetch has invalid limit: %d", c.Fetch.Limit)
	}

	for i, name := range c.Collections {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("collection at index %d is empty", i)
		}
	}

	seen := make(map[string]bool, len(c.Views))
	for i, view := range c.Views {
		if view.Name == "" {
			return fmt.Errorf("view at index %d is missing a name", i)
		}
		if seen[view.Name] {
			return fmt.Errorf("view '%s' is defined more than once", view.Name)
		}
		seen[view.Name] = true

		if _, err := plot.ParseColorBy(view.ColorBy); err != nil {
			return fmt.Errorf("view '%s' has invalid color_by: %s", view.Name, view.ColorBy)
		}
		if _, err := interaction.ParseMode(view.Mode); err != nil {
			return fmt.Errorf("view '%s' has invalid mode: %s", view.Name, view.Mode)
		}
		if _, err := plot.ParsePolicy(view.Palette); err != nil {
			return fmt.Errorf("view '%s' has invalid palette: %s", view.Name, view.Palette)
		}
		if view.SelectPoint != nil && *view.SelectPoint < 0 {
			return fmt.Errorf("view '%s' has invalid select_point: %d", view.Name, *view.SelectPoint)
		}
	}

	if c.Server.LogFormat != "text" && c.Server.LogFormat != "json" {
		return fmt.Errorf("server has invalid log_format: %s", c.Server.LogFormat)
	}
	switch c.Server.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server has invalid log_level: %s", c.Server.LogLevel)
	}
	if d, err := time.ParseDuration(c.Server.SessionTTL); err != nil || d <= 0 {
		return fmt.Errorf("server has invalid session_ttl: %s", c.Server.SessionTTL)
	}

	if c.Publish.Enabled {
		if c.Publish.Endpoint == "" {
			return fmt.Errorf("publish is enabled but no endpoint is set")
		}
		if c.Publish.Bucket == "" {
			return fmt.Errorf("publish is enabled but no bucket is set")
		}
	}
	return nil
}

// Save writes the configuration to a TOML file
func (c *Config) Save(path string) error {
	// Validate path for security
	if err := validatePath(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}

	// #nosec G304 - Path validated above, this is intentional file creation
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(c)
}
