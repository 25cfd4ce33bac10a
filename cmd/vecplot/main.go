// Package main provides the entry point for the malware embedding plotter.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/lamim/vecplot/internal/backend"
	"github.com/lamim/vecplot/internal/backend/fastapi"
	"github.com/lamim/vecplot/internal/backend/weaviate"
	"github.com/lamim/vecplot/internal/config"
	"github.com/lamim/vecplot/internal/debug"
	"github.com/lamim/vecplot/internal/metrics"
	"github.com/lamim/vecplot/internal/progress"
	"github.com/lamim/vecplot/internal/publish"
	"github.com/lamim/vecplot/internal/render"
	"github.com/lamim/vecplot/internal/report"
	"github.com/lamim/vecplot/internal/server"
)

const defaultConfigPath = "config.toml"

type cliFlags struct {
	configPath      *string
	outputDir       *string
	collectionsFlag *string
	format          *string
	serve           *bool
	addr            *string
	noProgress      *bool
	debugMode       *bool
	debugFullMode   *bool
	publishMode     *bool
	legend          *bool
	initConfig      *bool
}

func parseFlags() *cliFlags {
	return &cliFlags{
		configPath:      flag.String("config", defaultConfigPath, "Path to configuration file"),
		outputDir:       flag.String("output", "", "Output directory for reports (overrides config)"),
		collectionsFlag: flag.String("collections", "", "Comma-separated collections to plot (overrides config)"),
		format:          flag.String("format", "all", "Report format: all, html, md, json, png"),
		serve:           flag.Bool("serve", false, "Start the interactive dashboard server"),
		addr:            flag.String("addr", "", "Dashboard listen address (overrides config)"),
		noProgress:      flag.Bool("no-progress", false, "Disable progress bar (useful for CI)"),
		debugMode:       flag.Bool("debug", false, "Enable debug logging with request/response data"),
		debugFullMode:   flag.Bool("debug-full", false, "Enable full debug logging with complete request/response bodies and timing breakdown"),
		publishMode:     flag.Bool("publish", false, "Upload the report directory to S3-compatible storage"),
		legend:          flag.Bool("legend", false, "Print a colored legend for every view"),
		initConfig:      flag.Bool("init", false, "Write a default configuration file and exit"),
	}
}

// loadEnvFile sets environment variables from a KEY=VALUE file. A missing
// file is not an error.
func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	lines := strings.Split(string(data), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			value = strings.Trim(value, `"'`)
			_ = os.Setenv(key, value)
		}
	}
}

func main() {
	flags := parseFlags()
	flag.Parse()

	if *flags.initConfig {
		if err := config.Default().Save(*flags.configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("✓ Wrote default configuration to %s\n", *flags.configPath)
		return
	}

	loadEnvFile(".env")

	cfg, err := loadConfig(*flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *flags.outputDir != "" {
		cfg.General.OutputDir = *flags.outputDir
	}
	if cols := parseCollections(*flags.collectionsFlag); len(cols) > 0 {
		cfg.Collections = cols
	}
	if *flags.addr != "" {
		cfg.Server.Addr = *flags.addr
	}

	enableDebug := *flags.debugMode || *flags.debugFullMode
	if *flags.serve {
		if err := runServer(cfg, enableDebug, *flags.debugFullMode); err != nil {
			fmt.Fprintf(os.Stderr, "Error running server: %v\n", err)
			os.Exit(1)
		}
		return
	}

	finalOutputDir, err := ensureOutputDir(cfg.General.OutputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}
	cfg.General.OutputDir = finalOutputDir

	debugLogger := debug.NewLogger(enableDebug, *flags.debugFullMode, cfg.General.OutputDir)

	printBanner()

	if enableDebug {
		if debugLogger.IsFullCapture() {
			fmt.Printf("🐛 Debug-full mode enabled: complete bodies + timing breakdown\n")
			fmt.Printf("   Logging to: %s/\n\n", debugLogger.GetOutputPath())
		} else {
			fmt.Printf("🐛 Debug mode enabled: logging to %s/\n\n", debugLogger.GetOutputPath())
		}
	}

	src, err := initializeSource(cfg, debugLogger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := render.NewRunner(cfg, src, progress.NewManager(0, 0, false), debugLogger)
	collections, err := runner.ResolveCollections(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing collections: %v\n", err)
		os.Exit(1)
	}
	if len(collections) == 0 {
		fmt.Fprintf(os.Stderr, "Error: %v\n", backend.ErrNoCollections)
		os.Exit(1)
	}

	fmt.Printf("📊 Plotting %d collection(s) x %d view(s) from %s\n\n", len(collections), len(cfg.Views), src.Name())
	runner.SetProgress(progress.NewManager(len(collections), len(cfg.Views), !*flags.noProgress))

	if err := runner.Run(ctx, collections); err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering collections: %v\n", err)
		os.Exit(1)
	}

	if enableDebug {
		if err := debugLogger.Finalize(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write debug log: %v\n", err)
		} else {
			fmt.Printf("✓ Debug logs written to: %s/\n", debugLogger.GetOutputPath())
		}
	}

	gen := report.NewGenerator(runner.GetCollector(), cfg.General.OutputDir)
	generateReports(*flags.format, gen, cfg.General.OutputDir)
	if *flags.legend {
		gen.PrintLegends()
	}
	printSummary(runner.GetCollector())

	if *flags.publishMode || cfg.Publish.Enabled {
		publishReports(ctx, cfg.Publish, cfg.General.OutputDir)
	}
}

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist.
func loadConfig(configPath string) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil && configPath == defaultConfigPath && errors.Is(err, fs.ErrNotExist) {
		fmt.Printf("ℹ️  No %s found, using defaults (run with -init to create one)\n", configPath)
		return config.Default(), nil
	}
	return cfg, err
}

func runServer(cfg *config.Config, enableDebug, debugFull bool) error {
	logger := server.NewLogger(os.Stderr, cfg.Server.LogFormat, cfg.Server.LogLevel)

	var debugLogger *debug.Logger
	if enableDebug {
		dir, err := ensureOutputDir(cfg.General.OutputDir)
		if err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
		debugLogger = debug.NewLogger(true, debugFull, dir)
		defer func() {
			if err := debugLogger.Finalize(); err != nil {
				logger.Warn("failed to write debug log", "error", err)
			}
		}()
	}

	src, err := initializeSource(cfg, debugLogger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("🌐 Dashboard listening on %s (source: %s)\n", cfg.Server.Addr, src.Name())
	return server.New(cfg, src, logger, debugLogger).ListenAndServe(ctx)
}

func printBanner() {
	fmt.Println(`
╔══════════════════════════════════════════════════════════════╗
║                  Malware Embedding Plotter                   ║
║      Fetch, color and explore reduced embedding vectors      ║
╚══════════════════════════════════════════════════════════════╝`)
	fmt.Println()
}

func printSummary(collector *metrics.Collector) {
	fmt.Println("\n═══════════════════════════════════════════════════════════════")
	fmt.Println("                        PLOT SUMMARY")
	fmt.Println("═══════════════════════════════════════════════════════════════")

	for _, collection := range collector.GetAllCollections() {
		summary := collector.ComputeSummary(collection)

		fmt.Printf("\n%s:\n", collection)
		if !summary.FetchSucceeded {
			fmt.Printf("  Fetch: failed\n")
			for category, n := range summary.ErrorBreakdown {
				fmt.Printf("  Errors: %s x%d\n", category, n)
			}
			continue
		}
		fmt.Printf("  Points: %d (%dD)\n", summary.Points, summary.Dimension)
		fmt.Printf("  Fetch Latency: %s\n", summary.FetchLatency.Round(time.Millisecond))
		fmt.Printf("  Views: %d (%.1f%% plotted)\n", summary.TotalViews, summary.SuccessRate)
		fmt.Printf("  Avg Traces: %.1f\n", summary.AvgTraces)
	}

	fmt.Println("\nView detailed results in the output directory.")
}

// initializeSource builds the embedding source selected in the config.
func initializeSource(cfg *config.Config, debugLogger *debug.Logger) (backend.Source, error) {
	timeout := cfg.General.TimeoutDuration()

	switch cfg.Backend.Type {
	case config.BackendFastAPI:
		client, err := fastapi.NewClient(fastapi.Options{
			BaseURL:    cfg.Backend.URL,
			Timeout:    timeout,
			RateLimit:  cfg.Backend.RateLimit,
			MaxRetries: cfg.Backend.MaxRetries,
		})
		debugLogger.LogSourceInit("fastapi", err)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize FastAPI source: %w", err)
		}
		fmt.Printf("✓ Initialized FastAPI source\n")
		return client, nil

	case config.BackendWeaviate:
		var apiKey string
		if cfg.Backend.APIKeyEnv != "" {
			apiKey = os.Getenv(cfg.Backend.APIKeyEnv)
		}
		client, err := weaviate.NewClient(weaviate.Options{
			URL:        cfg.Backend.URL,
			APIKey:     apiKey,
			Timeout:    timeout,
			RateLimit:  cfg.Backend.RateLimit,
			MaxRetries: cfg.Backend.MaxRetries,
		})
		debugLogger.LogSourceInit("weaviate", err)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Weaviate source: %w", err)
		}
		fmt.Printf("✓ Initialized Weaviate source\n")
		return client, nil
	}

	return nil, fmt.Errorf("unknown backend type: %s", cfg.Backend.Type)
}

func generateReports(formatFlag string, gen *report.Generator, outputDir string) {
	fmt.Println("\nGenerating reports...")

	for _, f := range parseFormats(formatFlag) {
		switch f {
		case "html":
			if err := gen.GenerateHTML(); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating HTML report: %v\n", err)
			} else {
				fmt.Printf("✓ Generated HTML report: %s/report.html\n", outputDir)
			}
		case "md":
			if err := gen.GenerateMarkdown(); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating Markdown report: %v\n", err)
			} else {
				fmt.Printf("✓ Generated Markdown report: %s/report.md\n", outputDir)
			}
		case "json":
			if err := gen.GenerateJSON(); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating JSON report: %v\n", err)
			} else {
				fmt.Printf("✓ Generated JSON report: %s/report.json\n", outputDir)
			}
		case "png":
			if err := gen.GeneratePNG(); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating PNG snapshots: %v\n", err)
			} else {
				fmt.Printf("✓ Generated PNG snapshots in: %s/\n", outputDir)
			}
		case "all":
			if err := gen.GenerateAll(); err != nil {
				fmt.Fprintf(os.Stderr, "Error generating reports: %v\n", err)
			} else {
				fmt.Printf("✓ Generated all reports in: %s/\n", outputDir)
			}
		default:
			fmt.Fprintf(os.Stderr, "Warning: unknown report format %q\n", f)
		}
	}
}

func publishReports(ctx context.Context, cfg config.PublishConfig, outputDir string) {
	pub, err := publish.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring publish: %v\n", err)
		return
	}
	uploads, err := pub.Publish(ctx, outputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error publishing reports: %v\n", err)
	}
	if len(uploads) > 0 {
		fmt.Printf("✓ Published %d file(s) to s3://%s/%s\n", len(uploads), cfg.Bucket, path.Dir(uploads[0].Key))
	}
}

func parseFormats(s string) []string {
	if s == "all" {
		return []string{"all"}
	}
	var formats []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			formats = append(formats, f)
		}
	}
	return formats
}

func parseCollections(s string) []string {
	var cols []string
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			cols = append(cols, c)
		}
	}
	return cols
}

// ensureOutputDir creates a timestamped subdirectory for results
func ensureOutputDir(baseDir string) (string, error) {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	sessionDir := filepath.Join(baseDir, timestamp)

	if err := os.MkdirAll(sessionDir, 0750); err != nil {
		return "", err
	}

	return sessionDir, nil
}
