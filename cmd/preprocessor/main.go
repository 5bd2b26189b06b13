package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"

	"retlab/internal/app"
	"retlab/internal/config"
	"retlab/internal/infrastructure"
)

func main() {
	input := flag.String("input", "", "input transactions file (.csv, .xlsx); overrides config")
	outDir := flag.String("out", "", "output directory for variant artifacts; overrides config")
	maxOffsets := flag.Int("max-offsets", 0, "horizon cap for all variants (0 keeps per-granularity defaults)")
	dataset := flag.String("dataset", "", "dataset label written into artifact metadata; overrides config")
	configFile := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *input != "" {
		cfg.Input = *input
	}
	if *outDir != "" {
		cfg.OutDir = *outDir
	}
	if *dataset != "" {
		cfg.Dataset = *dataset
	}
	if *maxOffsets > 0 {
		cfg.Pipeline.MaxOffsets = *maxOffsets
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	ctx, runID := infrastructure.NewRunContext(context.Background())
	logger.InfoContext(ctx, "preprocessor starting",
		"run_id", runID,
		"dataset", cfg.Dataset,
		"input", cfg.ResolveInput(),
		"out_dir", cfg.ResolveOutDir(),
	)

	runner := app.NewRunner(cfg, logger)

	bar := progressbar.NewOptions(app.VariantCount,
		progressbar.OptionSetDescription("building variants"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
	runner.OnVariant = func(slug string) {
		bar.Add(1)
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "run failed", "error", err)
		os.Exit(1)
	}

	logger.InfoContext(ctx, "preprocessor finished",
		"artifacts", len(summary.ArtifactPaths),
		"raw_rows", summary.RawRows,
		"invoices", summary.Invoices,
		"duration", summary.Duration.String(),
	)
}
