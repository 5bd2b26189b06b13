package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"retlab/internal/config"
	"retlab/internal/dataprocessing"
	pipeerrors "retlab/internal/errors"
	"retlab/internal/exporter"
	"retlab/internal/retention"
)

// Runner orchestrates one full preprocessing run: load, aggregate, build
// all configuration variants, and write their artifacts.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger

	// OnVariant, when set, is called once per finished variant build. It
	// may be called from concurrent goroutines.
	OnVariant func(slug string)
}

// NewRunner creates a runner for the given configuration.
func NewRunner(cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{cfg: cfg, logger: logger}
}

// RunSummary describes a completed run.
type RunSummary struct {
	RawRows       int
	Invoices      int
	TotalRevenue  float64
	ArtifactPaths []string
	Duration      time.Duration
}

// VariantCount is the number of configuration variants a run produces.
const VariantCount = 8

// Run executes the full pipeline. No artifact is written unless every
// variant builds successfully, so a failed run leaves the output
// directory untouched.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()

	result, err := r.loadAndAggregate(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.checkDatasetIntegrity(result); err != nil {
		return nil, err
	}

	variants := retention.Variants(func(g retention.Granularity) int {
		return r.cfg.DefaultMaxOffsets(g.String())
	})

	results, err := r.buildVariants(ctx, variants, result)
	if err != nil {
		return nil, err
	}

	generatedAt := time.Now().UTC()
	writer := exporter.NewWriter(r.cfg.ResolveOutDir(), r.logger)

	paths := make([]string, 0, len(results))
	for _, vr := range results {
		artifact := exporter.BuildArtifact(r.cfg.Dataset, generatedAt, vr, result.Raw)
		path, err := writer.Write(artifact)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}

	if len(paths) != VariantCount {
		return nil, pipeerrors.NewWithDetails(pipeerrors.CodeVariantCount,
			fmt.Sprintf("expected %d artifacts, wrote %d", VariantCount, len(paths)),
			paths)
	}

	summary := &RunSummary{
		RawRows:       result.Raw.TotalRows,
		Invoices:      len(result.Invoices),
		TotalRevenue:  result.TotalRevenue(),
		ArtifactPaths: paths,
		Duration:      time.Since(start),
	}

	r.logger.InfoContext(ctx, "run complete",
		"raw_rows", summary.RawRows,
		"invoices", summary.Invoices,
		"artifacts", len(summary.ArtifactPaths),
		"duration", summary.Duration.String(),
	)
	return summary, nil
}

// loadAndAggregate reads the input file and folds it into per-invoice
// aggregates in a single pass.
func (r *Runner) loadAndAggregate(ctx context.Context) (*dataprocessing.AggregateResult, error) {
	input := r.cfg.ResolveInput()
	r.logger.InfoContext(ctx, "loading input", "path", input)

	rows, err := dataprocessing.NewLoader(r.logger).Load(input)
	if err != nil {
		return nil, err
	}

	agg := dataprocessing.NewAggregator(r.logger)
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		agg.ConsumeRow(row)
	}
	return agg.Result(), nil
}

// checkDatasetIntegrity applies the run-level gates: zero usable rows and
// zero aggregate revenue are fatal, a low parse ratio is only a warning.
func (r *Runner) checkDatasetIntegrity(result *dataprocessing.AggregateResult) error {
	if result.Raw.TotalRows == 0 {
		return pipeerrors.New(pipeerrors.CodeNoUsableRows,
			"input produced no usable transaction rows")
	}

	revenue := result.TotalRevenue()
	if math.Abs(revenue) <= 0 {
		return pipeerrors.New(pipeerrors.CodeZeroRevenue,
			"aggregate revenue is zero, dataset looks corrupt")
	}

	if ratio := result.Parse.ParseRatio(); ratio < r.cfg.Pipeline.MinParseRatio {
		r.logger.Warn("parse ratio below threshold",
			"ratio", fmt.Sprintf("%.4f", ratio),
			"threshold", r.cfg.Pipeline.MinParseRatio,
			"rows_seen", result.Parse.RawRowsSeen,
			"rows_parsed", result.Parse.ParsedRows,
			"bad_numeric", result.Parse.SkippedBadNumeric,
			"bad_date", result.Parse.SkippedBadDate,
		)
	}
	return nil
}

// buildVariants computes every variant concurrently. The invoice map is
// finalized before this point and treated as read-only by each builder,
// so the only shared write is each goroutine's own result slot.
func (r *Runner) buildVariants(
	ctx context.Context,
	variants []retention.VariantConfig,
	result *dataprocessing.AggregateResult,
) ([]*retention.VariantResult, error) {
	results := make([]*retention.VariantResult, len(variants))

	g, ctx := errgroup.WithContext(ctx)
	for i, vc := range variants {
		i, vc := i, vc
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			builder, err := retention.NewBuilder(vc, r.logger)
			if err != nil {
				return err
			}
			vr, err := builder.Build(result.Invoices, result.Raw)
			if err != nil {
				return fmt.Errorf("variant %s: %w", vc.Slug(), err)
			}
			results[i] = vr
			if r.OnVariant != nil {
				r.OnVariant(vc.Slug())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
