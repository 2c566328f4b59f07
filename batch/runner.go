package batch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/pipeline"
	"github.com/BaSui01/meshflow/types"
)

// Generator runs one generation. The pipeline satisfies it.
type Generator interface {
	Generate(ctx context.Context, req pipeline.Request) (*types.Result, error)
}

// ItemResult records the outcome of one manifest item.
type ItemResult struct {
	Index         int           `json:"index"`
	Prompt        string        `json:"prompt"`
	ValidatedPath string        `json:"validated_path,omitempty"`
	BlendPath     string        `json:"blend_path,omitempty"`
	Duration      time.Duration `json:"duration"`
	Err           error         `json:"-"`
}

// Summary aggregates a batch run.
type Summary struct {
	Total     int          `json:"total"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Items     []ItemResult `json:"items"`
}

// Runner executes manifest items against the pipeline with a bounded worker
// count. Item failures are isolated unless continue-on-error is disabled.
type Runner struct {
	gen             Generator
	workers         int
	continueOnError bool
	outputDir       string
	logger          *zap.Logger
}

// NewRunner builds a batch runner. Items without an explicit output path
// save under outputDir with a per-item derived name; an empty outputDir
// falls through to the pipeline's configured defaults.
func NewRunner(gen Generator, cfg config.BatchConfig, outputDir string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 2
	}
	return &Runner{
		gen:             gen,
		workers:         workers,
		continueOnError: cfg.ContinueOnError,
		outputDir:       outputDir,
		logger:          logger.With(zap.String("component", "batch")),
	}
}

// Run processes every item and reports the aggregate summary. The returned
// error is the first item failure when continue-on-error is off, or the
// context error when the run was cancelled; the summary is valid either way.
func (r *Runner) Run(ctx context.Context, items []Item) (Summary, error) {
	results := make([]ItemResult, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, item := range items {
		g.Go(func() error {
			res := r.runItem(ctx, i, item)
			results[i] = res
			if res.Err == nil {
				return nil
			}
			if !r.continueOnError {
				return fmt.Errorf("item %d (%q) failed: %w", i+1, item.Prompt, res.Err)
			}
			// Cancellation still ends the batch even in isolation mode.
			return ctx.Err()
		})
	}
	err := g.Wait()

	summary := Summary{Total: len(items), Items: results}
	for _, res := range results {
		if res.Err == nil {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	r.logger.Info("batch finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))
	return summary, err
}

func (r *Runner) runItem(ctx context.Context, idx int, item Item) ItemResult {
	res := ItemResult{Index: idx, Prompt: item.Prompt}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	req := pipeline.Request{
		Prompt:        item.Prompt,
		ValidatedPath: r.outputPath(idx, item),
	}

	r.logger.Info("batch item started",
		zap.Int("item", idx+1),
		zap.String("prompt", item.Prompt))

	start := time.Now()
	result, err := r.gen.Generate(ctx, req)
	res.Duration = time.Since(start)
	if result != nil {
		res.ValidatedPath = result.ValidatedPath
		res.BlendPath = result.BlendPath
	}
	if err != nil {
		res.Err = err
		r.logger.Error("batch item failed",
			zap.Int("item", idx+1),
			zap.String("prompt", item.Prompt),
			zap.Error(err))
		return res
	}

	r.logger.Info("batch item finished",
		zap.Int("item", idx+1),
		zap.String("validated", res.ValidatedPath),
		zap.String("blend", res.BlendPath),
		zap.Duration("elapsed", res.Duration))
	return res
}

// outputPath picks the validated plan destination for one item. Manifest
// paths win; otherwise each item gets its own file under the output dir so
// parallel items never clobber each other.
func (r *Runner) outputPath(idx int, item Item) string {
	if item.OutputPath != "" {
		return item.OutputPath
	}
	if r.outputDir == "" {
		return ""
	}
	return filepath.Join(r.outputDir, fmt.Sprintf("batch_%03d.json", idx+1))
}
