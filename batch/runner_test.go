package batch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/pipeline"
	"github.com/BaSui01/meshflow/types"
)

// fakeGenerator records requests and fails prompts listed in failing.
type fakeGenerator struct {
	mu      sync.Mutex
	reqs    []pipeline.Request
	failing map[string]error
}

func (f *fakeGenerator) Generate(ctx context.Context, req pipeline.Request) (*types.Result, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()

	if err, ok := f.failing[req.Prompt]; ok {
		return &types.Result{Prompt: req.Prompt}, err
	}
	validated := req.ValidatedPath
	if validated == "" {
		validated = "/default/primitives.json"
	}
	return &types.Result{
		Prompt:        req.Prompt,
		ValidatedPath: validated,
		BlendPath:     validated + ".blend",
	}, nil
}

func (f *fakeGenerator) requests() []pipeline.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.Request(nil), f.reqs...)
}

func batchCfg(workers int, continueOnError bool) config.BatchConfig {
	return config.BatchConfig{Workers: workers, ContinueOnError: continueOnError}
}

func TestRunnerAllSucceed(t *testing.T) {
	gen := &fakeGenerator{}
	runner := NewRunner(gen, batchCfg(2, true), "", zaptest.NewLogger(t))

	items := []Item{{Prompt: "a chair"}, {Prompt: "a table"}, {Prompt: "a lamp"}}
	summary, err := runner.Run(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 3, summary.Succeeded)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Items, 3)
	for i, res := range summary.Items {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, items[i].Prompt, res.Prompt)
		assert.NoError(t, res.Err)
		assert.NotEmpty(t, res.BlendPath)
	}
	assert.Len(t, gen.requests(), 3)
}

func TestRunnerIsolatesFailures(t *testing.T) {
	gen := &fakeGenerator{failing: map[string]error{
		"a table": types.NewError(types.ErrPromptRejected, "not furniture"),
	}}
	runner := NewRunner(gen, batchCfg(2, true), "", zaptest.NewLogger(t))

	summary, err := runner.Run(context.Background(), []Item{
		{Prompt: "a chair"}, {Prompt: "a table"}, {Prompt: "a lamp"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.Error(t, summary.Items[1].Err)
	assert.Equal(t, types.ErrPromptRejected, types.GetErrorCode(summary.Items[1].Err))
	assert.Len(t, gen.requests(), 3)
}

func TestRunnerStopsOnFirstFailure(t *testing.T) {
	boom := errors.New("planner exploded")
	gen := &fakeGenerator{failing: map[string]error{"a table": boom}}
	runner := NewRunner(gen, batchCfg(1, false), "", zaptest.NewLogger(t))

	summary, err := runner.Run(context.Background(), []Item{
		{Prompt: "a chair"}, {Prompt: "a table"}, {Prompt: "a lamp"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "item 2")

	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	// The third item never reached the pipeline.
	assert.Len(t, gen.requests(), 2)
	assert.ErrorIs(t, summary.Items[2].Err, context.Canceled)
}

func TestRunnerDerivesOutputPaths(t *testing.T) {
	gen := &fakeGenerator{}
	dir := t.TempDir()
	runner := NewRunner(gen, batchCfg(1, true), dir, zaptest.NewLogger(t))

	_, err := runner.Run(context.Background(), []Item{
		{Prompt: "a chair"},
		{Prompt: "a desk", OutputPath: "custom/desk.json"},
		{Prompt: "a lamp"},
	})
	require.NoError(t, err)

	reqs := gen.requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, filepath.Join(dir, "batch_001.json"), reqs[0].ValidatedPath)
	assert.Equal(t, "custom/desk.json", reqs[1].ValidatedPath)
	assert.Equal(t, filepath.Join(dir, "batch_003.json"), reqs[2].ValidatedPath)
}

func TestRunnerEmptyItems(t *testing.T) {
	runner := NewRunner(&fakeGenerator{}, batchCfg(2, true), "", zaptest.NewLogger(t))

	summary, err := runner.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, Summary{Items: []ItemResult{}}, summary)
}

func TestRunnerCancelledContext(t *testing.T) {
	gen := &fakeGenerator{}
	runner := NewRunner(gen, batchCfg(2, true), "", zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := runner.Run(ctx, []Item{{Prompt: "a chair"}, {Prompt: "a table"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, summary.Failed)
	assert.Empty(t, gen.requests())
}

func TestRunnerDefaultsWorkers(t *testing.T) {
	runner := NewRunner(&fakeGenerator{}, config.BatchConfig{}, "", nil)
	assert.Equal(t, 2, runner.workers)
}
