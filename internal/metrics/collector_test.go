package metrics

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/pipeline"
	"github.com/BaSui01/meshflow/types"
)

var collectorNamespaceSeq uint64

// Collectors register on the default registry, so every test needs its own
// namespace.
func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("meshflow_test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.stageExecutionsTotal)
	assert.NotNil(t, collector.stageDuration)
	assert.NotNil(t, collector.llmTokensUsed)
	assert.NotNil(t, collector.generationsTotal)
	assert.NotNil(t, collector.httpRequestsTotal)

	var _ pipeline.Metrics = collector
}

func TestCollectorDefaultNamespace(t *testing.T) {
	// Only one collector may claim the default namespace per process, so
	// the constant is checked instead of constructing one.
	assert.Equal(t, "meshflow", DefaultNamespace)
}

func TestObserveStage(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveStage("classify", 120*time.Millisecond, nil)
	collector.ObserveStage("classify", 80*time.Millisecond, nil)
	collector.ObserveStage("blender_build", time.Second, errors.New("blender exited with an error"))

	// One series per stage+status pair.
	assert.Equal(t, 2, testutil.CollectAndCount(collector.stageExecutionsTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(collector.stageDuration))

	success := collector.stageExecutionsTotal.WithLabelValues("classify", "success")
	assert.Equal(t, 2.0, testutil.ToFloat64(success))

	failed := collector.stageExecutionsTotal.WithLabelValues("blender_build", "error")
	assert.Equal(t, 1.0, testutil.ToFloat64(failed))
}

func TestObserveUsage(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveUsage(types.StageUsage{
		Stage:            "decompose",
		Model:            "gpt-4o",
		PromptTokens:     120,
		CompletionTokens: 40,
	})
	collector.ObserveUsage(types.StageUsage{
		Stage:            "decompose",
		Model:            "gpt-4o",
		PromptTokens:     30,
		CompletionTokens: 10,
	})

	prompt := collector.llmTokensUsed.WithLabelValues("decompose", "gpt-4o", "prompt")
	assert.Equal(t, 150.0, testutil.ToFloat64(prompt))

	completion := collector.llmTokensUsed.WithLabelValues("decompose", "gpt-4o", "completion")
	assert.Equal(t, 50.0, testutil.ToFloat64(completion))
}

func TestRecordGeneration(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordGeneration("completed", 12*time.Second)
	collector.RecordGeneration("completed", 8*time.Second)
	collector.RecordGeneration("rejected", time.Second)

	completed := collector.generationsTotal.WithLabelValues("completed")
	assert.Equal(t, 2.0, testutil.ToFloat64(completed))

	rejected := collector.generationsTotal.WithLabelValues("rejected")
	assert.Equal(t, 1.0, testutil.ToFloat64(rejected))
}

func TestRecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("POST", "/api/v1/generate", 200, 100*time.Millisecond, 256, 2048)
	collector.RecordHTTPRequest("POST", "/api/v1/generate", 502, 50*time.Millisecond, 256, 128)

	ok := collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/generate", "2xx")
	assert.Equal(t, 1.0, testutil.ToFloat64(ok))

	failed := collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/generate", "5xx")
	assert.Equal(t, 1.0, testutil.ToFloat64(failed))

	assert.Equal(t, 1, testutil.CollectAndCount(collector.httpRequestDuration))
}

func TestRecordDBConnections(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBConnections("postgres", 10, 4)

	open := collector.dbConnectionsOpen.WithLabelValues("postgres")
	assert.Equal(t, 10.0, testutil.ToFloat64(open))

	idle := collector.dbConnectionsIdle.WithLabelValues("postgres")
	assert.Equal(t, 4.0, testutil.ToFloat64(idle))

	// Gauges track the latest snapshot.
	collector.RecordDBConnections("postgres", 2, 1)
	assert.Equal(t, 2.0, testutil.ToFloat64(open))
}

func TestRegisterCacheStats(t *testing.T) {
	ns := nextTestNamespace()
	collector := NewCollector(ns, zap.NewNop())
	collector.RegisterCacheStats(func() (uint64, uint64, uint64) { return 7, 3, 11 })

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		name := mf.GetName()
		switch name {
		case ns + "_llm_cache_l1_hits", ns + "_llm_cache_l2_hits", ns + "_llm_cache_misses":
			require.Len(t, mf.GetMetric(), 1)
			values[name] = mf.GetMetric()[0].GetGauge().GetValue()
		}
	}

	assert.Equal(t, 7.0, values[ns+"_llm_cache_l1_hits"])
	assert.Equal(t, 3.0, values[ns+"_llm_cache_l2_hits"])
	assert.Equal(t, 11.0, values[ns+"_llm_cache_misses"])
}

func TestConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.ObserveStage("plan", 10*time.Millisecond, nil)
			collector.ObserveUsage(types.StageUsage{Stage: "plan", Model: "gpt-4o", PromptTokens: 5})
			collector.RecordHTTPRequest("GET", "/health", 200, time.Millisecond, 0, 64)
		}()
	}
	wg.Wait()

	success := collector.stageExecutionsTotal.WithLabelValues("plan", "success")
	assert.Equal(t, 10.0, testutil.ToFloat64(success))

	prompt := collector.llmTokensUsed.WithLabelValues("plan", "gpt-4o", "prompt")
	assert.Equal(t, 50.0, testutil.ToFloat64(prompt))
}

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
		{42, "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusClass(tt.code))
	}
}
