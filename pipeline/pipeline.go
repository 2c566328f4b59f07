// Package pipeline chains the LLM stages that turn a furniture description
// into a validated primitive plan: classify, decompose, plan, map
// connections, repair geometry, assign materials, export, and optionally
// hand the plan to Blender.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/llm"
	"github.com/BaSui01/meshflow/llm/cache"
	"github.com/BaSui01/meshflow/llm/retry"
	"github.com/BaSui01/meshflow/types"
)

// Stage names, used in logs, events, usage records, and error metadata.
const (
	StageClassify    = "classify"
	StageDecompose   = "decompose"
	StagePlan        = "plan"
	StageConnections = "connections"
	StageValidate    = "validate"
	StageMaterials   = "materials"
	StageExport      = "export"
	StageBlender     = "blender"
)

// EventType defines the type of pipeline progress event.
type EventType string

const (
	// EventStageStarted is emitted before a stage begins execution.
	EventStageStarted EventType = "stage_started"
	// EventStageCompleted is emitted after a stage finishes successfully.
	EventStageCompleted EventType = "stage_completed"
	// EventStageFailed is emitted when a stage fails.
	EventStageFailed EventType = "stage_failed"
)

// Event carries information about pipeline execution progress.
type Event struct {
	Type     EventType     `json:"type"`
	Stage    string        `json:"stage"`
	Duration time.Duration `json:"duration,omitempty"`
	Error    string        `json:"error,omitempty"`
}

// Emitter is a callback that receives pipeline progress events.
type Emitter func(Event)

type emitterKey struct{}

// WithEmitter stores a progress emitter in the context. Serve mode injects
// one per request to stream stage events to the client.
func WithEmitter(ctx context.Context, emit Emitter) context.Context {
	if emit == nil {
		return ctx
	}
	return context.WithValue(ctx, emitterKey{}, emit)
}

func emitterFromContext(ctx context.Context) (Emitter, bool) {
	v := ctx.Value(emitterKey{})
	if v == nil {
		return nil, false
	}
	emit, ok := v.(Emitter)
	return emit, ok && emit != nil
}

// GeometryValidator repairs component placement before export.
type GeometryValidator interface {
	ValidateAndFix(components []types.Component, connections map[string][]string) []types.Component
}

// SceneBuilder turns an exported plan file into a .blend scene.
type SceneBuilder interface {
	Build(ctx context.Context, jsonPath string) (string, error)
}

// Metrics receives stage timing and token accounting. The zero dependency
// is a no-op; internal/metrics provides the Prometheus-backed one.
type Metrics interface {
	ObserveStage(stage string, duration time.Duration, err error)
	ObserveUsage(usage types.StageUsage)
}

type nopMetrics struct{}

func (nopMetrics) ObserveStage(string, time.Duration, error) {}
func (nopMetrics) ObserveUsage(types.StageUsage)             {}

// Request describes one generation run.
type Request struct {
	Prompt        string `json:"prompt"`
	RawPath       string `json:"raw_path,omitempty"`
	ValidatedPath string `json:"validated_path,omitempty"`
	// BuildBlend overrides the configured Blender toggle when set.
	BuildBlend *bool `json:"build_blend,omitempty"`
}

// Pipeline wires the stages together. Construct with New; zero value is not
// usable.
type Pipeline struct {
	cfg    *config.Config
	caller *caller
	logger *zap.Logger

	classifier  *Classifier
	decomposer  *Decomposer
	planner     *Planner
	connections *ConnectionMapper
	materials   *MaterialAssigner

	validator GeometryValidator
	builder   SceneBuilder
	metrics   Metrics
	observer  Emitter
}

// Option configures optional pipeline collaborators.
type Option func(*Pipeline)

// WithValidator sets the geometry repair step. Without one, validation is
// skipped regardless of configuration.
func WithValidator(v GeometryValidator) Option {
	return func(p *Pipeline) { p.validator = v }
}

// WithBuilder sets the Blender scene builder.
func WithBuilder(b SceneBuilder) Option {
	return func(p *Pipeline) { p.builder = b }
}

// WithMetrics sets the stage metrics sink.
func WithMetrics(m Metrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithObserver sets a process-wide progress callback. Per-request emitters
// injected via WithEmitter are notified as well.
func WithObserver(emit Emitter) Option {
	return func(p *Pipeline) { p.observer = emit }
}

// WithCache sets the response cache used for stage calls.
func WithCache(c *cache.ResponseCache) Option {
	return func(p *Pipeline) { p.caller.cache = c }
}

// New builds a pipeline from configuration and an LLM provider.
func New(cfg *config.Config, provider llm.Provider, logger *zap.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "pipeline"))

	policy := retry.DefaultPolicy()
	if cfg.LLM.MaxRetries > 0 {
		policy.MaxAttempts = cfg.LLM.MaxRetries
	}
	policy.Logger = logger

	p := &Pipeline{
		cfg:     cfg,
		caller:  newCaller(provider, nil, policy, logger),
		logger:  logger,
		metrics: nopMetrics{},
	}
	for _, opt := range opts {
		opt(p)
	}

	p.classifier = NewClassifier(p.caller, cfg.LLM.Classifier, logger)
	p.decomposer = NewDecomposer(p.caller, cfg.LLM.Decomposer, logger)
	p.planner = NewPlanner(p.caller, cfg.LLM.Planner, logger)
	p.connections = NewConnectionMapper(p.caller, cfg.LLM.Connections, logger)
	p.materials = NewMaterialAssigner(p.caller, cfg.LLM.Materials, logger)

	return p
}

type stageStep struct {
	name string
	run  func(context.Context) error
}

// Generate runs the full pipeline for one prompt. The returned Result is
// non-nil even on failure and carries whatever the completed stages
// produced, so callers can persist partial outcomes.
func (p *Pipeline) Generate(ctx context.Context, req Request) (*types.Result, error) {
	start := time.Now()

	result := &types.Result{Prompt: req.Prompt}
	if req.Prompt == "" {
		return result, types.NewError(types.ErrInvalidRequest, "prompt must not be empty")
	}

	rawPath, validatedPath := p.resolvePaths(req)

	var (
		decomposition types.Decomposition
		components    []types.Component
		connMap       map[string][]string
	)

	steps := []stageStep{
		{StageClassify, func(ctx context.Context) error {
			c, usage, err := p.classifier.Classify(ctx, req.Prompt)
			p.recordUsage(result, usage)
			if err != nil {
				return err
			}
			result.Classification = c
			if !c.Passed() {
				return types.NewError(types.ErrPromptRejected, c.Explanation).WithStage(StageClassify)
			}
			return nil
		}},
		{StageDecompose, func(ctx context.Context) error {
			d, usage, err := p.decomposer.Decompose(ctx, req.Prompt)
			p.recordUsage(result, usage)
			if err != nil {
				return err
			}
			decomposition = d
			result.Decomposition = &d
			return nil
		}},
		{StagePlan, func(ctx context.Context) error {
			planned, usage, err := p.planner.Plan(ctx, decomposition)
			p.recordUsage(result, usage)
			if err != nil {
				return err
			}
			if want := decomposition.TotalQuantity(); len(planned) < want {
				p.logger.Warn("planner produced fewer components than decomposed",
					zap.Int("planned", len(planned)), zap.Int("decomposed", want))
			}
			components = planned
			n, err := SaveRaw(rawPath, components)
			if err != nil {
				return fmt.Errorf("saving raw plan: %w", err)
			}
			result.RawPath = rawPath
			p.logger.Info("raw plan saved", zap.String("path", rawPath), zap.Int("bytes", n))
			return nil
		}},
	}

	if p.validator != nil && !p.cfg.Pipeline.SkipValidation {
		steps = append(steps,
			stageStep{StageConnections, func(ctx context.Context) error {
				m, usage, err := p.connections.Map(ctx, components)
				p.recordUsage(result, usage)
				if err != nil {
					return err
				}
				connMap = m
				return nil
			}},
			stageStep{StageValidate, func(ctx context.Context) error {
				components = p.validator.ValidateAndFix(components, connMap)
				return nil
			}},
		)
	}

	if !p.cfg.Pipeline.SkipMaterials {
		steps = append(steps, stageStep{StageMaterials, func(ctx context.Context) error {
			assigned, usage, err := p.materials.Assign(ctx, components)
			p.recordUsage(result, usage)
			if err != nil {
				return err
			}
			components = assigned
			return nil
		}})
	}

	steps = append(steps, stageStep{StageExport, func(ctx context.Context) error {
		n, err := SaveValidated(validatedPath, components)
		if err != nil {
			return err
		}
		result.Components = components
		result.ValidatedPath = validatedPath
		p.logger.Info("validated plan saved", zap.String("path", validatedPath), zap.Int("bytes", n))
		return nil
	}})

	if p.buildBlend(req) {
		steps = append(steps, stageStep{StageBlender, func(ctx context.Context) error {
			blendPath, err := p.builder.Build(ctx, validatedPath)
			if err != nil {
				return err
			}
			result.BlendPath = blendPath
			return nil
		}})
	}

	for i, step := range steps {
		select {
		case <-ctx.Done():
			result.Duration = time.Since(start)
			return result, ctx.Err()
		default:
		}

		stageStart := time.Now()
		p.notify(ctx, Event{Type: EventStageStarted, Stage: step.name})

		err := step.run(ctx)
		elapsed := time.Since(stageStart)
		p.metrics.ObserveStage(step.name, elapsed, err)

		if err != nil {
			p.notify(ctx, Event{Type: EventStageFailed, Stage: step.name, Duration: elapsed, Error: err.Error()})
			result.Duration = time.Since(start)
			return result, fmt.Errorf("stage %d (%s) failed: %w", i+1, step.name, err)
		}
		p.notify(ctx, Event{Type: EventStageCompleted, Stage: step.name, Duration: elapsed})
	}

	result.Duration = time.Since(start)
	p.logger.Info("generation complete",
		zap.String("prompt", req.Prompt),
		zap.Int("components", len(result.Components)),
		zap.Duration("duration", result.Duration))
	return result, nil
}

func (p *Pipeline) resolvePaths(req Request) (raw, validated string) {
	raw, validated = ResolvePaths(p.cfg.Pipeline, "")
	if req.RawPath != "" {
		raw = config.ExpandHome(JSONPath(req.RawPath))
	}
	if req.ValidatedPath != "" {
		validated = config.ExpandHome(JSONPath(req.ValidatedPath))
	}
	return raw, validated
}

func (p *Pipeline) buildBlend(req Request) bool {
	if p.builder == nil {
		return false
	}
	if req.BuildBlend != nil {
		return *req.BuildBlend
	}
	return p.cfg.Blender.Enabled
}

func (p *Pipeline) recordUsage(result *types.Result, usage types.StageUsage) {
	if usage.Stage == "" {
		return
	}
	result.Stages = append(result.Stages, usage)
	p.metrics.ObserveUsage(usage)
}

func (p *Pipeline) notify(ctx context.Context, ev Event) {
	if emit, ok := emitterFromContext(ctx); ok {
		emit(ev)
	}
	if p.observer != nil {
		p.observer(ev)
	}
}
