// Package meshflow provides a top-level convenience entry point for
// generating furniture scenes with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/meshflow"
//
//	client, err := meshflow.New()
//	client, err := meshflow.New(meshflow.WithConfigFile("meshflow.yaml"))
//	res, err := client.Generate(ctx, "a walnut bedside table with two drawers")
//
// This is a thin wrapper around [pipeline.New]; it loads configuration,
// builds the OpenAI-compatible provider, and attaches the geometry
// validator. Use the pipeline package directly when you need finer
// control over the assembly.
package meshflow

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/geometry"
	"github.com/BaSui01/meshflow/llm"
	"github.com/BaSui01/meshflow/llm/openai"
	"github.com/BaSui01/meshflow/pipeline"
	"github.com/BaSui01/meshflow/types"
)

// Client runs the generation pipeline with a fixed configuration.
type Client struct {
	cfg  *config.Config
	pipe *pipeline.Pipeline
}

type settings struct {
	cfg        *config.Config
	configFile string
	apiKey     string
	model      string
	provider   llm.Provider
	logger     *zap.Logger
	pipeOpts   []pipeline.Option
}

// Option configures the client created by [New].
type Option func(*settings)

// WithConfig uses an already loaded configuration instead of loading one.
func WithConfig(cfg *config.Config) Option {
	return func(s *settings) { s.cfg = cfg }
}

// WithConfigFile loads configuration from a YAML file. Environment
// variables still apply on top.
func WithConfigFile(path string) Option {
	return func(s *settings) { s.configFile = path }
}

// WithAPIKey overrides the LLM API key from OPENAI_API_KEY.
func WithAPIKey(key string) Option {
	return func(s *settings) { s.apiKey = key }
}

// WithModel overrides the model for every stage.
func WithModel(model string) Option {
	return func(s *settings) { s.model = model }
}

// WithProvider sets a pre-built LLM provider and skips the OpenAI one.
func WithProvider(p llm.Provider) Option {
	return func(s *settings) { s.provider = p }
}

// WithLogger sets a custom zap logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithPipelineOptions appends raw pipeline options, for a custom
// builder, cache, metrics sink, or progress observer.
func WithPipelineOptions(opts ...pipeline.Option) Option {
	return func(s *settings) { s.pipeOpts = append(s.pipeOpts, opts...) }
}

// New creates a [Client]. Without options, configuration comes from
// defaults plus MESHFLOW_* environment variables and the API key from
// OPENAI_API_KEY.
func New(opts ...Option) (*Client, error) {
	s := &settings{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	cfg := s.cfg
	if cfg == nil {
		loader := config.NewLoader()
		if s.configFile != "" {
			loader = loader.WithConfigPath(s.configFile)
		}
		var err error
		cfg, err = loader.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if s.apiKey != "" {
		cfg.LLM.APIKey = s.apiKey
	}
	if s.model != "" {
		for _, stage := range []*config.StageConfig{
			&cfg.LLM.Classifier,
			&cfg.LLM.Decomposer,
			&cfg.LLM.Planner,
			&cfg.LLM.Connections,
			&cfg.LLM.Materials,
		} {
			stage.Model = s.model
		}
	}

	provider := s.provider
	if provider == nil {
		if cfg.LLM.APIKey == "" {
			return nil, fmt.Errorf("no API key configured; set OPENAI_API_KEY or use WithAPIKey")
		}
		provider = openai.New(openai.Config{
			APIKey:       cfg.LLM.APIKey,
			BaseURL:      cfg.LLM.BaseURL,
			Organization: cfg.LLM.Organization,
			Timeout:      cfg.LLM.Timeout,
		}, s.logger)
	}

	pipeOpts := append(
		[]pipeline.Option{pipeline.WithValidator(geometry.NewValidator(s.logger))},
		s.pipeOpts...,
	)

	return &Client{
		cfg:  cfg,
		pipe: pipeline.New(cfg, provider, s.logger, pipeOpts...),
	}, nil
}

// Generate produces a furniture scene from a natural language
// description. Output paths come from the configuration.
func (c *Client) Generate(ctx context.Context, prompt string) (*types.Result, error) {
	return c.pipe.Generate(ctx, pipeline.Request{Prompt: prompt})
}

// GenerateTo writes the scene to output and the raw plan to its
// _raw.json sibling. A .blend output is treated as its .json sibling.
func (c *Client) GenerateTo(ctx context.Context, prompt, output string) (*types.Result, error) {
	raw, validated := pipeline.ResolvePaths(c.cfg.Pipeline, output)
	return c.pipe.Generate(ctx, pipeline.Request{
		Prompt:        prompt,
		RawPath:       raw,
		ValidatedPath: validated,
	})
}

// Config returns the client's configuration.
func (c *Client) Config() *config.Config {
	return c.cfg
}
