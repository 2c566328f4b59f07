package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/meshflow/batch"
	"github.com/BaSui01/meshflow/blender"
	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/geometry"
	"github.com/BaSui01/meshflow/llm/cache"
	"github.com/BaSui01/meshflow/llm/openai"
	"github.com/BaSui01/meshflow/pipeline"
	"github.com/BaSui01/meshflow/prompt"
	"github.com/BaSui01/meshflow/types"
)

// Build information, injected via -ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const usage = `meshflow turns natural language furniture descriptions into structured
3D scenes and optional Blender builds.

Usage: meshflow COMMAND [flags] [args]

Commands:
  generate    Generate a furniture scene from a description
  batch       Run every prompt in a manifest file
  serve       Start the HTTP API server
  migrate     Manage database schema migrations
  health      Probe a running server
  version     Print build information
  help        Show this message

Run "meshflow COMMAND -h" for command flags.

Examples:
  meshflow generate "a rustic oak bookshelf with five shelves"
  meshflow generate -blend "a modern standing desk" desk.json
  meshflow batch prompts.txt
  meshflow serve -config configs/meshflow.yaml
`

const generateUsage = `Usage: meshflow generate [flags] "DESCRIPTION" [RAW_PATH [VALIDATED_PATH]]

Generates a furniture scene from a natural language description. The raw
plan and the validated scene are written as JSON; -blend also builds a
.blend file with Blender. Paths ending in .blend are treated as their
.json sibling.

Flags:
  -config PATH   Configuration file
  -model NAME    Override the model for every stage
  -timeout D     Abort the run after D (for example 5m)
  -blend         Build a .blend scene after validation
  -json-only     Skip the Blender build even when enabled in config
`

const batchUsage = `Usage: meshflow batch [flags] MANIFEST

Runs every prompt in a manifest. A .txt manifest holds one prompt per
line; a .json manifest holds an array of prompts or {prompt, output_path}
objects.

Flags:
  -config PATH   Configuration file
  -model NAME    Override the model for every stage
  -workers N     Concurrent generations (overrides config)
  -output DIR    Directory for generated files (overrides config)
`

func main() {
	// A .env next to the working directory is the common local setup.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "generate":
		err = runGenerate(os.Args[2:])
	case "batch":
		err = runBatch(os.Args[2:])
	case "serve":
		err = runServe(os.Args[2:])
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "health":
		err = runHealthCheck(os.Args[2:])
	case "version", "-v", "--version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "meshflow: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "meshflow: %v\n", err)
		os.Exit(1)
	}
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file path")
	model := fs.String("model", "", "override the model for every stage")
	timeout := fs.Duration("timeout", 0, "abort the run after this duration")
	buildBlend := fs.Bool("blend", false, "build a .blend scene after validation")
	jsonOnly := fs.Bool("json-only", false, "skip the Blender build")
	fs.Usage = func() { fmt.Fprint(os.Stderr, generateUsage) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *buildBlend && *jsonOnly {
		return fmt.Errorf("generate: -blend and -json-only are mutually exclusive")
	}
	pos := fs.Args()
	if len(pos) == 0 || strings.TrimSpace(pos[0]) == "" {
		fs.Usage()
		return fmt.Errorf("generate: missing furniture description")
	}
	if len(pos) > 3 {
		fs.Usage()
		return fmt.Errorf("generate: too many arguments")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *model != "" {
		overrideModels(cfg, *model)
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set; export it or put it in .env")
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// Keyword hints are informational here; the classifier stage decides.
	analysis := prompt.NewAnalyzer().Analyze(pos[0])
	logger.Info("prompt analysis",
		zap.String("asset_type", analysis.AssetType),
		zap.String("style", analysis.Style),
		zap.Strings("materials", analysis.Materials),
		zap.String("size", analysis.Size),
	)

	req := pipeline.Request{Prompt: pos[0]}
	if len(pos) > 1 {
		req.RawPath = pos[1]
	}
	if len(pos) > 2 {
		req.ValidatedPath = pos[2]
	}
	if *buildBlend {
		t := true
		req.BuildBlend = &t
	}
	if *jsonOnly {
		f := false
		req.BuildBlend = &f
	}

	pipe, err := buildPipeline(cfg, logger, *buildBlend)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	res, err := pipe.Generate(ctx, req)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func runBatch(args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file path")
	model := fs.String("model", "", "override the model for every stage")
	workers := fs.Int("workers", 0, "concurrent generations")
	outputDir := fs.String("output", "", "directory for generated files")
	fs.Usage = func() { fmt.Fprint(os.Stderr, batchUsage) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("batch: missing manifest file")
	}
	manifest := fs.Arg(0)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if *model != "" {
		overrideModels(cfg, *model)
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set; export it or put it in .env")
	}
	if *workers > 0 {
		cfg.Batch.Workers = *workers
	}
	if *outputDir != "" {
		cfg.Pipeline.OutputDir = *outputDir
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	items, err := batch.ParseManifest(manifest)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("batch: manifest %s has no prompts", manifest)
	}

	pipe, err := buildPipeline(cfg, logger, false)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := batch.NewRunner(pipe, cfg.Batch, cfg.Pipeline.OutputDir, logger)
	summary, err := runner.Run(ctx, items)
	if err != nil {
		return err
	}

	fmt.Printf("Batch finished: %d total, %d succeeded, %d failed\n",
		summary.Total, summary.Succeeded, summary.Failed)
	for _, item := range summary.Items {
		if item.Err != nil {
			fmt.Fprintf(os.Stderr, "  [%d] %q: %v\n", item.Index, item.Prompt, item.Err)
		}
	}
	if summary.Failed > 0 {
		return fmt.Errorf("batch: %d of %d generations failed", summary.Failed, summary.Total)
	}
	return nil
}

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key is not configured; set OPENAI_API_KEY")
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting meshflow server",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
	)

	srv := NewServer(cfg, *configPath, logger)
	if err := srv.Start(); err != nil {
		logger.Error("failed to start server", zap.Error(err))
		return err
	}
	srv.WaitForShutdown()
	return nil
}

func runHealthCheck(args []string) error {
	fs := flag.NewFlagSet("health", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "server address to probe")
	if err := fs.Parse(args); err != nil {
		return err
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimSuffix(*addr, "/") + "/healthz")
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	fmt.Println("ok")
	return nil
}

// loadConfig loads and validates configuration, with defaults when no
// file path is given.
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideModels(cfg *config.Config, model string) {
	for _, stage := range []*config.StageConfig{
		&cfg.LLM.Classifier,
		&cfg.LLM.Decomposer,
		&cfg.LLM.Planner,
		&cfg.LLM.Connections,
		&cfg.LLM.Materials,
	} {
		stage.Model = model
	}
}

// buildPipeline assembles a CLI pipeline: geometry validation, an
// in-process response cache, progress on stderr, and Blender when
// available. requireBlender makes a missing Blender binary fatal.
func buildPipeline(cfg *config.Config, logger *zap.Logger, requireBlender bool) (*pipeline.Pipeline, error) {
	provider := openai.New(openai.Config{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		Organization: cfg.LLM.Organization,
		Timeout:      cfg.LLM.Timeout,
	}, logger)

	opts := []pipeline.Option{
		pipeline.WithValidator(geometry.NewValidator(logger)),
		pipeline.WithObserver(printProgress),
	}

	if cfg.LLM.CacheEnabled {
		opts = append(opts, pipeline.WithCache(cache.New(cache.Options{
			LocalTTL: cfg.LLM.CacheTTL,
			Logger:   logger,
		})))
	}

	if cfg.Blender.Enabled || requireBlender {
		builder, err := blender.NewRunner(cfg.Blender, logger)
		switch {
		case err == nil:
			opts = append(opts, pipeline.WithBuilder(builder))
		case requireBlender:
			return nil, fmt.Errorf("blender requested but unavailable: %w", err)
		default:
			logger.Warn("Blender not available, .blend builds disabled", zap.Error(err))
		}
	}

	return pipeline.New(cfg, provider, logger, opts...), nil
}

func printProgress(ev pipeline.Event) {
	switch ev.Type {
	case pipeline.EventStageStarted:
		fmt.Fprintf(os.Stderr, "==> %s\n", ev.Stage)
	case pipeline.EventStageCompleted:
		fmt.Fprintf(os.Stderr, "    %s done in %s\n", ev.Stage, ev.Duration.Round(time.Millisecond))
	case pipeline.EventStageFailed:
		fmt.Fprintf(os.Stderr, "    %s failed: %s\n", ev.Stage, ev.Error)
	}
}

func printResult(res *types.Result) {
	var promptTokens, completionTokens int
	for _, s := range res.Stages {
		promptTokens += s.PromptTokens
		completionTokens += s.CompletionTokens
	}

	fmt.Println()
	fmt.Printf("Generated scene for %q\n", res.Prompt)
	fmt.Printf("  components: %d\n", len(res.Components))
	fmt.Printf("  raw plan:   %s\n", res.RawPath)
	fmt.Printf("  scene:      %s\n", res.ValidatedPath)
	if res.BlendPath != "" {
		fmt.Printf("  blend:      %s\n", res.BlendPath)
	}
	fmt.Printf("  tokens:     %d prompt, %d completion\n", promptTokens, completionTokens)
	fmt.Printf("  duration:   %s\n", res.Duration.Round(time.Millisecond))
}

// initLogger builds the process logger from configuration. Console
// format is for local development, json for everything else.
func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, parseErr := zapcore.ParseLevel(cfg.Level)
	if parseErr != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "timestamp"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	if len(cfg.OutputPaths) > 0 {
		zapCfg.OutputPaths = cfg.OutputPaths
	}
	zapCfg.DisableCaller = !cfg.EnableCaller
	zapCfg.DisableStacktrace = !cfg.EnableStacktrace

	var opts []zap.Option
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}
	logger, err := zapCfg.Build(opts...)
	if err != nil {
		return zap.NewProduction()
	}
	return logger, nil
}

func printVersion() {
	fmt.Printf("meshflow %s\n", Version)
	fmt.Printf("  build time: %s\n", BuildTime)
	fmt.Printf("  git commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Print(usage)
}
