package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/meshflow/api/handlers"
	"github.com/BaSui01/meshflow/blender"
	"github.com/BaSui01/meshflow/config"
	"github.com/BaSui01/meshflow/geometry"
	"github.com/BaSui01/meshflow/internal/metrics"
	"github.com/BaSui01/meshflow/internal/server"
	"github.com/BaSui01/meshflow/internal/storage"
	"github.com/BaSui01/meshflow/internal/telemetry"
	"github.com/BaSui01/meshflow/llm/cache"
	"github.com/BaSui01/meshflow/llm/openai"
	"github.com/BaSui01/meshflow/pipeline"
	"github.com/BaSui01/meshflow/prompt"
	"github.com/BaSui01/meshflow/store"
)

// poolSampleInterval is how often database pool stats land in Prometheus.
const poolSampleInterval = 15 * time.Second

// Server assembles the HTTP API: pipeline, persistence, artifact storage,
// metrics and the middleware chain, on two listeners (API + metrics).
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	healthHandler   *handlers.HealthHandler
	generateHandler *handlers.GenerateHandler

	metricsCollector *metrics.Collector
	telemetry        *telemetry.Providers
	store            *store.Store
	redis            *redis.Client
	artifacts        *storage.Client

	// bgCtx bounds the rate limiter cleanup goroutines and the pool
	// stats sampler.
	bgCtx    context.Context
	bgCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer creates a server from loaded configuration. Components are
// built in Start.
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger) *Server {
	return &Server{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger,
	}
}

// Start builds all components and brings up both listeners.
func (s *Server) Start() error {
	s.bgCtx, s.bgCancel = context.WithCancel(context.Background())
	s.metricsCollector = metrics.NewCollector("meshflow", s.logger)

	providers, err := telemetry.Init(s.cfg.Telemetry, s.logger)
	if err != nil {
		s.logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	s.telemetry = providers

	if err := s.initComponents(); err != nil {
		return fmt.Errorf("failed to init components: %w", err)
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.startPoolSampler()

	s.logger.Info("all servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("tls", s.tlsEnabled()),
		zap.Bool("auth", s.cfg.Server.AuthEnabled),
	)

	return nil
}

// initComponents wires the pipeline and its collaborators from config.
func (s *Server) initComponents() error {
	if s.cfg.Database.Enabled {
		st, err := store.Open(s.cfg.Database, s.logger)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		if err := st.AutoMigrate(); err != nil {
			s.logger.Warn("store auto-migration failed", zap.Error(err))
		}
		s.store = st
	}

	if s.cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			s.logger.Warn("redis not reachable, shared cache disabled", zap.Error(err))
			_ = rdb.Close()
		} else {
			s.redis = rdb
		}
	}

	artifacts, err := storage.New(s.cfg.Storage, s.logger)
	if err != nil {
		return fmt.Errorf("init artifact storage: %w", err)
	}
	s.artifacts = artifacts

	provider := openai.New(openai.Config{
		APIKey:       s.cfg.LLM.APIKey,
		BaseURL:      s.cfg.LLM.BaseURL,
		Organization: s.cfg.LLM.Organization,
		Timeout:      s.cfg.LLM.Timeout,
	}, s.logger)

	opts := []pipeline.Option{
		pipeline.WithValidator(geometry.NewValidator(s.logger)),
		pipeline.WithMetrics(s.metricsCollector),
	}

	if s.cfg.LLM.CacheEnabled {
		var rdb redis.UniversalClient
		if s.redis != nil {
			rdb = s.redis
		}
		responseCache := cache.New(cache.Options{
			RedisTTL: s.cfg.LLM.CacheTTL,
			Redis:    rdb,
			Logger:   s.logger,
		})
		s.metricsCollector.RegisterCacheStats(func() (uint64, uint64, uint64) {
			stats := responseCache.Stats()
			return stats.L1Hits, stats.L2Hits, stats.Misses
		})
		opts = append(opts, pipeline.WithCache(responseCache))
	}

	if s.cfg.Blender.Enabled {
		builder, err := blender.NewRunner(s.cfg.Blender, s.logger)
		if err != nil {
			s.logger.Warn("Blender not available, .blend builds disabled", zap.Error(err))
		} else {
			opts = append(opts, pipeline.WithBuilder(builder))
		}
	}

	pipe := pipeline.New(s.cfg, provider, s.logger, opts...)

	s.generateHandler = handlers.NewGenerateHandler(pipe, handlers.GenerateHandlerOptions{
		Store:     s.store,
		Artifacts: s.artifacts,
		Metrics:   s.metricsCollector,
		Analyzer:  prompt.NewAnalyzer(),
		WSOrigins: s.cfg.Server.CORSAllowedOrigins,
	}, s.logger)

	s.healthHandler = handlers.NewHealthHandler(s.logger)
	if s.store != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("database", s.store.Ping))
	}
	if s.redis != nil {
		rdb := s.redis
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}

	return nil
}

// startHTTPServer registers routes, builds the middleware chain, and
// starts the API listener.
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("POST /api/v1/generate", s.generateHandler.HandleGenerate)
	mux.HandleFunc("GET /api/v1/generate/ws", s.generateHandler.HandleGenerateWS)
	mux.HandleFunc("GET /api/v1/generations", s.generateHandler.HandleList)
	mux.HandleFunc("GET /api/v1/generations/{id}", s.generateHandler.HandleGet)

	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(s.bgCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	}
	if s.cfg.Server.AuthEnabled {
		middlewares = append(middlewares,
			Auth(s.cfg.Server, skipAuthPaths, s.logger),
			ClientRateLimiter(s.bgCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
		)
	}
	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if s.tlsEnabled() {
		if err := s.httpManager.StartTLS(s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile); err != nil {
			return err
		}
	} else if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// startMetricsServer exposes Prometheus metrics on a separate listener.
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// startPoolSampler feeds database pool stats into the collector until
// shutdown.
func (s *Server) startPoolSampler() {
	if s.store == nil || s.store.Pool() == nil {
		return
	}
	pool := s.store.Pool()
	name := s.cfg.Database.Name
	if name == "" {
		name = s.cfg.Database.Driver
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(poolSampleInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.bgCtx.Done():
				return
			case <-ticker.C:
				stats := pool.Stats()
				s.metricsCollector.RecordDBConnections(name, stats.OpenConnections, stats.Idle)
			}
		}
	}()
}

func (s *Server) tlsEnabled() bool {
	return s.cfg.Server.TLSCertFile != "" && s.cfg.Server.TLSKeyFile != ""
}

// WaitForShutdown blocks until a termination signal, then shuts down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown stops both listeners and releases every component.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx := context.Background()

	if s.bgCancel != nil {
		s.bgCancel()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}

	s.wg.Wait()

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("store close error", zap.Error(err))
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			s.logger.Error("redis close error", zap.Error(err))
		}
	}
	if s.telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s.telemetry.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
		cancel()
	}

	s.logger.Info("graceful shutdown completed")
}
