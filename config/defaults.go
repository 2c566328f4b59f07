package config

import "time"

// Stage model defaults. Each pipeline stage pins the model it was tuned
// against rather than sharing a single default.
const (
	DefaultClassifierModel  = "gpt-4o-2024-08-06"
	DefaultDecomposerModel  = "gpt-4-0125-preview"
	DefaultPlannerModel     = "gpt-4o-2024-08-06"
	DefaultConnectionsModel = "gpt-4"
	DefaultMaterialsModel   = "gpt-4-0125-preview"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		LLM:       DefaultLLMConfig(),
		Pipeline:  DefaultPipelineConfig(),
		Blender:   DefaultBlenderConfig(),
		Batch:     DefaultBatchConfig(),
		Database:  DefaultDatabaseConfig(),
		Redis:     DefaultRedisConfig(),
		Storage:   DefaultStorageConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default server configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9090,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    10 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
		AuthEnabled:     false,
	}
}

// DefaultLLMConfig returns the default LLM configuration.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:     "openai",
		APIKey:       "",
		BaseURL:      "",
		Timeout:      2 * time.Minute,
		MaxRetries:   3,
		CacheEnabled: true,
		CacheTTL:     time.Hour,
		Classifier: StageConfig{
			Model:       DefaultClassifierModel,
			Temperature: 0.1,
		},
		Decomposer: StageConfig{
			Model:       DefaultDecomposerModel,
			Temperature: 0.2,
		},
		Planner: StageConfig{
			Model:       DefaultPlannerModel,
			Temperature: 0.2,
		},
		Connections: StageConfig{
			Model:       DefaultConnectionsModel,
			Temperature: 0.2,
		},
		Materials: StageConfig{
			Model:       DefaultMaterialsModel,
			Temperature: 0.2,
		},
	}
}

// DefaultPipelineConfig returns the default pipeline configuration.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		OutputDir:         "~/Desktop/generated-assets",
		RawFileName:       "primitives_raw.json",
		ValidatedFileName: "primitives.json",
		SkipValidation:    false,
		SkipMaterials:     false,
	}
}

// DefaultBlenderConfig returns the default Blender configuration.
func DefaultBlenderConfig() BlenderConfig {
	return BlenderConfig{
		Binary:  "",
		Timeout: 10 * time.Minute,
		Enabled: true,
	}
}

// DefaultBatchConfig returns the default batch configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		Workers:         2,
		ContinueOnError: true,
	}
}

// DefaultDatabaseConfig returns the default database configuration.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Enabled:         false,
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "meshflow",
		Password:        "",
		Name:            "meshflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultRedisConfig returns the default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultStorageConfig returns the default object store configuration.
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		Enabled:  false,
		Endpoint: "localhost:9000",
		Bucket:   "meshflow-assets",
		UseSSL:   false,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "meshflow",
		SampleRate:   0.1,
	}
}
