// Package config defines the MeshFlow configuration schema and loader.
//
// Configuration precedence: defaults, then YAML file, then environment
// variables with the MESHFLOW_ prefix.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete MeshFlow configuration.
type Config struct {
	// Server holds the serve-mode HTTP settings.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// LLM holds provider credentials and per-stage model settings.
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Pipeline holds generation pipeline settings.
	Pipeline PipelineConfig `yaml:"pipeline" env:"PIPELINE"`

	// Blender holds scene build settings.
	Blender BlenderConfig `yaml:"blender" env:"BLENDER"`

	// Batch holds manifest processing settings.
	Batch BatchConfig `yaml:"batch" env:"BATCH"`

	// Database holds the generation record store settings.
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Redis holds the shared cache settings.
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Storage holds the artifact object store settings.
	Storage StorageConfig `yaml:"storage" env:"STORAGE"`

	// Log holds logging settings.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry holds tracing settings.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig holds serve-mode HTTP settings.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	MetricsPort     int           `yaml:"metrics_port" env:"METRICS_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	RateLimitRPS    int           `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// AuthEnabled requires an API key or bearer token on generation
	// endpoints.
	AuthEnabled bool `yaml:"auth_enabled" env:"AUTH_ENABLED"`
	// APIKeys lists the accepted X-API-Key values.
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// AllowQueryAPIKey also accepts the key as an api_key query
	// parameter. Browser WebSocket clients cannot set headers, so the
	// ws endpoint depends on this.
	AllowQueryAPIKey bool `yaml:"allow_query_api_key" env:"ALLOW_QUERY_API_KEY"`
	// JWTSecret enables HS256 bearer token verification.
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// JWTPublicKeyFile is a PEM file enabling RS256 verification.
	JWTPublicKeyFile string `yaml:"jwt_public_key_file" env:"JWT_PUBLIC_KEY_FILE"`
	// JWTIssuer, when set, must match the token's iss claim.
	JWTIssuer string `yaml:"jwt_issuer" env:"JWT_ISSUER"`
	// JWTAudience, when set, must match the token's aud claim.
	JWTAudience string `yaml:"jwt_audience" env:"JWT_AUDIENCE"`
	// CORSAllowedOrigins lists origins allowed on browser requests.
	// Empty means same-origin only.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" env:"CORS_ALLOWED_ORIGINS"`
	// TLSCertFile and TLSKeyFile switch the API server to HTTPS when
	// both are set.
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// StageConfig holds the model settings for one pipeline stage.
type StageConfig struct {
	Model       string  `yaml:"model" env:"MODEL"`
	Temperature float32 `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int     `yaml:"max_tokens" env:"MAX_TOKENS"`
}

// LLMConfig holds provider credentials and per-stage model settings.
type LLMConfig struct {
	Provider string `yaml:"provider" env:"PROVIDER"`
	// APIKey falls back to OPENAI_API_KEY when empty.
	APIKey       string        `yaml:"api_key" env:"API_KEY"`
	BaseURL      string        `yaml:"base_url" env:"BASE_URL"`
	Organization string        `yaml:"organization" env:"ORGANIZATION"`
	Timeout      time.Duration `yaml:"timeout" env:"TIMEOUT"`
	MaxRetries   int           `yaml:"max_retries" env:"MAX_RETRIES"`
	CacheEnabled bool          `yaml:"cache_enabled" env:"CACHE_ENABLED"`
	CacheTTL     time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`

	// Per-stage model assignments.
	Classifier  StageConfig `yaml:"classifier" env:"CLASSIFIER"`
	Decomposer  StageConfig `yaml:"decomposer" env:"DECOMPOSER"`
	Planner     StageConfig `yaml:"planner" env:"PLANNER"`
	Connections StageConfig `yaml:"connections" env:"CONNECTIONS"`
	Materials   StageConfig `yaml:"materials" env:"MATERIALS"`
}

// PipelineConfig holds generation pipeline settings.
type PipelineConfig struct {
	// OutputDir is where generated files land when no paths are given on
	// the command line. "~" expands to the user's home directory.
	OutputDir         string `yaml:"output_dir" env:"OUTPUT_DIR"`
	RawFileName       string `yaml:"raw_file_name" env:"RAW_FILE_NAME"`
	ValidatedFileName string `yaml:"validated_file_name" env:"VALIDATED_FILE_NAME"`
	// SkipValidation leaves the planned primitives untouched.
	SkipValidation bool `yaml:"skip_validation" env:"SKIP_VALIDATION"`
	// SkipMaterials skips material assignment.
	SkipMaterials bool `yaml:"skip_materials" env:"SKIP_MATERIALS"`
}

// BlenderConfig holds scene build settings.
type BlenderConfig struct {
	// Binary is the Blender executable. Empty means discover via PATH and
	// well-known install locations.
	Binary  string        `yaml:"binary" env:"BINARY"`
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// Enabled controls whether the pipeline invokes Blender at all.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
}

// BatchConfig holds manifest processing settings.
type BatchConfig struct {
	Workers         int  `yaml:"workers" env:"WORKERS"`
	ContinueOnError bool `yaml:"continue_on_error" env:"CONTINUE_ON_ERROR"`
}

// DatabaseConfig holds the generation record store settings.
type DatabaseConfig struct {
	// Enabled turns on generation record persistence.
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Driver is one of postgres, mysql, sqlite.
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RedisConfig holds the shared cache settings.
type RedisConfig struct {
	Enabled      bool   `yaml:"enabled" env:"ENABLED"`
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
}

// StorageConfig holds the artifact object store settings.
type StorageConfig struct {
	Enabled   bool   `yaml:"enabled" env:"ENABLED"`
	Endpoint  string `yaml:"endpoint" env:"ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"BUCKET"`
	UseSSL    bool   `yaml:"use_ssl" env:"USE_SSL"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig holds tracing settings.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Validate checks the configuration for obvious mistakes.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.LLM.MaxRetries < 0 {
		errs = append(errs, "max_retries must not be negative")
	}
	for name, stage := range map[string]StageConfig{
		"classifier":  c.LLM.Classifier,
		"decomposer":  c.LLM.Decomposer,
		"planner":     c.LLM.Planner,
		"connections": c.LLM.Connections,
		"materials":   c.LLM.Materials,
	} {
		if stage.Model == "" {
			errs = append(errs, fmt.Sprintf("%s model must be set", name))
		}
		if stage.Temperature < 0 || stage.Temperature > 2 {
			errs = append(errs, fmt.Sprintf("%s temperature must be between 0 and 2", name))
		}
	}
	if c.Batch.Workers <= 0 {
		errs = append(errs, "batch workers must be positive")
	}
	if c.Blender.Timeout <= 0 {
		errs = append(errs, "blender timeout must be positive")
	}
	if c.Server.AuthEnabled &&
		c.Server.JWTSecret == "" && c.Server.JWTPublicKeyFile == "" && len(c.Server.APIKeys) == 0 {
		errs = append(errs, "auth is enabled but jwt_secret, jwt_public_key_file, and api_keys are all empty")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "tls_cert_file and tls_key_file must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN returns the database connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
