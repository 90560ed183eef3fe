package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "BORSA"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Database  DatabaseConfig  `yaml:"database" envconfig:"DATABASE"`
	Lock      LockConfig      `yaml:"lock" envconfig:"LOCK"`
	Ingestion IngestionConfig `yaml:"ingestion" envconfig:"INGESTION"`
	Analytics AnalyticsConfig `yaml:"analytics" envconfig:"ANALYTICS"`
	Scheduler SchedulerConfig `yaml:"scheduler" envconfig:"SCHEDULER"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	RequestTimeout  time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	// AllowedOrigins lists browser origins accepted on the event stream.
	// Empty allows any origin.
	AllowedOrigins []string `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS"`
	Burst   int     `yaml:"burst" envconfig:"BURST"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL"`
	Output      string `yaml:"output" envconfig:"OUTPUT"`
	FilePath    string `yaml:"file_path" envconfig:"FILE_PATH"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// DatabaseConfig selects the relational backend used by the gorm store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" envconfig:"DRIVER"`
	DSN             string        `yaml:"dsn" envconfig:"DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME"`
	LogLevel        string        `yaml:"log_level" envconfig:"LOG_LEVEL"`
}

// LockConfig selects how the single-writer-per-instrument guard is enforced.
type LockConfig struct {
	Backend       string        `yaml:"backend" envconfig:"BACKEND"`
	RedisAddr     string        `yaml:"redis_addr" envconfig:"REDIS_ADDR"`
	RedisPassword string        `yaml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `yaml:"redis_db" envconfig:"REDIS_DB"`
	TTL           time.Duration `yaml:"ttl" envconfig:"TTL"`
	RetryInterval time.Duration `yaml:"retry_interval" envconfig:"RETRY_INTERVAL"`
}

// IngestionConfig controls file uploads and row normalization.
type IngestionConfig struct {
	MaxUploadBytes    int64  `yaml:"max_upload_bytes" envconfig:"MAX_UPLOAD_BYTES"`
	HeaderMode        string `yaml:"header_mode" envconfig:"HEADER_MODE"`
	DateLayout        string `yaml:"date_layout" envconfig:"DATE_LAYOUT"`
	RecomputeOnIngest bool   `yaml:"recompute_on_ingest" envconfig:"RECOMPUTE_ON_INGEST"`
}

// AnalyticsConfig sizes the recompute job queue and fan-out.
type AnalyticsConfig struct {
	Workers              int           `yaml:"workers" envconfig:"WORKERS"`
	QueueSize            int           `yaml:"queue_size" envconfig:"QUEUE_SIZE"`
	RecomputeConcurrency int           `yaml:"recompute_concurrency" envconfig:"RECOMPUTE_CONCURRENCY"`
	JobTimeout           time.Duration `yaml:"job_timeout" envconfig:"JOB_TIMEOUT"`
	JobRetention         time.Duration `yaml:"job_retention" envconfig:"JOB_RETENTION"`
}

// SchedulerConfig controls the nightly recompute.
type SchedulerConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED"`
	Spec    string `yaml:"spec" envconfig:"SPEC"`
}

// TelemetryConfig toggles metrics and tracing.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment    string `yaml:"environment" envconfig:"ENVIRONMENT"`
	MetricsEnabled bool   `yaml:"metrics_enabled" envconfig:"METRICS_ENABLED"`
	TracingEnabled bool   `yaml:"tracing_enabled" envconfig:"TRACING_ENABLED"`
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in increasing order of precedence. A .env file in the working
// directory is loaded into the environment first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := Default()

	if configFile := getConfigFilePath(); configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields carry no default tags, so envconfig only touches variables that are set.
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file on cfg. Keys absent from the file keep
// their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	switch c.Logging.Output {
	case "stdout", "file", "both":
	default:
		return fmt.Errorf("invalid logging output %q", c.Logging.Output)
	}
	if c.Logging.Output != "stdout" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database dsn must be set")
	}

	switch c.Lock.Backend {
	case "memory":
	case "redis":
		if c.Lock.RedisAddr == "" {
			return fmt.Errorf("redis lock backend requires redis_addr")
		}
		if c.Lock.TTL <= 0 {
			return fmt.Errorf("redis lock ttl must be positive")
		}
	default:
		return fmt.Errorf("unsupported lock backend %q", c.Lock.Backend)
	}

	switch c.Ingestion.HeaderMode {
	case "auto", "present", "absent":
	default:
		return fmt.Errorf("invalid header mode %q", c.Ingestion.HeaderMode)
	}
	if c.Ingestion.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive")
	}

	if c.Analytics.Workers <= 0 {
		return fmt.Errorf("analytics workers must be positive")
	}
	if c.Analytics.RecomputeConcurrency <= 0 {
		return fmt.Errorf("recompute concurrency must be positive")
	}

	if c.Scheduler.Enabled {
		if _, err := cron.NewParser(CronFields).Parse(c.Scheduler.Spec); err != nil {
			return fmt.Errorf("invalid scheduler spec %q: %w", c.Scheduler.Spec, err)
		}
	}

	return nil
}

// CronFields is the field set accepted for Scheduler.Spec (seconds first).
const CronFields = cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if explicit := os.Getenv(EnvPrefix + "_CONFIG_FILE"); explicit != "" {
		return explicit
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  60 * time.Second,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
		},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "stdout",
			FilePath: "logs/app.log",
		},
		Database: DatabaseConfig{
			Driver:          "sqlite",
			DSN:             "data/borsapulse.db",
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Hour,
			LogLevel:        "warn",
		},
		Lock: LockConfig{
			Backend:       "memory",
			TTL:           5 * time.Minute,
			RetryInterval: 100 * time.Millisecond,
		},
		Ingestion: IngestionConfig{
			MaxUploadBytes: 20 << 20,
			HeaderMode:     "auto",
		},
		Analytics: AnalyticsConfig{
			Workers:              2,
			QueueSize:            64,
			RecomputeConcurrency: 4,
			JobTimeout:           10 * time.Minute,
			JobRetention:         24 * time.Hour,
		},
		Scheduler: SchedulerConfig{
			Enabled: false,
			Spec:    "0 30 18 * * 1-5",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "borsapulse",
			Environment:    "development",
			MetricsEnabled: true,
			TracingEnabled: false,
		},
	}
}
