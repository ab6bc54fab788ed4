package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"github.com/portfoliobot/projectstore/pkg/telemetry"
)

const (
	// DefaultEnvPrefix is the prefix of environment variables read by Load.
	DefaultEnvPrefix = "PORTFOLIO_"

	// DefaultDatabasePath is used when no path is configured.
	DefaultDatabasePath = "portfolio.db"

	// DefaultEnvFile is read when LoadOptions.EnvFile is empty and the file exists.
	DefaultEnvFile = ".env"
)

// Config is the root configuration object.
type Config struct {
	Environment string         `yaml:"environment" koanf:"environment" validate:"required"`
	Database    DatabaseConfig `yaml:"database" koanf:"database" validate:"required"`
	Logging     LoggingConfig  `yaml:"logging" koanf:"logging"`
	Tracing     TracingConfig  `yaml:"tracing" koanf:"tracing"`
	Metrics     MetricsConfig  `yaml:"metrics" koanf:"metrics"`
}

// DatabaseConfig locates the SQLite file.
type DatabaseConfig struct {
	Path        string        `yaml:"path" koanf:"path" validate:"required"`
	BusyTimeout time.Duration `yaml:"busy_timeout" koanf:"busy_timeout" validate:"gte=0"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  string `yaml:"level" koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `yaml:"format" koanf:"format" validate:"oneof=console json"`
	Output string `yaml:"output" koanf:"output" validate:"required"`
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" koanf:"enabled"`
	Exporter     string  `yaml:"exporter" koanf:"exporter" validate:"oneof=otlp stdout none"`
	Endpoint     string  `yaml:"endpoint" koanf:"endpoint" validate:"required_if=Exporter otlp"`
	SamplingRate float64 `yaml:"sampling_rate" koanf:"sampling_rate" validate:"gte=0,lte=1"`
}

// MetricsConfig configures the Prometheus registry.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled" koanf:"enabled"`
	ListenAddress string `yaml:"listen_address" koanf:"listen_address"`
	Namespace     string `yaml:"namespace" koanf:"namespace" validate:"required"`
}

// LoadOptions controls where Load looks for configuration.
type LoadOptions struct {
	// ConfigPath is an optional YAML file. A missing file is an error.
	ConfigPath string

	// EnvFile is an optional dotenv file. When empty, DefaultEnvFile is
	// loaded if it exists.
	EnvFile string

	// EnvPrefix defaults to DefaultEnvPrefix.
	EnvPrefix string
}

// Default returns the built-in configuration.
func Default() *Config {
	tel := telemetry.DefaultConfig()
	return &Config{
		Environment: tel.Environment,
		Database: DatabaseConfig{
			Path:        DefaultDatabasePath,
			BusyTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  tel.Logging.Level,
			Format: tel.Logging.Format,
			Output: tel.Logging.Output,
		},
		Tracing: TracingConfig{
			Enabled:      tel.Tracing.Enabled,
			Exporter:     tel.Tracing.Exporter,
			SamplingRate: tel.Tracing.SamplingRate,
		},
		Metrics: MetricsConfig{
			Enabled:       tel.Metrics.Enabled,
			ListenAddress: tel.Metrics.ListenAddress,
			Namespace:     tel.Metrics.Namespace,
		},
	}
}

// Load merges defaults, the YAML file, the dotenv file and the environment,
// then validates the result.
func Load(opts LoadOptions) (*Config, error) {
	cfg := Default()

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}
	}

	if err := loadEnvFile(opts.EnvFile); err != nil {
		return nil, err
	}

	prefix := opts.EnvPrefix
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}

	k := koanf.New(".")
	err := k.Load(env.Provider(prefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, prefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to decode environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFile(path string) error {
	if path == "" {
		if _, err := os.Stat(DefaultEnvFile); err != nil {
			return nil
		}
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// Validate checks the struct tags of every section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// TelemetryConfig converts the configuration for telemetry.NewTelemetry.
func (c *Config) TelemetryConfig() *telemetry.Config {
	tel := telemetry.DefaultConfig()
	tel.Environment = c.Environment

	tel.Logging.Level = c.Logging.Level
	tel.Logging.Format = c.Logging.Format
	tel.Logging.Output = c.Logging.Output

	tel.Tracing.Enabled = c.Tracing.Enabled
	tel.Tracing.Exporter = c.Tracing.Exporter
	tel.Tracing.Endpoint = c.Tracing.Endpoint
	tel.Tracing.SamplingRate = c.Tracing.SamplingRate

	tel.Metrics.Enabled = c.Metrics.Enabled
	tel.Metrics.ListenAddress = c.Metrics.ListenAddress
	tel.Metrics.Namespace = c.Metrics.Namespace
	return tel
}

// WriteDefault writes the default configuration as YAML to path. It refuses
// to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s: %w", path, os.ErrExist)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to stat config file: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
