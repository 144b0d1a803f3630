// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/SyedDaiam9101/session-service/internal/engine"
)

// Supported engine names.
const (
	EngineONNXRuntime = "onnxruntime"
	EngineMock        = "mock"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SESSIOND"

// Config holds all configuration for the service
type Config struct {
	// Server configuration
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	Model       string `mapstructure:"model"`
	WatchModel  bool   `mapstructure:"watch_model"`

	// Engine selection
	Engine     string `mapstructure:"engine"`
	ORTLibrary string `mapstructure:"ort_library"`

	// Result cache, disabled when Redis is empty
	Redis    string        `mapstructure:"redis"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`

	// OpenTelemetry configuration
	OTELEnabled  bool   `mapstructure:"otel_enabled"`
	OTELEndpoint string `mapstructure:"otel_endpoint"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFile   string `mapstructure:"log_file"`
	LogFormat string `mapstructure:"log_format"`

	// Session options passed through to the engine
	Session engine.Options `mapstructure:"session"`
}

// flagKeys maps command line flag names to config keys.
var flagKeys = map[string]string{
	"port":         "port",
	"metrics-port": "metrics_port",
	"model":        "model",
	"watch":        "watch_model",
	"engine":       "engine",
	"ort-library":  "ort_library",
	"redis":        "redis",
	"cache-ttl":    "cache_ttl",
	"log-level":    "log_level",
	"log-file":     "log_file",
	"log-format":   "log_format",
	"threads":      "session.intra_op_threads",
	"profile":      "session.enable_profiling",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 50051)
	v.SetDefault("metrics_port", 9100)
	v.SetDefault("model", "model.onnx")
	v.SetDefault("watch_model", false)
	v.SetDefault("engine", EngineONNXRuntime)
	v.SetDefault("ort_library", "")
	v.SetDefault("redis", "")
	v.SetDefault("cache_ttl", 5*time.Minute)
	v.SetDefault("otel_enabled", false)
	v.SetDefault("otel_endpoint", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
	v.SetDefault("log_format", "text")
	v.SetDefault("session.graph_optimization_level", "")
	v.SetDefault("session.intra_op_threads", 0)
	v.SetDefault("session.inter_op_threads", 0)
	v.SetDefault("session.execution_providers", []string{})
	v.SetDefault("session.log_severity", 2)
	v.SetDefault("session.enable_profiling", false)
	v.SetDefault("session.profile_prefix", "")
}

// Load loads configuration from flags, environment variables, and an optional config file.
// Priority (highest to lowest): flags > env vars > config file > defaults.
// An empty configFile searches the default locations and tolerates a missing file.
// flags may be nil; only flags that were set on the command line are applied.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	// Environment variable configuration
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.BindEnv("otel_endpoint", EnvPrefix+"_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")

	// Also read OTEL standard env vars
	if os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != "" {
		v.SetDefault("otel_enabled", true)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/sessiond/")
		v.AddConfigPath("$HOME/.sessiond")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				// Config file was found but another error occurred
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	// Override with flags if provided. VisitAll plus Changed also sees flags
	// inherited from a parent set, which Visit skips.
	if flags != nil {
		flags.VisitAll(func(f *pflag.Flag) {
			if !f.Changed {
				return
			}
			if key, ok := flagKeys[f.Name]; ok {
				v.Set(key, f.Value.String())
			}
		})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MetricsPort <= 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", c.MetricsPort)
	}
	if c.Port == c.MetricsPort {
		return fmt.Errorf("port and metrics_port must be different")
	}
	if c.Engine != EngineONNXRuntime && c.Engine != EngineMock {
		return fmt.Errorf("unknown engine %q (want %s or %s)", c.Engine, EngineONNXRuntime, EngineMock)
	}
	if c.Model == "" {
		return fmt.Errorf("model path is required")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("invalid cache_ttl: %s", c.CacheTTL)
	}
	if c.Session.IntraOpThreads < 0 || c.Session.InterOpThreads < 0 {
		return fmt.Errorf("thread counts must not be negative")
	}
	if !slices.Contains(engine.GraphOptimizationLevels, c.Session.GraphOptimizationLevel) {
		return fmt.Errorf("invalid graph_optimization_level %q", c.Session.GraphOptimizationLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log_format %q", c.LogFormat)
	}
	return nil
}
