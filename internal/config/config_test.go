// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 50051, cfg.Port)
	assert.Equal(t, 9100, cfg.MetricsPort)
	assert.Equal(t, EngineONNXRuntime, cfg.Engine)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 2, cfg.Session.LogSeverity)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
port: 6000
engine: mock
model: testdata/model.yaml
cache_ttl: 30s
session:
  intra_op_threads: 4
  execution_providers: [cuda, cpu]
  enable_profiling: true
`)
	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 6000, cfg.Port)
	assert.Equal(t, EngineMock, cfg.Engine)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 4, cfg.Session.IntraOpThreads)
	assert.Equal(t, []string{"cuda", "cpu"}, cfg.Session.ExecutionProviders)
	assert.True(t, cfg.Session.EnableProfiling)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_EnvAndFlags(t *testing.T) {
	path := writeConfig(t, "port: 6000\nmetrics_port: 6001\n")
	t.Setenv("SESSIOND_PORT", "7000")
	t.Setenv("SESSIOND_METRICS_PORT", "7001")
	t.Setenv("SESSIOND_SESSION_INTER_OP_THREADS", "3")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "collector:4317")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	flags.Int("metrics-port", 0, "")
	flags.String("engine", "", "")
	require.NoError(t, flags.Parse([]string{"--port=8000", "--engine=mock"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port, "flag beats env")
	assert.Equal(t, 7001, cfg.MetricsPort, "env beats file; unset flag ignored")
	assert.Equal(t, EngineMock, cfg.Engine)
	assert.Equal(t, 3, cfg.Session.InterOpThreads)
	assert.Equal(t, "collector:4317", cfg.OTELEndpoint)
	assert.True(t, cfg.OTELEnabled)
}

func TestLoad_InheritedFlags(t *testing.T) {
	// cobra shares persistent flags with subcommands through AddFlag, so
	// the child set never records them as visited
	parent := pflag.NewFlagSet("root", pflag.ContinueOnError)
	parent.String("engine", EngineONNXRuntime, "")
	parent.String("ort-library", "", "")
	require.NoError(t, parent.Parse([]string{"--engine=mock"}))

	child := pflag.NewFlagSet("run", pflag.ContinueOnError)
	child.AddFlag(parent.Lookup("engine"))
	child.AddFlag(parent.Lookup("ort-library"))

	cfg, err := Load("", child)
	require.NoError(t, err)

	assert.Equal(t, EngineMock, cfg.Engine)
	assert.Empty(t, cfg.ORTLibrary)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load("", nil)
		require.NoError(t, err)
		return cfg
	}

	cases := map[string]func(*Config){
		"port":         func(c *Config) { c.Port = 0 },
		"metrics port": func(c *Config) { c.MetricsPort = 70000 },
		"same ports":   func(c *Config) { c.MetricsPort = c.Port },
		"engine":       func(c *Config) { c.Engine = "tensorflow" },
		"model":        func(c *Config) { c.Model = "" },
		"ttl":          func(c *Config) { c.CacheTTL = -time.Second },
		"threads":      func(c *Config) { c.Session.IntraOpThreads = -1 },
		"opt level":    func(c *Config) { c.Session.GraphOptimizationLevel = "max" },
		"log format":   func(c *Config) { c.LogFormat = "xml" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
