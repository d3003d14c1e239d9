package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imattdu/tracectx/errorx"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1000, cfg.Log.MaxStringLength)
	assert.Equal(t, "...", cfg.Log.CutoffIndicator)
	assert.Equal(t, ReporterUDP, cfg.Reporter.Type)
	assert.False(t, cfg.EnableForConsole)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	path := writeFile(t, `
service_name: orders
environment: staging
sampler:
  type: probabilistic
  param: 0.25
reporter:
  type: http
  endpoint: http://collector:14268/api/traces
  flush_interval: 2s
log:
  max_string_length: 64
enable_for_console: true
`)
	t.Setenv("TRACE_ENVIRONMENT", "prod")
	t.Setenv("TRACE_SAMPLER_PARAM", "0.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "orders", cfg.ServiceName)
	assert.Equal(t, "prod", cfg.Environment)
	assert.Equal(t, "probabilistic", cfg.Sampler.Type)
	assert.Equal(t, 0.5, cfg.Sampler.Param)
	assert.Equal(t, ReporterHTTP, cfg.Reporter.Type)
	assert.Equal(t, 2*time.Second, cfg.Reporter.FlushInterval)
	assert.Equal(t, 64, cfg.Log.MaxStringLength)
	// 文件里没写的字段保留默认值
	assert.Equal(t, "...", cfg.Log.CutoffIndicator)
	assert.Equal(t, 1000, cfg.Reporter.QueueSize)
	assert.True(t, cfg.EnableForConsole)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv("TRACE_SERVICE_NAME", "billing")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "billing", cfg.ServiceName)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, errorx.New(errorx.ErrInvalidConfig)))

	_, err = Load(writeFile(t, "sampler: [not, a, map]"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "reporter:\n  type: carrier-pigeon\n"))
	assert.True(t, errors.Is(err, errorx.New(errorx.ErrInvalidConfig)))
}

func TestValidate(t *testing.T) {
	tests := map[string]func(c *Config){
		"no service":       func(c *Config) { c.ServiceName = "" },
		"bad sampler":      func(c *Config) { c.Sampler.Type = "random" },
		"negative param":   func(c *Config) { c.Sampler.Param = -1 },
		"otlp no endpoint": func(c *Config) { c.Reporter.Type = ReporterOTLP },
		"zero max length":  func(c *Config) { c.Log.MaxStringLength = 0 },
		"long cutoff":      func(c *Config) { c.Log.MaxStringLength = 3 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errorx.ServiceConfig.Code, errorx.ServiceOf(err).Code)
		})
	}
}

func TestAgentAddr(t *testing.T) {
	tests := []struct {
		host     string
		wantHost string
		wantPort int
	}{
		{"", "127.0.0.1", 6831},
		{"jaeger:6832", "jaeger", 6832},
		{"jaeger", "jaeger", 6831},
		{":7000", "127.0.0.1", 7000},
		{"jaeger:abc", "jaeger", 6831},
	}
	for _, tt := range tests {
		cfg := Default()
		cfg.Reporter.Host = tt.host
		h, p := cfg.AgentAddr()
		assert.Equal(t, tt.wantHost, h, tt.host)
		assert.Equal(t, tt.wantPort, p, tt.host)
	}
}
