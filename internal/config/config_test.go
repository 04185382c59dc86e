package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves to dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	original, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(original) })
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.False(t, cfg.Watch.Enabled)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, "openapi.execute", cfg.NATS.Subject)
}

// =============================================================================
// Load
// =============================================================================

func TestLoad_NoConfigFile(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "xopenapi.yaml", `
document: petstore.yaml
log:
  level: debug
server:
  addr: 127.0.0.1:9000
  requestTimeout: 5s
watch:
  enabled: true
  debounce: 1s
security:
  schemes:
    - name: apiKey
      header: X-Api-Key
      tokens: [secret]
      scopes: [read]
`)
	chdir(t, dir)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "petstore.yaml", cfg.Document)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, time.Second, cfg.Watch.Debounce)
	assert.Equal(t, []SchemeConfig{{
		Name:   "apiKey",
		Header: "X-Api-Key",
		Tokens: []string{"secret"},
		Scopes: []string{"read"},
	}}, cfg.Security.Schemes)
}

func TestLoad_ExplicitPath(t *testing.T) {
	path := writeFile(t, t.TempDir(), "custom.json", `{"document": "api.json", "metrics": {"enabled": false}}`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "api.json", cfg.Document)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "xopenapi.yaml", `
document: file.yaml
server:
  addr: :7000
log:
  format: json
`)
	chdir(t, dir)
	t.Setenv("XOPENAPI_SERVER_ADDR", ":7001")
	t.Setenv("XOPENAPI_LOG_LEVEL", "warn")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("document", "", "")
	flags.String("addr", "", "")
	flags.String("log-format", "text", "")
	require.NoError(t, flags.Parse([]string{"--document", "flag.yaml"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)

	assert.Equal(t, "flag.yaml", cfg.Document, "set flags override the file")
	assert.Equal(t, ":7001", cfg.Server.Addr, "environment overrides the file")
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format, "unset flags do not override the file")
}

// =============================================================================
// Validate
// =============================================================================

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := Default()
		cfg.Document = "api.yaml"
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	tests := []struct {
		name   string
		modify func(*Config)
		fields []string
	}{
		{"missing document", func(c *Config) { c.Document = "" }, []string{"document"}},
		{"bad log", func(c *Config) { c.Log.Level = "trace"; c.Log.Format = "xml" }, []string{"log.format", "log.level"}},
		{"bad server", func(c *Config) {
			c.Server.Addr = ""
			c.Server.ShutdownTimeout = -time.Second
			c.Server.MaxBodySize = 0
		}, []string{"server.addr", "server.maxBodySize", "server.shutdownTimeout"}},
		{"metrics path", func(c *Config) { c.Metrics.Path = "metrics" }, []string{"metrics.path"}},
		{"nats subject", func(c *Config) { c.NATS.URL = "nats://localhost:4222"; c.NATS.Subject = "" }, []string{"nats.subject"}},
		{"schemes", func(c *Config) {
			c.Security.Schemes = []SchemeConfig{
				{Name: "apiKey", Header: "X-Api-Key"},
				{Name: "apiKey", Query: "key"},
				{Header: "A", Query: "b"},
			}
		}, []string{"security.schemes[1].name", "security.schemes[2]", "security.schemes[2].name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.modify(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs))
			fields := make([]string, len(verrs))
			for i, e := range verrs {
				fields[i] = e.Field
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())
	assert.Equal(t, "config validation error: a: bad", ValidationErrors{{Field: "a", Message: "bad"}}.Error())
	assert.Equal(t, "config validation errors:\n  - a: bad\n  - b: worse\n",
		ValidationErrors{{Field: "a", Message: "bad"}, {Field: "b", Message: "worse"}}.Error())
}
