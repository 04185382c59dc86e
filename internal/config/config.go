// Package config loads and validates the configuration of the xopenapi
// command.
//
// Values are read, from lowest to highest precedence, from defaults, the
// config file, XOPENAPI_* environment variables and command-line flags.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables overriding config keys, e.g.
// XOPENAPI_SERVER_ADDR for server.addr.
const EnvPrefix = "XOPENAPI"

// Config is the xopenapi configuration.
type Config struct {
	// Document is the path of the OpenAPI document to execute.
	Document string `mapstructure:"document" yaml:"document" json:"document"`

	Log      LogConfig      `mapstructure:"log" yaml:"log" json:"log"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server" json:"server"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics" json:"metrics"`
	Watch    WatchConfig    `mapstructure:"watch" yaml:"watch" json:"watch"`
	NATS     NATSConfig     `mapstructure:"nats" yaml:"nats" json:"nats"`
	Security SecurityConfig `mapstructure:"security" yaml:"security" json:"security"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level" json:"level"`

	// Format is text or json.
	Format string `mapstructure:"format" yaml:"format" json:"format"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Addr              string        `mapstructure:"addr" yaml:"addr" json:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"readHeaderTimeout" yaml:"readHeaderTimeout" json:"readHeaderTimeout"`

	// RequestTimeout bounds the handling of one request. Zero disables it.
	RequestTimeout  time.Duration `mapstructure:"requestTimeout" yaml:"requestTimeout" json:"requestTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout" yaml:"shutdownTimeout" json:"shutdownTimeout"`
	MaxBodySize     int64         `mapstructure:"maxBodySize" yaml:"maxBodySize" json:"maxBodySize"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Path    string `mapstructure:"path" yaml:"path" json:"path"`
}

// WatchConfig configures reloading the document when it changes.
type WatchConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled" json:"enabled"`
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce" json:"debounce"`
}

// NATSConfig configures serving the document over NATS. Disabled when URL
// is empty.
type NATSConfig struct {
	URL     string        `mapstructure:"url" yaml:"url" json:"url"`
	Subject string        `mapstructure:"subject" yaml:"subject" json:"subject"`
	Queue   string        `mapstructure:"queue" yaml:"queue" json:"queue"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
}

// SecurityConfig configures how HTTP requests are authenticated against the
// security schemes of the document.
type SecurityConfig struct {
	Schemes []SchemeConfig `mapstructure:"schemes" yaml:"schemes" json:"schemes"`
}

// SchemeConfig overrides the credential lookup of one security scheme.
// Schemes of the document without one are granted whenever the credential
// they declare is present.
type SchemeConfig struct {
	// Name is the security scheme name in the document.
	Name string `mapstructure:"name" yaml:"name" json:"name"`

	// Header, or Query, names where the credential is read.
	Header string `mapstructure:"header" yaml:"header" json:"header"`
	Query  string `mapstructure:"query" yaml:"query" json:"query"`

	// Prefix is stripped from the credential, e.g. "Bearer ".
	Prefix string `mapstructure:"prefix" yaml:"prefix" json:"prefix"`

	// Tokens lists the accepted credentials. Any credential is accepted
	// when empty.
	Tokens []string `mapstructure:"tokens" yaml:"tokens" json:"tokens"`

	// Scopes are granted to authenticated requests.
	Scopes []string `mapstructure:"scopes" yaml:"scopes" json:"scopes"`
}

// configFileNames are searched, in order, in the working directory.
var configFileNames = []string{
	"xopenapi.yaml",
	"xopenapi.yml",
	"xopenapi.json",
	".xopenapi.yaml",
}

var (
	supportedLevels  = []string{"debug", "info", "warn", "error"}
	supportedFormats = []string{"text", "json"}
)

// flagKeys maps command-line flags to the config key they override.
var flagKeys = map[string]string{
	"document":     "document",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"addr":         "server.addr",
	"metrics":      "metrics.enabled",
	"watch":        "watch.enabled",
	"nats-url":     "nats.url",
	"nats-subject": "nats.subject",
}

// ValidationError is a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s: %s", e.Field, e.Message)
}

// ValidationErrors gathers the validation errors of a configuration.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("config validation errors:\n")
	for _, err := range e {
		sb.WriteString("  - ")
		sb.WriteString(err.Field)
		sb.WriteString(": ")
		sb.WriteString(err.Message)
		sb.WriteString("\n")
	}
	return sb.String()
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			RequestTimeout:    30 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			MaxBodySize:       10 << 20,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
		Watch:   WatchConfig{Debounce: 200 * time.Millisecond},
		NATS:    NATSConfig{Subject: "openapi.execute", Timeout: 30 * time.Second},
	}
}

// Load reads the configuration from the file at path, or from the first
// config file found in the working directory when path is empty, then
// applies environment variables and the flags of flags that were set.
// flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path == "" {
		path = FilePath()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// FilePath returns the config file found in the working directory, or "".
func FilePath() string {
	for _, name := range configFileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("document", d.Document)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.readHeaderTimeout", d.Server.ReadHeaderTimeout)
	v.SetDefault("server.requestTimeout", d.Server.RequestTimeout)
	v.SetDefault("server.shutdownTimeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.maxBodySize", d.Server.MaxBodySize)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("watch.enabled", d.Watch.Enabled)
	v.SetDefault("watch.debounce", d.Watch.Debounce)
	v.SetDefault("nats.url", d.NATS.URL)
	v.SetDefault("nats.subject", d.NATS.Subject)
	v.SetDefault("nats.queue", d.NATS.Queue)
	v.SetDefault("nats.timeout", d.NATS.Timeout)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if c.Document == "" {
		errs = append(errs, ValidationError{Field: "document", Message: "document is required"})
	}
	if !slices.Contains(supportedLevels, c.Log.Level) {
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("unsupported level %q, must be one of: %s", c.Log.Level, strings.Join(supportedLevels, ", ")),
		})
	}
	if !slices.Contains(supportedFormats, c.Log.Format) {
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("unsupported format %q, must be one of: %s", c.Log.Format, strings.Join(supportedFormats, ", ")),
		})
	}

	if c.Server.Addr == "" {
		errs = append(errs, ValidationError{Field: "server.addr", Message: "address is required"})
	}
	for field, d := range map[string]time.Duration{
		"server.readHeaderTimeout": c.Server.ReadHeaderTimeout,
		"server.requestTimeout":    c.Server.RequestTimeout,
		"server.shutdownTimeout":   c.Server.ShutdownTimeout,
		"watch.debounce":           c.Watch.Debounce,
		"nats.timeout":             c.NATS.Timeout,
	} {
		if d < 0 {
			errs = append(errs, ValidationError{Field: field, Message: "duration must be non-negative"})
		}
	}
	if c.Server.MaxBodySize <= 0 {
		errs = append(errs, ValidationError{Field: "server.maxBodySize", Message: "size must be positive"})
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		errs = append(errs, ValidationError{Field: "metrics.path", Message: "path must start with /"})
	}
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		errs = append(errs, ValidationError{Field: "nats.subject", Message: "subject is required when a url is set"})
	}

	seen := make(map[string]bool, len(c.Security.Schemes))
	for i, s := range c.Security.Schemes {
		field := fmt.Sprintf("security.schemes[%d]", i)
		switch {
		case s.Name == "":
			errs = append(errs, ValidationError{Field: field + ".name", Message: "name is required"})
		case seen[s.Name]:
			errs = append(errs, ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate scheme %q", s.Name)})
		}
		seen[s.Name] = true
		if (s.Header == "") == (s.Query == "") {
			errs = append(errs, ValidationError{Field: field, Message: "exactly one of header and query is required"})
		}
	}

	if len(errs) > 0 {
		// Map iteration above makes the order of duration errors random.
		slices.SortStableFunc(errs, func(a, b ValidationError) int { return strings.Compare(a.Field, b.Field) })
		return errs
	}
	return nil
}
