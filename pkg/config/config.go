package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ajitpratap0/jira-extract/pkg/clients"
	"github.com/ajitpratap0/jira-extract/pkg/errors"
	"github.com/ajitpratap0/jira-extract/pkg/extract"
	"github.com/ajitpratap0/jira-extract/pkg/jira"
	"github.com/ajitpratap0/jira-extract/pkg/logger"
	"github.com/ajitpratap0/jira-extract/pkg/observability"
	"github.com/ajitpratap0/jira-extract/pkg/retry"
	"github.com/ajitpratap0/jira-extract/pkg/schema"
	"github.com/ajitpratap0/jira-extract/pkg/sink"
)

// EnvPrefix prefixes the environment variables Overlay reads.
const EnvPrefix = "JIRA_EXTRACT"

// Config is one extraction job.
type Config struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	Token      string `yaml:"token,omitempty"`
	URI        string `yaml:"uri"`
	JQL        string `yaml:"jql"`
	AuthType   string `yaml:"auth_type"`
	APIVersion string `yaml:"api_version"`

	RetryLimit          int `yaml:"retry_limit"`
	RetryInitialWaitSec int `yaml:"retry_initial_wait_sec"`

	Columns []schema.ColumnSpec `yaml:"columns"`

	HTTP          clients.HTTPConfig  `yaml:"http"`
	Sink          sink.Config         `yaml:"sink"`
	Log           logger.Config       `yaml:"log"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ObservabilityConfig configures metrics and tracing.
type ObservabilityConfig struct {
	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr string                      `yaml:"metrics_addr"`
	Tracing     observability.TracingConfig `yaml:"tracing"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		AuthType:            jira.AuthBasic,
		APIVersion:          "latest",
		RetryLimit:          int(retry.DefaultLimit),
		RetryInitialWaitSec: int(retry.DefaultInitialWait / time.Second),
		HTTP:                *clients.DefaultHTTPConfig(),
		Log:                 logger.Config{Level: "info", Encoding: "json"},
	}
}

// Load reads a job file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := LoadFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

// Parse reads a job document over the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.URI = strings.TrimRight(strings.TrimSpace(c.URI), "/")
	c.AuthType = strings.ToLower(strings.TrimSpace(c.AuthType))
	if c.AuthType == "" {
		c.AuthType = jira.AuthBasic
	}
	if c.APIVersion == "" {
		c.APIVersion = "latest"
	}
	for i := range c.Columns {
		if t, err := schema.ParseTypeTag(string(c.Columns[i].Type)); err == nil {
			c.Columns[i].Type = t
		}
	}
}

// Validate checks the configuration for mode. Guess needs no columns and
// no sink; preview and run need columns; run needs a sink.
func (c *Config) Validate(mode extract.Mode) error {
	if c.URI == "" {
		return errors.New(errors.ErrorTypeConfig, "uri is required")
	}
	u, err := url.Parse(c.URI)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Newf(errors.ErrorTypeConfig, "uri %q must be an http or https URL", c.URI)
	}
	if strings.TrimSpace(c.JQL) == "" {
		return errors.New(errors.ErrorTypeConfig, "jql is required")
	}
	switch c.AuthType {
	case jira.AuthBasic:
		if c.Username == "" || c.Password == "" {
			return errors.New(errors.ErrorTypeConfig, "username and password are required for basic auth")
		}
	case jira.AuthBearer:
		if c.Token == "" && c.Password == "" {
			return errors.New(errors.ErrorTypeConfig, "token is required for bearer auth")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown auth_type %q", c.AuthType)
	}
	if c.RetryLimit < 0 {
		return errors.New(errors.ErrorTypeConfig, "retry_limit must not be negative")
	}
	if c.RetryInitialWaitSec < 0 {
		return errors.New(errors.ErrorTypeConfig, "retry_initial_wait_sec must not be negative")
	}
	if _, err := extract.ParseMode(string(mode)); err != nil {
		return err
	}

	if mode != extract.ModeGuess {
		if _, err := schema.NewAttributeMap(c.Columns); err != nil {
			return err
		}
	}
	if mode == extract.ModeRun && c.Sink.Type == "" {
		return errors.New(errors.ErrorTypeConfig, "sink.type is required for run")
	}
	if c.Sink.Upload != nil && c.Sink.Upload.Provider != "s3" && c.Sink.Upload.Provider != "gcs" {
		return errors.Newf(errors.ErrorTypeConfig, "unknown upload provider %q", c.Sink.Upload.Provider)
	}
	return nil
}

// RetryPolicy builds the retry policy of the job.
func (c *Config) RetryPolicy(opts ...retry.Option) *retry.Policy {
	return retry.New(c.RetryLimit, time.Duration(c.RetryInitialWaitSec)*time.Second, opts...)
}

// Jira builds the client configuration.
func (c *Config) Jira() jira.Config {
	httpCfg := c.HTTP
	return jira.Config{
		URI:        c.URI,
		Username:   c.Username,
		Password:   c.Password,
		AuthType:   c.AuthType,
		Token:      c.Token,
		APIVersion: c.APIVersion,
		HTTP:       &httpCfg,
	}
}

// overlayKeys are the settings that can be overridden from the
// environment or flags.
var overlayKeys = []string{
	"username", "password", "token", "uri", "jql", "auth_type", "api_version",
	"retry_limit", "retry_initial_wait_sec",
	"sink.type", "sink.path", "sink.compression", "sink.dsn", "sink.table",
	"log.level", "log.encoding",
	"observability.metrics_addr",
}

// NewViper returns a viper instance reading JIRA_EXTRACT_* variables, with
// dots in keys mapped to underscores (sink.type is JIRA_EXTRACT_SINK_TYPE).
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, k := range overlayKeys {
		_ = v.BindEnv(k)
	}
	return v
}

// Overlay applies every overlay key set in v.
func (c *Config) Overlay(v *viper.Viper) {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}

	str("username", &c.Username)
	str("password", &c.Password)
	str("token", &c.Token)
	str("uri", &c.URI)
	str("jql", &c.JQL)
	str("auth_type", &c.AuthType)
	str("api_version", &c.APIVersion)
	num("retry_limit", &c.RetryLimit)
	num("retry_initial_wait_sec", &c.RetryInitialWaitSec)
	str("sink.type", &c.Sink.Type)
	str("sink.path", &c.Sink.Path)
	str("sink.compression", &c.Sink.Compression)
	str("sink.dsn", &c.Sink.DSN)
	str("sink.table", &c.Sink.Table)
	str("log.level", &c.Log.Level)
	str("log.encoding", &c.Log.Encoding)
	str("observability.metrics_addr", &c.Observability.MetricsAddr)
	c.normalize()
}
