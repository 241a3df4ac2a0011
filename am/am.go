// Package am loads and persists the console configuration.
//
// Sources are merged in precedence order: built-in defaults, user config
// (~/.tagconsole/tagconsole.toml), saved settings (~/.tagconsole/settings.toml),
// project config (tagconsole.toml found by walking up from the working
// directory), then TAGCONSOLE_* environment variables.
package am

import (
	"fmt"
	"time"
)

// Config represents the console configuration
type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Stream    StreamConfig    `mapstructure:"stream"`
	Job       JobConfig       `mapstructure:"job"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServiceConfig configures the connection to nfcd
type ServiceConfig struct {
	BaseURL   string `mapstructure:"base_url"`   // e.g. "http://127.0.0.1:3011"
	Locale    string `mapstructure:"locale"`     // en or ru, sent as Accept-Language and on the event stream
	AppKey    string `mapstructure:"app_key"`    // X-App-Key header; see ResolveAppKey for precedence
	TimeoutMs int    `mapstructure:"timeout_ms"` // HTTP request timeout (0 = no timeout)
	UserAgent string `mapstructure:"user_agent"`
}

// PolicyConfig configures local policy enforcement
type PolicyConfig struct {
	// IgnoreHostLicense skips capability enforcement and rate limiting (development bypass)
	IgnoreHostLicense bool `mapstructure:"ignore_host_license"`
}

// LifecycleConfig configures the job lifecycle tracker
type LifecycleConfig struct {
	QuietTimeoutMs int `mapstructure:"quiet_timeout_ms"` // Debounce before reverting or auto-closing (default: 2000)
}

// StreamConfig configures the event stream bridge
type StreamConfig struct {
	PollIntervalMs int `mapstructure:"poll_interval_ms"` // Connectivity poll period (default: 1000)
}

// JobConfig configures job submission defaults
type JobConfig struct {
	AdapterID          string `mapstructure:"adapter_id"`           // Default adapter for submit/watch
	ExpireAfterSeconds int    `mapstructure:"expire_after_seconds"` // Queue expiry sent with each job (default: 60)
}

// LogConfig configures logging output
type LogConfig struct {
	JSON bool `mapstructure:"json"`
}

// Defaults
const (
	DefaultBaseURL            = "http://127.0.0.1:3011"
	DefaultLocale             = "en"
	DefaultTimeoutMs          = 10000
	DefaultQuietTimeoutMs     = 2000
	DefaultPollIntervalMs     = 1000
	DefaultExpireAfterSeconds = 60
)

// SupportedLocales lists the locales nfcd can localize events into
var SupportedLocales = []string{"en", "ru"}

// EmbeddedAppKey is set at build time:
//
//	go build -ldflags "-X github.com/taglme/console/am.EmbeddedAppKey=..."
var EmbeddedAppKey string

// File system constants
const (
	DefaultDirPermissions  = 0750
	DefaultFilePermissions = 0644
)

// RequestTimeout returns the HTTP request timeout
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Service.TimeoutMs) * time.Millisecond
}

// QuietTimeout returns the lifecycle debounce, falling back to the default for non-positive values
func (c *Config) QuietTimeout() time.Duration {
	if c.Lifecycle.QuietTimeoutMs <= 0 {
		return DefaultQuietTimeoutMs * time.Millisecond
	}
	return time.Duration(c.Lifecycle.QuietTimeoutMs) * time.Millisecond
}

// PollInterval returns the connectivity poll period, falling back to the default for non-positive values
func (c *Config) PollInterval() time.Duration {
	if c.Stream.PollIntervalMs <= 0 {
		return DefaultPollIntervalMs * time.Millisecond
	}
	return time.Duration(c.Stream.PollIntervalMs) * time.Millisecond
}

// ExpireAfter returns the queue expiry in seconds (default: 60)
func (c *Config) ExpireAfter() int {
	if c.Job.ExpireAfterSeconds <= 0 {
		return DefaultExpireAfterSeconds
	}
	return c.Job.ExpireAfterSeconds
}

// String returns a string representation of the config with the app key redacted
func (c *Config) String() string {
	key := "<unset>"
	if c.Service.AppKey != "" {
		key = "<redacted>"
	}
	return fmt.Sprintf("Config{Service: {BaseURL: %s, Locale: %s, AppKey: %s}, Policy: {IgnoreHostLicense: %t}}",
		c.Service.BaseURL, c.Service.Locale, key, c.Policy.IgnoreHostLicense)
}
