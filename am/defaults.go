package am

import (
	"github.com/spf13/viper"

	"github.com/taglme/console/version"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Service defaults
	v.SetDefault("service.base_url", DefaultBaseURL)
	v.SetDefault("service.locale", DefaultLocale)
	v.SetDefault("service.app_key", "")
	v.SetDefault("service.timeout_ms", DefaultTimeoutMs)
	v.SetDefault("service.user_agent", version.UserAgent())

	// Policy defaults
	v.SetDefault("policy.ignore_host_license", false)

	// Lifecycle and stream timing
	v.SetDefault("lifecycle.quiet_timeout_ms", DefaultQuietTimeoutMs)
	v.SetDefault("stream.poll_interval_ms", DefaultPollIntervalMs)

	// Job defaults
	v.SetDefault("job.adapter_id", "")
	v.SetDefault("job.expire_after_seconds", DefaultExpireAfterSeconds)

	v.SetDefault("log.json", false)
}

// App key environment variables, highest precedence first
const (
	EnvAppKey       = "NFC_CONSOLE_X_APP_KEY"
	EnvAppKeyLegacy = "X_APP_KEY"
)

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// Viper checks the names in order, so the console-specific key wins over the legacy one
	_ = v.BindEnv("service.app_key", EnvAppKey, EnvAppKeyLegacy)
}

// ResolveAppKey fills in the build-time key when no other source provided one
func ResolveAppKey(cfg *Config) {
	if cfg.Service.AppKey == "" {
		cfg.Service.AppKey = EmbeddedAppKey
	}
}
