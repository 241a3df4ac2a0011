package am

import (
	"os"
	"sort"
	"strings"

	"github.com/taglme/console/errors"
)

// ConfigSource represents where a configuration value came from
type ConfigSource string

const (
	SourceDefault     ConfigSource = "default"
	SourceUser        ConfigSource = "user"        // ~/.tagconsole/tagconsole.toml
	SourceSettings    ConfigSource = "settings"    // ~/.tagconsole/settings.toml
	SourceProject     ConfigSource = "project"     // tagconsole.toml in the working tree
	SourceExplicit    ConfigSource = "explicit"    // --config
	SourceEnvironment ConfigSource = "environment" // TAGCONSOLE_* and app key env vars
	SourceBuild       ConfigSource = "build"       // ldflags EmbeddedAppKey
)

// SourceInfo tracks where a configuration value originated
type SourceInfo struct {
	Source ConfigSource
	Path   string // File path or environment variable name
}

// SettingInfo contains metadata about a configuration setting
type SettingInfo struct {
	Key        string       `json:"key"`
	Value      interface{}  `json:"value"`
	Source     ConfigSource `json:"source"`
	SourcePath string       `json:"source_path,omitempty"`
}

// sensitiveKeys are never printed in clear
var sensitiveKeys = map[string]bool{
	"service.app_key": true,
}

// GetConfigIntrospection returns every effective setting with the source it came from
func GetConfigIntrospection() ([]SettingInfo, error) {
	v, err := GetViper()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load config for introspection")
	}

	loadMu.Lock()
	sources := make(map[string]SourceInfo, len(ConfigSources))
	for k, s := range ConfigSources {
		sources[k] = s
	}
	loadMu.Unlock()

	keys := v.AllKeys()
	sort.Strings(keys)

	settings := make([]SettingInfo, 0, len(keys))
	for _, key := range keys {
		info := SourceInfo{Source: SourceDefault, Path: defaultSourceLabel}
		if si, ok := sources[key]; ok {
			info = si
		}
		if env := envOverride(key); env != "" {
			info = SourceInfo{Source: SourceEnvironment, Path: env}
		}

		value := v.Get(key)
		if key == "service.app_key" && v.GetString(key) == "" && EmbeddedAppKey != "" {
			info = SourceInfo{Source: SourceBuild, Path: "ldflags"}
			value = EmbeddedAppKey
		}
		if sensitiveKeys[key] {
			value = redact(value)
		}

		settings = append(settings, SettingInfo{
			Key:        key,
			Value:      value,
			Source:     info.Source,
			SourcePath: info.Path,
		})
	}

	return settings, nil
}

// envOverride returns the name of the environment variable that overrides key, if any
func envOverride(key string) string {
	candidates := []string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
	if key == "service.app_key" {
		candidates = append(candidates, EnvAppKey, EnvAppKeyLegacy)
	}
	for _, name := range candidates {
		if os.Getenv(name) != "" {
			return name
		}
	}
	return ""
}

func redact(value interface{}) interface{} {
	s, ok := value.(string)
	if !ok || s == "" {
		return value
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
