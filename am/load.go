package am

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/taglme/console/errors"
)

// Config file names
const (
	ConfigDirName      = ".tagconsole"
	ConfigFileName     = "tagconsole.toml"
	SettingsFileName   = "settings.toml"
	EnvPrefix          = "TAGCONSOLE"
	dotEnvFileName     = ".env"
	configTypeTOML     = "toml"
	defaultSourceLabel = "built-in default"
)

var (
	loadMu        sync.Mutex
	globalConfig  *Config
	viperInstance *viper.Viper

	// explicitConfigPath is set by --config and replaces the user/project search
	explicitConfigPath string

	// ConfigSources records which file each merged key came from during the last load
	ConfigSources = map[string]SourceInfo{}
)

// SetConfigFile makes Load read only the given file (plus defaults and env)
func SetConfigFile(path string) {
	loadMu.Lock()
	defer loadMu.Unlock()
	explicitConfigPath = path
	globalConfig = nil
	viperInstance = nil
}

// Load reads the console configuration using Viper
func Load() (*Config, error) {
	loadMu.Lock()
	defer loadMu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	v, err := initViper()
	if err != nil {
		return nil, err
	}

	cfg, err := LoadWithViper(v)
	if err != nil {
		return nil, err
	}

	globalConfig = cfg
	return globalConfig, nil
}

// GetViper returns the Viper instance for advanced configuration access
func GetViper() (*viper.Viper, error) {
	loadMu.Lock()
	defer loadMu.Unlock()
	return initViper()
}

// LoadWithViper loads configuration using a provided Viper instance
func LoadWithViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	ResolveAppKey(&cfg)
	return &cfg, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType(configTypeTOML)

	// Defaults only; no environment binding for this specific load
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", configPath)
	}

	return LoadWithViper(v)
}

// Reset clears the cached configuration (useful for testing)
func Reset() {
	loadMu.Lock()
	defer loadMu.Unlock()
	globalConfig = nil
	viperInstance = nil
	ConfigSources = map[string]SourceInfo{}
}

// initViper initializes Viper with configuration sources and defaults.
// Caller holds loadMu.
func initViper() (*viper.Viper, error) {
	if viperInstance != nil {
		return viperInstance, nil
	}

	// Best effort: a missing .env is normal; existing env vars are never overridden
	_ = godotenv.Load(dotEnvFileName)

	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	BindSensitiveEnvVars(v)
	SetDefaults(v)

	sources := map[string]SourceInfo{}
	if err := mergeConfigFiles(v, configPaths(), sources); err != nil {
		return nil, err
	}

	ConfigSources = sources
	viperInstance = v
	return v, nil
}

// UserConfigDir returns ~/.tagconsole, or "" when the home directory is unknown
func UserConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ConfigDirName)
}

// configPaths lists config files in precedence order, lowest first
func configPaths() []configPath {
	if explicitConfigPath != "" {
		return []configPath{{path: explicitConfigPath, source: SourceExplicit}}
	}

	var paths []configPath
	if dir := UserConfigDir(); dir != "" {
		paths = append(paths,
			configPath{path: filepath.Join(dir, ConfigFileName), source: SourceUser},
			configPath{path: filepath.Join(dir, SettingsFileName), source: SourceSettings},
		)
	}
	if project := findProjectConfig(); project != "" {
		paths = append(paths, configPath{path: project, source: SourceProject})
	}
	return paths
}

type configPath struct {
	path   string
	source ConfigSource
}

// findProjectConfig searches for tagconsole.toml by walking up the directory tree
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	userDir := UserConfigDir()
	for {
		candidate := filepath.Join(dir, ConfigFileName)
		// The user config is already merged at its own precedence
		if _, err := os.Stat(candidate); err == nil && filepath.Dir(candidate) != userDir {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// mergeConfigFiles merges existing configuration files into v, recording the source of every key.
// A file that exists but cannot be parsed is an error; a missing file is skipped.
func mergeConfigFiles(v *viper.Viper, paths []configPath, sources map[string]SourceInfo) error {
	for _, cp := range paths {
		if _, err := os.Stat(cp.path); err != nil {
			if cp.source == SourceExplicit {
				return errors.Wrapf(err, "config file %s", cp.path)
			}
			continue
		}

		tempViper := viper.New()
		tempViper.SetConfigFile(cp.path)
		tempViper.SetConfigType(configTypeTOML)
		if err := tempViper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config file %s", cp.path)
		}

		if err := v.MergeConfigMap(tempViper.AllSettings()); err != nil {
			return errors.Wrapf(err, "failed to merge config file %s", cp.path)
		}

		for _, key := range tempViper.AllKeys() {
			sources[key] = SourceInfo{Source: cp.source, Path: cp.path}
		}
	}
	return nil
}
