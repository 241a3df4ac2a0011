package am

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/taglme/console/errors"
	"github.com/taglme/console/logger"
)

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying a settings file
func createBackup(configPath string) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil
	}

	back3 := configPath + ".back3"
	back2 := configPath + ".back2"
	back1 := configPath + ".back1"

	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// Not fatal for the save itself
		logger.Warnw("Failed to delete old settings backup", logger.FieldFile, back3, logger.FieldError, err)
	}

	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return errors.Wrap(err, "failed to read settings for backup")
	}

	if err := os.WriteFile(back1, content, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}

// GetSettingsPath returns the path to the saved settings file in ~/.tagconsole/settings.toml
func GetSettingsPath() string {
	dir := UserConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, SettingsFileName)
}

// loadOrInitializeSettings loads the settings file, or returns an empty map if it doesn't exist
func loadOrInitializeSettings() (map[string]interface{}, string, error) {
	settingsPath := GetSettingsPath()
	if settingsPath == "" {
		return nil, "", errors.New("could not determine home directory")
	}

	if err := os.MkdirAll(filepath.Dir(settingsPath), DefaultDirPermissions); err != nil {
		return nil, "", errors.Wrap(err, "failed to create settings directory")
	}

	settings := make(map[string]interface{})
	data, err := os.ReadFile(settingsPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &settings); err != nil {
			return nil, "", errors.Wrapf(err, "failed to parse settings %s", settingsPath)
		}
	case !os.IsNotExist(err):
		return nil, "", errors.Wrapf(err, "failed to read settings %s", settingsPath)
	}

	return settings, settingsPath, nil
}

// saveSettings writes the settings file with backup
func saveSettings(settings map[string]interface{}, settingsPath string) error {
	if err := createBackup(settingsPath); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(settings)
	if err != nil {
		return errors.Wrap(err, "failed to marshal settings")
	}

	// Mark this as our own write to prevent reload loops
	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	if err := os.WriteFile(settingsPath, data, DefaultFilePermissions); err != nil {
		return errors.Wrap(err, "failed to write settings")
	}

	return nil
}

// updateSetting sets section.key in the settings file
func updateSetting(section, key string, value interface{}) error {
	settings, settingsPath, err := loadOrInitializeSettings()
	if err != nil {
		return errors.Wrap(err, "failed to load settings")
	}

	sectionMap, ok := settings[section].(map[string]interface{})
	if !ok {
		sectionMap = make(map[string]interface{})
	}
	sectionMap[key] = value
	settings[section] = sectionMap

	return saveSettings(settings, settingsPath)
}

// UpdateBaseURL persists the nfcd base URL
func UpdateBaseURL(baseURL string) error {
	if err := ValidateBaseURL(baseURL); err != nil {
		return errors.WithHint(errors.Wrapf(err, "invalid base URL %q", baseURL), "use a URL like http://127.0.0.1:3011")
	}
	return updateSetting("service", "base_url", baseURL)
}

// UpdateLocale persists the event and message locale
func UpdateLocale(locale string) error {
	if err := ValidateLocale(locale); err != nil {
		return errors.Wrapf(err, "invalid locale %q", locale)
	}
	return updateSetting("service", "locale", locale)
}

// UpdateAdapterID persists the adapter used by default for submissions.
// An empty id clears the selection.
func UpdateAdapterID(adapterID string) error {
	return updateSetting("job", "adapter_id", strings.TrimSpace(adapterID))
}

// SettingKeys lists the settings that can be persisted with am set
var SettingKeys = map[string]func(string) error{
	"base_url":   UpdateBaseURL,
	"locale":     UpdateLocale,
	"adapter_id": UpdateAdapterID,
}
