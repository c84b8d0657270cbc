package store

import (
	"path/filepath"

	"fyne.io/fyne/v2"
	"github.com/borgmon/schedule-reminder/pkg/models"
)

// ConfigStore handles configuration persistence using Fyne preferences
type ConfigStore struct {
	app fyne.App
}

// NewConfigStore creates a new ConfigStore instance
func NewConfigStore(app fyne.App) *ConfigStore {
	return &ConfigStore{app: app}
}

// Load loads configuration from preferences
func (cs *ConfigStore) Load() *models.Config {
	prefs := cs.app.Preferences()

	config := &models.Config{
		AutoStart:         prefs.BoolWithFallback("auto_start", false),
		StorePath:         prefs.StringWithFallback("store_path", cs.defaultStorePath()),
		PollIntervalSecs:  prefs.IntWithFallback("poll_interval_seconds", models.DefaultPollInterval),
		NotifyTimeoutSecs: prefs.IntWithFallback("notify_timeout_seconds", models.DefaultNotifyTimeout),
		ChimeEnabled:      prefs.BoolWithFallback("chime_enabled", true),
		ChimeFile:         prefs.String("chime_file"),
		HotkeyEnabled:     prefs.BoolWithFallback("hotkey_enabled", true),
		WatchStore:        prefs.BoolWithFallback("watch_store", true),
	}

	if config.StorePath == "" {
		config.StorePath = cs.defaultStorePath()
	}
	config.Normalize()

	return config
}

// Save saves configuration to preferences
func (cs *ConfigStore) Save(config *models.Config) {
	prefs := cs.app.Preferences()

	prefs.SetBool("auto_start", config.AutoStart)
	prefs.SetString("store_path", config.StorePath)
	prefs.SetInt("poll_interval_seconds", config.PollIntervalSecs)
	prefs.SetInt("notify_timeout_seconds", config.NotifyTimeoutSecs)
	prefs.SetBool("chime_enabled", config.ChimeEnabled)
	prefs.SetString("chime_file", config.ChimeFile)
	prefs.SetBool("hotkey_enabled", config.HotkeyEnabled)
	prefs.SetBool("watch_store", config.WatchStore)
}

// defaultStorePath places the schedule next to the app's own storage
func (cs *ConfigStore) defaultStorePath() string {
	root := cs.app.Storage().RootURI()
	if root == nil {
		return models.DefaultStoreFileName
	}
	return filepath.Join(root.Path(), models.DefaultStoreFileName)
}
