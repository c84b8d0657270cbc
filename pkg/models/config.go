package models

import "time"

const (
	DefaultPollInterval   = 60 // seconds
	DefaultNotifyTimeout  = 10 // seconds
	DefaultStoreFileName  = "schedules.json"
	DefaultAppDisplayName = "Schedule Reminder"
)

// Config holds application configuration
type Config struct {
	AutoStart         bool   `json:"auto_start"`
	StorePath         string `json:"store_path"`             // schedule document location
	PollIntervalSecs  int    `json:"poll_interval_seconds"`  // scheduler tick
	NotifyTimeoutSecs int    `json:"notify_timeout_seconds"` // passed to the notifier
	ChimeEnabled      bool   `json:"chime_enabled"`
	ChimeFile         string `json:"chime_file"` // optional WAV replacing the built-in chime
	HotkeyEnabled     bool   `json:"hotkey_enabled"`
	WatchStore        bool   `json:"watch_store"` // refresh the window on external file changes
}

// Normalize replaces out-of-range values with defaults
func (c *Config) Normalize() {
	if c.PollIntervalSecs < 1 {
		c.PollIntervalSecs = DefaultPollInterval
	}
	if c.NotifyTimeoutSecs < 1 {
		c.NotifyTimeoutSecs = DefaultNotifyTimeout
	}
}

// PollInterval returns the scheduler interval as a duration
func (c *Config) PollInterval() time.Duration {
	if c.PollIntervalSecs < 1 {
		return DefaultPollInterval * time.Second
	}
	return time.Duration(c.PollIntervalSecs) * time.Second
}
