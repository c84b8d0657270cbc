package main

import (
	"os"
	"path/filepath"

	"github.com/emersion/go-autostart"
)

func setupAutostart(enable bool) error {
	execPath, err := os.Executable()
	if err != nil {
		return err
	}

	// Resolve symlinks if any
	execPath, err = filepath.EvalSymlinks(execPath)
	if err != nil {
		return err
	}

	app := &autostart.App{
		Name:        "schedule-reminder",
		DisplayName: "Schedule Reminder",
		Exec:        []string{execPath},
	}

	switch {
	case enable && !app.IsEnabled():
		if err := app.Enable(); err != nil {
			return err
		}
	case !enable && app.IsEnabled():
		if err := app.Disable(); err != nil {
			return err
		}
	}
	return nil
}
