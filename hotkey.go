package main

import (
	"context"

	"golang.design/x/hotkey"
)

// listenShowHotkey reveals the window on Ctrl+Shift+S until ctx is done.
// Keydown events arrive on this goroutine, never on the UI goroutine.
func (sr *ScheduleReminder) listenShowHotkey(ctx context.Context) {
	hk := hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeyS)
	if err := hk.Register(); err != nil {
		sr.log.Warning("Failed to register show-window hotkey: %v", err)
		return
	}
	defer hk.Unregister()

	sr.log.Info("Press Ctrl+Shift+S to show the schedule")
	for {
		select {
		case <-ctx.Done():
			return
		case <-hk.Keydown():
			sr.showWindow()
		}
	}
}
