package main

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"github.com/borgmon/schedule-reminder/pkg/models"
)

// setupSystemTray installs the two tray actions. Both go through the
// dispatch bridge, whatever goroutine the tray backend calls them on.
func (sr *ScheduleReminder) setupSystemTray() {
	desk, ok := sr.app.(desktop.App)
	if !ok {
		sr.log.Warning("System tray is not supported by this driver, showing the window instead")
		sr.showWindow()
		return
	}

	showItem := fyne.NewMenuItem("Show Schedule", func() {
		sr.showWindow()
	})

	exitItem := fyne.NewMenuItem("Exit", func() {
		sr.quit()
	})
	exitItem.IsQuit = true

	menu := fyne.NewMenu(models.DefaultAppDisplayName, showItem, fyne.NewMenuItemSeparator(), exitItem)
	desk.SetSystemTrayMenu(menu)
	desk.SetSystemTrayIcon(theme.HistoryIcon())
}
