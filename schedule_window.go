package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/borgmon/schedule-reminder/pkg/calendar"
	"github.com/borgmon/schedule-reminder/pkg/dispatch"
	"github.com/borgmon/schedule-reminder/pkg/logger"
	"github.com/borgmon/schedule-reminder/pkg/models"
	"github.com/borgmon/schedule-reminder/pkg/platform"
	"github.com/borgmon/schedule-reminder/pkg/store"
	"github.com/borgmon/schedule-reminder/pkg/ui/components"
)

// Imported calendars are expanded this far ahead of today
const importHorizon = 90 * 24 * time.Hour

// ScheduleWindow is the calendar and entry editor. Every method except the
// constructor must run on the UI goroutine.
type ScheduleWindow struct {
	window fyne.Window
	store  *store.ScheduleStore
	bridge *dispatch.Bridge
	log    logger.Logger

	selected time.Time

	header       *widget.Label
	hourSelect   *widget.Select
	minuteSelect *widget.Select
	titleEntry   *widget.Entry
	entries      *components.EntryList
}

func NewScheduleWindow(app fyne.App, st *store.ScheduleStore, bridge *dispatch.Bridge, log logger.Logger) *ScheduleWindow {
	sw := &ScheduleWindow{
		window:   app.NewWindow(models.DefaultAppDisplayName),
		store:    st,
		bridge:   bridge,
		log:      logger.Default(log),
		selected: today(),
	}

	sw.window.SetContent(sw.buildUI())
	sw.window.Resize(fyne.NewSize(400, 650))

	// Closing only hides; the tray Exit item ends the app
	sw.window.SetCloseIntercept(sw.Hide)

	return sw
}

func (sw *ScheduleWindow) buildUI() fyne.CanvasObject {
	cal := widget.NewCalendar(sw.selected, func(t time.Time) {
		sw.selected = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
		sw.Refresh()
	})

	sw.header = widget.NewLabel("")
	sw.header.TextStyle.Bold = true

	sw.entries = components.NewEntryList("No reminders on this day", sw.handleDelete)

	hours := make([]string, 24)
	for h := range hours {
		hours[h] = fmt.Sprintf("%02d", h)
	}
	minutes := make([]string, 0, 12)
	for m := 0; m < 60; m += 5 {
		minutes = append(minutes, fmt.Sprintf("%02d", m))
	}

	sw.hourSelect = widget.NewSelect(hours, nil)
	sw.hourSelect.SetSelected("09")
	sw.minuteSelect = widget.NewSelect(minutes, nil)
	sw.minuteSelect.SetSelected("00")

	sw.titleEntry = widget.NewEntry()
	sw.titleEntry.SetPlaceHolder("Reminder title...")
	sw.titleEntry.OnSubmitted = func(string) { sw.handleAdd() }

	addButton := widget.NewButtonWithIcon("Add Reminder", theme.ContentAddIcon(), sw.handleAdd)
	addButton.Importance = widget.HighImportance

	importButton := widget.NewButtonWithIcon("Import", theme.DownloadIcon(), sw.showImportDialog)
	importURLButton := widget.NewButtonWithIcon("Import URL", theme.ComputerIcon(), sw.showImportURLDialog)
	exportButton := widget.NewButtonWithIcon("Export", theme.UploadIcon(), sw.showExportDialog)

	form := container.NewVBox(
		widget.NewForm(
			widget.NewFormItem("Time", container.NewHBox(sw.hourSelect, widget.NewLabel(":"), sw.minuteSelect)),
			widget.NewFormItem("Title", sw.titleEntry),
		),
		addButton,
		widget.NewSeparator(),
		container.NewGridWithColumns(3, importButton, importURLButton, exportButton),
	)

	top := container.NewVBox(cal, widget.NewSeparator(), sw.header)
	return container.NewPadded(container.NewBorder(top, form, nil, nil, sw.entries.Object()))
}

// Reveal shows the window
func (sw *ScheduleWindow) Reveal() {
	sw.window.Show()
}

// Raise asks the window manager to bring the window to the front
func (sw *ScheduleWindow) Raise() {
	sw.window.RequestFocus()
	platform.ActivateApp()
}

// SetFloating keeps the window above others while set
func (sw *ScheduleWindow) SetFloating(floating bool) {
	platform.SetFloating(floating)
}

// Hide hides the window without quitting
func (sw *ScheduleWindow) Hide() {
	sw.window.Hide()
}

// Refresh reloads the selected date from the store
func (sw *ScheduleWindow) Refresh() {
	key := models.DateKey(sw.selected)
	sw.header.SetText("Reminders for " + key)

	entries, err := sw.store.LoadForDate(sw.selected)
	if err != nil {
		sw.log.Warning("Failed to load reminders for %s: %v", key, err)
		entries = nil
	}
	sw.entries.SetEntries(entries)
}

func (sw *ScheduleWindow) handleAdd() {
	entry, err := models.ParseEntry(sw.hourSelect.Selected+":"+sw.minuteSelect.Selected, sw.titleEntry.Text)
	if err != nil {
		dialog.ShowError(err, sw.window)
		return
	}

	if err := sw.store.AddEntry(sw.selected, entry); err != nil {
		sw.log.Error("%v", err)
		dialog.ShowError(err, sw.window)
		return
	}

	sw.titleEntry.SetText("")
	sw.Refresh()
}

func (sw *ScheduleWindow) handleDelete(entry models.ScheduleEntry) {
	if _, err := sw.store.DeleteEntry(sw.selected, entry); err != nil {
		sw.log.Error("%v", err)
		dialog.ShowError(err, sw.window)
	}
	sw.Refresh()
}

func (sw *ScheduleWindow) showImportDialog() {
	open := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, sw.window)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()
		sw.importCalendar(reader, reader.URI().Name())
	}, sw.window)
	open.SetFilter(storage.NewExtensionFileFilter([]string{".ics", ".ical"}))
	open.Show()
}

func (sw *ScheduleWindow) showImportURLDialog() {
	urlEntry := widget.NewEntry()
	urlEntry.SetPlaceHolder("https://calendar.example.com/ical/...")

	items := []*widget.FormItem{
		widget.NewFormItem("URL", urlEntry),
	}

	dialog.ShowForm("Import Calendar", "Import", "Cancel", items, func(confirmed bool) {
		if !confirmed || urlEntry.Text == "" {
			return
		}
		url := urlEntry.Text

		// The download runs off the UI goroutine and comes back through the bridge
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()

			data, err := calendar.Fetch(ctx, url)
			sw.bridge.Post(func() {
				if err != nil {
					sw.log.Error("Error fetching calendar %s: %v", url, err)
					dialog.ShowError(err, sw.window)
					return
				}
				sw.importCalendar(bytes.NewReader(data), url)
			})
		}()
	}, sw.window)
}

func (sw *ScheduleWindow) importCalendar(r io.Reader, source string) {
	from := today()
	entries, stats, err := calendar.Import(r, from, from.Add(importHorizon), sw.log)
	if err != nil {
		dialog.ShowError(err, sw.window)
		return
	}

	added, err := sw.store.Merge(entries)
	if err != nil {
		dialog.ShowError(err, sw.window)
		return
	}

	sw.log.Info("Imported %d of %d reminders from %s (%d events, %d cancelled, %d all-day skipped)",
		added, stats.Entries, source, stats.Events, stats.Cancelled, stats.AllDay)
	dialog.ShowInformation("Import Complete",
		fmt.Sprintf("Added %d reminders from %d events.", added, stats.Events), sw.window)
	sw.Refresh()
}

func (sw *ScheduleWindow) showExportDialog() {
	save := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, sw.window)
			return
		}
		if writer == nil {
			return
		}
		defer writer.Close()

		doc, err := sw.store.Load()
		if err == nil {
			err = calendar.Export(writer, doc, time.Now())
		}
		if err != nil {
			dialog.ShowError(err, sw.window)
			return
		}
		sw.log.Info("Exported schedule to %s", writer.URI().Path())
	}, sw.window)
	save.SetFileName("schedule.ics")
	save.Show()
}

func today() time.Time {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
}
