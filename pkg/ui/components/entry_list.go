package components

import (
	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/borgmon/schedule-reminder/pkg/models"
)

// EntryList shows the entries of one date with a delete button per row.
// All methods must be called on the UI goroutine.
type EntryList struct {
	list      *widget.List
	empty     *widget.Label
	entries   []models.ScheduleEntry
	onDelete  func(models.ScheduleEntry)
	container *fyne.Container
}

// NewEntryList creates the list. onDelete receives the entry of the tapped row.
func NewEntryList(emptyText string, onDelete func(models.ScheduleEntry)) *EntryList {
	el := &EntryList{onDelete: onDelete}

	el.list = widget.NewList(
		func() int {
			return len(el.entries)
		},
		func() fyne.CanvasObject {
			label := widget.NewLabel("00:00 - template")
			label.Truncation = fyne.TextTruncateEllipsis
			button := widget.NewButtonWithIcon("", theme.DeleteIcon(), nil)
			button.Importance = widget.LowImportance
			return container.NewBorder(nil, nil, nil, button, label)
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			row := o.(*fyne.Container)
			label := row.Objects[0].(*widget.Label)
			button := row.Objects[1].(*widget.Button)

			if i >= len(el.entries) {
				label.SetText("")
				button.OnTapped = nil
				return
			}

			entry := el.entries[i]
			label.SetText(entry.String())
			button.OnTapped = func() {
				if el.onDelete != nil {
					el.onDelete(entry)
				}
			}
		})

	el.empty = widget.NewLabel(emptyText)
	el.empty.Alignment = fyne.TextAlignCenter
	el.empty.Importance = widget.LowImportance

	el.container = container.NewStack(el.list, container.NewCenter(el.empty))
	el.refreshEmpty()

	return el
}

// Object returns the canvas object to place in a layout
func (el *EntryList) Object() fyne.CanvasObject {
	return el.container
}

// SetEntries replaces the displayed entries
func (el *EntryList) SetEntries(entries []models.ScheduleEntry) {
	el.entries = append(el.entries[:0], entries...)
	el.list.UnselectAll()
	el.list.Refresh()
	el.refreshEmpty()
}

func (el *EntryList) refreshEmpty() {
	if len(el.entries) == 0 {
		el.empty.Show()
	} else {
		el.empty.Hide()
	}
}
