package calendar

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/borgmon/schedule-reminder/pkg/models"
	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

const productID = "-//borgmon//Schedule Reminder//EN"

// ErrNothingToExport is returned for an empty schedule
var ErrNothingToExport = errors.New("schedule has no entries to export")

// Namespace for deterministic event UIDs, so re-exporting the same entry
// yields the same UID
var uidNamespace = uuid.MustParse("5b0e5d8c-7c55-4f0b-9d83-2a8f8f0c6a11")

// EntryUID returns the UID of the n-th identical entry on date
func EntryUID(dateKey string, entry models.ScheduleEntry, n int) string {
	name := dateKey + "|" + entry.Time + "|" + entry.Title
	if n > 0 {
		name += "|" + strconv.Itoa(n)
	}
	return uuid.NewSHA1(uidNamespace, []byte(name)).String()
}

// Export writes every entry as a VEVENT with a floating local start time
func Export(w io.Writer, schedule map[string][]models.ScheduleEntry, stamp time.Time) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)

	keys := make([]string, 0, len(schedule))
	for key := range schedule {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		entries := schedule[key]
		date, err := models.ParseDateKey(key)
		if err != nil {
			return fmt.Errorf("invalid date key %q: %w", key, err)
		}

		seen := make(map[models.ScheduleEntry]int)
		for _, entry := range entries {
			clock, err := time.Parse(models.ClockLayout, entry.Time)
			if err != nil {
				return fmt.Errorf("invalid time %q on %s: %w", entry.Time, key, err)
			}
			start := time.Date(date.Year(), date.Month(), date.Day(), clock.Hour(), clock.Minute(), 0, 0, time.Local)

			event := ical.NewEvent()
			event.Props.SetText(ical.PropUID, EntryUID(key, entry, seen[entry]))
			event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
			event.Props.SetText(ical.PropSummary, entry.Title)

			dtstart := ical.NewProp(ical.PropDateTimeStart)
			dtstart.Value = start.Format("20060102T150405")
			event.Props.Set(dtstart)

			cal.Children = append(cal.Children, event.Component)
			seen[entry]++
		}
	}

	if len(cal.Children) == 0 {
		return ErrNothingToExport
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}
