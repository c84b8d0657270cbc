// Package calendar converts between iCalendar data and schedule entries.
package calendar

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/borgmon/schedule-reminder/pkg/logger"
	"github.com/borgmon/schedule-reminder/pkg/models"
	"github.com/emersion/go-ical"
)

// ImportStats counts what an import kept and skipped
type ImportStats struct {
	Events    int
	Entries   int
	Cancelled int
	AllDay    int
	Invalid   int
}

// Import reads iCalendar data and returns the entries of timed events starting
// in [from, to), keyed by local date. Recurring events are expanded and
// skipped events are reported to log.
func Import(r io.Reader, from, to time.Time, log logger.Logger) (map[string][]models.ScheduleEntry, ImportStats, error) {
	var stats ImportStats
	log = logger.Default(log)
	if !to.After(from) {
		return nil, stats, errors.New("import range end must be after its start")
	}

	out := make(map[string][]models.ScheduleEntry)
	decoder := ical.NewDecoder(r)

	for {
		cal, err := decoder.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("failed to decode calendar: %w", err)
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			stats.Events++
			normalizeComponentTimezones(comp)

			ev, err := parseEvent(comp)
			if err != nil {
				stats.Invalid++
				log.Warning("Skipped event: %v", err)
				continue
			}
			switch {
			case ev.Cancelled:
				stats.Cancelled++
				continue
			case ev.AllDay:
				stats.AllDay++
				continue
			case ev.Title == "":
				stats.Invalid++
				continue
			}

			starts, err := occurrences(ev, from, to, log)
			if err != nil {
				stats.Invalid++
				log.Warning("Skipped event: %v", err)
				continue
			}
			for _, start := range starts {
				local := start.In(time.Local)
				key := models.DateKey(local)
				out[key] = append(out[key], models.ScheduleEntry{
					Time:  models.ClockOf(local),
					Title: ev.Title,
				})
				stats.Entries++
			}
		}
	}

	return out, stats, nil
}
