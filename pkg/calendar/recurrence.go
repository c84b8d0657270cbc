package calendar

import (
	"fmt"
	"time"

	"github.com/borgmon/schedule-reminder/pkg/logger"
	"github.com/teambition/rrule-go"
)

const maxOccurrencesPerEvent = 2000

// occurrences returns the start times of ev within [from, to)
func occurrences(ev vevent, from, to time.Time, log logger.Logger) ([]time.Time, error) {
	if ev.RRule == "" {
		if !ev.Start.Before(from) && ev.Start.Before(to) {
			return []time.Time{ev.Start}, nil
		}
		return nil, nil
	}

	r, err := rrule.StrToRRule(ev.RRule)
	if err != nil {
		return nil, fmt.Errorf("invalid RRULE %q for event %q: %w", ev.RRule, ev.Title, err)
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Between is inclusive at both ends with inc=true; the end is excluded below
	times := set.Between(from.In(ev.Start.Location()), to.In(ev.Start.Location()), true)
	out := make([]time.Time, 0, len(times))
	for _, t := range times {
		if !t.Before(to) {
			continue
		}
		out = append(out, t)
		if len(out) == maxOccurrencesPerEvent {
			log.Warning("Truncated recurring event %q at %d occurrences", ev.Title, maxOccurrencesPerEvent)
			break
		}
	}
	return out, nil
}
