package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// vevent is the subset of a VEVENT that can become schedule entries
type vevent struct {
	UID       string
	Title     string
	Status    string
	Start     time.Time
	AllDay    bool
	RRule     string
	ExDates   []time.Time
	Cancelled bool
}

func parseEvent(comp *ical.Component) (vevent, error) {
	ev := vevent{}
	loc := getTimezoneFromComponent(comp)

	if uidProp := comp.Props.Get(ical.PropUID); uidProp != nil {
		ev.UID = uidProp.Value
	}

	if summaryProp := comp.Props.Get(ical.PropSummary); summaryProp != nil {
		if text, err := summaryProp.Text(); err == nil {
			ev.Title = strings.TrimSpace(text)
		} else {
			ev.Title = strings.TrimSpace(summaryProp.Value)
		}
	}

	startProp := comp.Props.Get(ical.PropDateTimeStart)
	if startProp == nil {
		return ev, fmt.Errorf("event %q has no DTSTART", ev.Title)
	}
	ev.AllDay = isDateOnly(startProp)
	start, err := parseDateTimeProperty(startProp, loc)
	if err != nil {
		return ev, err
	}
	ev.Start = start

	if statusProp := comp.Props.Get(ical.PropStatus); statusProp != nil {
		ev.Status = strings.ToUpper(statusProp.Value)
	}
	ev.Cancelled = ev.Status == "CANCELLED" || isCancelledTitle(ev.Title)

	if rruleProp := comp.Props.Get(ical.PropRecurrenceRule); rruleProp != nil {
		ev.RRule = rruleProp.Value
	}

	for _, exProp := range comp.Props.Values(ical.PropExceptionDates) {
		// EXDATE may carry a comma separated list
		for _, value := range strings.Split(exProp.Value, ",") {
			single := exProp
			single.Value = value
			if t, err := parseDateTimeProperty(&single, loc); err == nil {
				ev.ExDates = append(ev.ExDates, t)
			}
		}
	}

	return ev, nil
}

func isDateOnly(prop *ical.Prop) bool {
	if strings.EqualFold(prop.Params.Get(ical.ParamValue), string(ical.ValueDate)) {
		return true
	}
	return len(strings.TrimSpace(prop.Value)) == len("20060102")
}

func parseDateTimeProperty(prop *ical.Prop, loc *time.Location) (time.Time, error) {
	if t, err := prop.DateTime(loc); err == nil {
		return t, nil
	}

	value := strings.TrimSpace(prop.Value)

	formats := []string{
		"20060102T150405",     // Basic format: YYYYMMDDTHHMMSS
		"20060102T150405Z",    // UTC format
		time.RFC3339,          // Standard RFC3339
		"2006-01-02T15:04:05", // ISO 8601 without timezone
		"20060102",            // DATE value
	}

	for _, format := range formats {
		if t, err := time.ParseInLocation(format, value, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse datetime value: %s", value)
}

func isCancelledTitle(title string) bool {
	lower := strings.ToLower(strings.TrimSpace(title))
	lower = strings.TrimLeft(lower, "[(*- ")
	return strings.HasPrefix(lower, "canceled") || strings.HasPrefix(lower, "cancelled")
}
