package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the layout of the date keys in the schedule document
	DateLayout = "2006-01-02"
	// ClockLayout is the layout of an entry's time of day
	ClockLayout = "15:04"
)

var (
	ErrInvalidTime = errors.New("time must be HH:MM between 00:00 and 23:59")
	ErrEmptyTitle  = errors.New("title is required")
)

// ScheduleEntry is a single reminder on a calendar date.
// Two entries are the same reminder when both Time and Title are equal.
type ScheduleEntry struct {
	Time  string `json:"time"`  // HH:MM
	Title string `json:"title"` // non-empty
}

// ParseEntry validates user input and builds an entry from it
func ParseEntry(clock, title string) (ScheduleEntry, error) {
	entry := ScheduleEntry{Time: strings.TrimSpace(clock), Title: strings.TrimSpace(title)}
	if err := entry.Validate(); err != nil {
		return ScheduleEntry{}, err
	}
	return entry, nil
}

// Validate checks the time format and title
func (e ScheduleEntry) Validate() error {
	if !ValidClock(e.Time) {
		return fmt.Errorf("%w: %q", ErrInvalidTime, e.Time)
	}
	if strings.TrimSpace(e.Title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

// String renders the entry the way reminders display it
func (e ScheduleEntry) String() string {
	return e.Time + " - " + e.Title
}

// ValidClock reports whether s is a zero-padded 24h HH:MM string.
// Lexicographic order of valid clocks is chronological order.
func ValidClock(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	return hour < 24 && minute < 60
}

// DateKey returns the document key for the calendar date of t in t's location
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ClockOf returns t's time of day truncated to the minute
func ClockOf(t time.Time) string {
	return t.Format(ClockLayout)
}

// ParseDateKey parses a document key as local midnight
func ParseDateKey(key string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, key, time.Local)
}
