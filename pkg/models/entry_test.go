package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntry(t *testing.T) {
	entry, err := ParseEntry(" 09:00 ", "  Meeting ")
	require.NoError(t, err)
	assert.Equal(t, ScheduleEntry{Time: "09:00", Title: "Meeting"}, entry)
	assert.Equal(t, "09:00 - Meeting", entry.String())
}

func TestParseEntryRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name  string
		clock string
		title string
		want  error
	}{
		{"empty title", "09:00", "", ErrEmptyTitle},
		{"blank title", "09:00", "   ", ErrEmptyTitle},
		{"hour out of range", "24:00", "Late", ErrInvalidTime},
		{"minute out of range", "12:60", "Odd", ErrInvalidTime},
		{"not padded", "9:00", "Short", ErrInvalidTime},
		{"seconds", "09:00:00", "Long", ErrInvalidTime},
		{"letters", "ab:cd", "Nope", ErrInvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEntry(tt.clock, tt.title)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidClockBounds(t *testing.T) {
	assert.True(t, ValidClock("00:00"))
	assert.True(t, ValidClock("23:59"))
	assert.False(t, ValidClock("23-59"))
	assert.False(t, ValidClock(""))
}

func TestDateKeyAndClock(t *testing.T) {
	ts := time.Date(2024, 1, 1, 9, 5, 59, 0, time.Local)
	assert.Equal(t, "2024-01-01", DateKey(ts))
	assert.Equal(t, "09:05", ClockOf(ts))

	parsed, err := ParseDateKey("2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", DateKey(parsed))
}
