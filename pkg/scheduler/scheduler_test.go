package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/borgmon/schedule-reminder/pkg/logger"
	"github.com/borgmon/schedule-reminder/pkg/models"
	"github.com/borgmon/schedule-reminder/pkg/notify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource serves the same entries for every date unless byDate is set
type fakeSource struct {
	mu      sync.Mutex
	entries []models.ScheduleEntry
	byDate  map[string][]models.ScheduleEntry
	err     error
	loads   int
}

func (f *fakeSource) LoadForDate(date time.Time) ([]models.ScheduleEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	if f.err != nil {
		return nil, f.err
	}
	if f.byDate != nil {
		return f.byDate[models.DateKey(date)], nil
	}
	return f.entries, nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	requests []notify.Request
	fail     map[string]error
	panicOn  string
}

func (r *recordingNotifier) Notify(req notify.Request) error {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()

	if r.panicOn != "" && req.Body == r.panicOn {
		panic("notification backend crashed")
	}
	if err, ok := r.fail[req.Body]; ok {
		return err
	}
	return nil
}

func (r *recordingNotifier) bodies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.requests))
	for _, req := range r.requests {
		out = append(out, req.Body)
	}
	return out
}

func at(day, hour, minute int) time.Time {
	return time.Date(2024, 1, day, hour, minute, 0, 0, time.Local)
}

func TestTickFiresOncePerDay(t *testing.T) {
	source := &fakeSource{entries: []models.ScheduleEntry{{Time: "09:00", Title: "Meeting"}}}
	notifier := &recordingNotifier{}
	s := New(source, notifier, WithLogger(logger.NewNopLogger()))

	assert.Equal(t, 1, s.Tick(at(1, 9, 0)))
	assert.Equal(t, 0, s.Tick(at(1, 9, 0)))

	require.Equal(t, []string{"09:00 - Meeting"}, notifier.bodies())
	assert.Equal(t, notify.DefaultTitleLine, notifier.requests[0].TitleLine)
	assert.Equal(t, models.DefaultAppDisplayName, notifier.requests[0].AppName)
	assert.Equal(t, models.DefaultNotifyTimeout, notifier.requests[0].TimeoutSeconds)
}

func TestTickIgnoresSecondsWithinMinute(t *testing.T) {
	source := &fakeSource{entries: []models.ScheduleEntry{{Time: "09:00", Title: "Meeting"}}}
	notifier := &recordingNotifier{}
	s := New(source, notifier, WithLogger(logger.NewNopLogger()))

	s.Tick(time.Date(2024, 1, 1, 9, 0, 59, 0, time.Local))
	assert.Len(t, notifier.bodies(), 1)
}

func TestTickRolloverResetsDedup(t *testing.T) {
	source := &fakeSource{entries: []models.ScheduleEntry{{Time: "09:00", Title: "Meeting"}}}
	notifier := &recordingNotifier{}
	s := New(source, notifier, WithLogger(logger.NewNopLogger()))

	s.Tick(at(1, 9, 0))
	// Not polled at midnight: the reset must still happen on the next tick
	s.Tick(at(2, 8, 59))
	assert.Empty(t, s.Notified())
	s.Tick(at(2, 9, 0))
	s.Tick(at(2, 9, 0))

	assert.Equal(t, []string{"09:00 - Meeting", "09:00 - Meeting"}, notifier.bodies())
}

func TestTickRolloverDetectedAfterSuspend(t *testing.T) {
	source := &fakeSource{entries: []models.ScheduleEntry{{Time: "09:00", Title: "Meeting"}}}
	notifier := &recordingNotifier{}
	s := New(source, notifier, WithLogger(logger.NewNopLogger()))

	s.Tick(at(1, 9, 0))
	// Several days later, first tick lands exactly on the reminder minute
	s.Tick(at(5, 9, 0))

	assert.Len(t, notifier.bodies(), 2)
}

func TestTickSameTimeDifferentTitlesFireIndependently(t *testing.T) {
	source := &fakeSource{entries: []models.ScheduleEntry{
		{Time: "09:00", Title: "Meeting"},
		{Time: "09:00", Title: "Call"},
		{Time: "10:00", Title: "Later"},
	}}
	notifier := &recordingNotifier{}
	s := New(source, notifier, WithLogger(logger.NewNopLogger()))

	assert.Equal(t, 2, s.Tick(at(1, 9, 0)))
	assert.ElementsMatch(t, []string{"09:00 - Meeting", "09:00 - Call"}, notifier.bodies())
	assert.ElementsMatch(t, []models.ScheduleEntry{
		{Time: "09:00", Title: "Meeting"},
		{Time: "09:00", Title: "Call"},
	}, s.Notified())
}

func TestTickDoesNotCatchUpPastEntries(t *testing.T) {
	source := &fakeSource{entries: []models.ScheduleEntry{{Time: "09:00", Title: "Meeting"}}}
	notifier := &recordingNotifier{}
	s := New(source, notifier, WithLogger(logger.NewNopLogger()))

	s.Tick(at(1, 9, 1))
	s.Tick(at(1, 9, 2))
	assert.Empty(t, notifier.bodies())
}

func TestTickReadsTodaysEntries(t *testing.T) {
	source := &fakeSource{byDate: map[string][]models.ScheduleEntry{
		"2024-01-02": {{Time: "09:00", Title: "Tomorrow"}},
	}}
	notifier := &recordingNotifier{}
	s := New(source, notifier, WithLogger(logger.NewNopLogger()))

	s.Tick(at(1, 9, 0))
	assert.Empty(t, notifier.bodies())
	s.Tick(at(2, 9, 0))
	assert.Equal(t, []string{"09:00 - Tomorrow"}, notifier.bodies())
}

func TestTickNotifierFailureDoesNotStopOtherEntries(t *testing.T) {
	source := &fakeSource{entries: []models.ScheduleEntry{
		{Time: "09:00", Title: "Broken"},
		{Time: "09:00", Title: "Panics"},
		{Time: "09:00", Title: "Works"},
	}}
	notifier := &recordingNotifier{
		fail:    map[string]error{"09:00 - Broken": errors.New("dbus unavailable")},
		panicOn: "09:00 - Panics",
	}
	log := logger.NewMockLogger()
	s := New(source, notifier, WithLogger(log))

	assert.Equal(t, 3, s.Tick(at(1, 9, 0)))
	assert.Equal(t, []string{"09:00 - Broken", "09:00 - Panics", "09:00 - Works"}, notifier.bodies())
	assert.Len(t, log.Errors(), 2)

	// Failed deliveries are not retried
	assert.Equal(t, 0, s.Tick(at(1, 9, 0)))
}

func TestTickStoreFailureMeansNoEntries(t *testing.T) {
	source := &fakeSource{err: errors.New("disk gone")}
	notifier := &recordingNotifier{}
	log := logger.NewMockLogger()
	s := New(source, notifier, WithLogger(log))

	assert.Equal(t, 0, s.Tick(at(1, 9, 0)))
	assert.Empty(t, notifier.bodies())
	assert.Len(t, log.Warnings(), 1)
}

func TestWithRequestFormatsNotification(t *testing.T) {
	source := &fakeSource{entries: []models.ScheduleEntry{{Time: "09:00", Title: "Meeting"}}}
	notifier := &recordingNotifier{}
	s := New(source, notifier,
		WithLogger(logger.NewNopLogger()),
		WithRequest(func(e models.ScheduleEntry) notify.Request {
			return notify.DefaultRequest(e, "Custom", 30)
		}))

	s.Tick(at(1, 9, 0))
	require.Len(t, notifier.requests, 1)
	assert.Equal(t, "Custom", notifier.requests[0].AppName)
	assert.Equal(t, 30, notifier.requests[0].TimeoutSeconds)
}

func TestStartStopLifecycle(t *testing.T) {
	source := &fakeSource{entries: []models.ScheduleEntry{{Time: "09:00", Title: "Meeting"}}}
	notifier := &recordingNotifier{}
	now := at(1, 9, 0)
	s := New(source, notifier,
		WithLogger(logger.NewNopLogger()),
		WithInterval(5*time.Millisecond),
		WithClock(func() time.Time { return now }))

	assert.False(t, s.Running())

	s.Start(context.Background())
	s.Start(context.Background())
	assert.True(t, s.Running())

	assert.Eventually(t, func() bool {
		source.mu.Lock()
		defer source.mu.Unlock()
		return source.loads >= 5
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	s.Wait()
	assert.False(t, s.Running())

	// Many ticks in the same minute, one notification
	assert.Equal(t, []string{"09:00 - Meeting"}, notifier.bodies())
}

func TestContextCancelStopsLoop(t *testing.T) {
	source := &fakeSource{}
	s := New(source, &recordingNotifier{},
		WithLogger(logger.NewNopLogger()),
		WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	finished := make(chan struct{})
	go func() {
		s.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after context cancel")
	}
	assert.False(t, s.Running())

	// Restart after cancellation works
	s.Start(context.Background())
	assert.True(t, s.Running())
	s.Stop()
	s.Wait()
}

func TestStartInitializesLastCheckedDate(t *testing.T) {
	source := &fakeSource{entries: []models.ScheduleEntry{{Time: "09:00", Title: "Meeting"}}}
	notifier := &recordingNotifier{}
	now := at(1, 8, 0)
	var mu sync.Mutex
	s := New(source, notifier,
		WithLogger(logger.NewNopLogger()),
		WithInterval(time.Hour),
		WithClock(func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			return now
		}))

	s.Start(context.Background())
	s.Stop()
	s.Wait()

	s.mu.Lock()
	assert.Equal(t, "2024-01-01", s.lastCheckedDate)
	s.mu.Unlock()
}
