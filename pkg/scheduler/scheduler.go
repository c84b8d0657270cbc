// Package scheduler polls the schedule and fires each reminder at most once
// per calendar day.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/borgmon/schedule-reminder/pkg/logger"
	"github.com/borgmon/schedule-reminder/pkg/models"
	"github.com/borgmon/schedule-reminder/pkg/notify"
)

const DefaultInterval = 60 * time.Second

// EntrySource is the read side of the schedule store
type EntrySource interface {
	LoadForDate(date time.Time) ([]models.ScheduleEntry, error)
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithInterval sets the polling interval
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) {
		s.log = logger.Default(l)
	}
}

// WithRequest sets how an entry is turned into a notification
func WithRequest(build func(models.ScheduleEntry) notify.Request) Option {
	return func(s *Scheduler) {
		if build != nil {
			s.request = build
		}
	}
}

// Scheduler is the background reminder loop.
//
// The dedup set is keyed by the entry itself, so two entries at the same time
// with different titles fire independently. It is cleared whenever the
// calendar date of a tick differs from the previous tick's date.
type Scheduler struct {
	source   EntrySource
	notifier notify.Notifier
	interval time.Duration
	now      func() time.Time
	log      logger.Logger
	request  func(models.ScheduleEntry) notify.Request

	// mu guards the dedup state and is held for a whole tick
	mu              sync.Mutex
	lastCheckedDate string
	notifiedToday   map[models.ScheduleEntry]struct{}

	// lifeMu guards the run state
	lifeMu  sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// New creates a stopped scheduler
func New(source EntrySource, notifier notify.Notifier, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:        source,
		notifier:      notifier,
		interval:      DefaultInterval,
		now:           time.Now,
		log:           logger.Default(nil),
		notifiedToday: make(map[models.ScheduleEntry]struct{}),
	}
	s.request = func(e models.ScheduleEntry) notify.Request {
		return notify.DefaultRequest(e, models.DefaultAppDisplayName, models.DefaultNotifyTimeout)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the polling loop. Calling Start while running is a no-op.
// Cancelling ctx stops the loop like Stop does.
func (s *Scheduler) Start(ctx context.Context) {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if s.running {
		return
	}

	s.mu.Lock()
	s.lastCheckedDate = models.DateKey(s.now())
	s.mu.Unlock()

	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	s.log.Info("Starting notification scheduler (interval %s)", s.interval)
	go s.loop(ctx, s.stop, s.done)
}

// Stop asks the loop to exit. It does not wait; use Wait for that.
func (s *Scheduler) Stop() {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	s.log.Info("Stopping notification scheduler")
}

// Wait blocks until the most recently started loop has exited
func (s *Scheduler) Wait() {
	s.lifeMu.Lock()
	done := s.done
	s.lifeMu.Unlock()

	if done != nil {
		<-done
	}
}

// Running reports whether the loop is running
func (s *Scheduler) Running() bool {
	s.lifeMu.Lock()
	defer s.lifeMu.Unlock()
	return s.running
}

// Notified returns the entries already fired on the current date
func (s *Scheduler) Notified() []models.ScheduleEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.ScheduleEntry, 0, len(s.notifiedToday))
	for e := range s.notifiedToday {
		out = append(out, e)
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Tick(s.now())

		select {
		case <-stop:
			return
		case <-ctx.Done():
			s.lifeMu.Lock()
			if s.stop == stop && s.running {
				s.running = false
				close(stop)
			}
			s.lifeMu.Unlock()
			return
		case <-ticker.C:
		}
	}
}

// Tick runs one polling cycle for now and returns the number of reminders
// handed to the notifier.
func (s *Scheduler) Tick(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	today := models.DateKey(now)
	clock := models.ClockOf(now)

	if today != s.lastCheckedDate {
		if s.lastCheckedDate != "" {
			s.log.Info("Date changed from %s to %s, resetting notified reminders", s.lastCheckedDate, today)
		}
		clear(s.notifiedToday)
		s.lastCheckedDate = today
	}

	entries, err := s.source.LoadForDate(now)
	if err != nil {
		s.log.Warning("Failed to load schedule for %s: %v", today, err)
		return 0
	}

	fired := 0
	for _, entry := range entries {
		if entry.Time != clock {
			continue
		}
		if _, done := s.notifiedToday[entry]; done {
			continue
		}

		s.log.Info("Sending reminder: %s", entry.String())
		if err := s.deliver(entry); err != nil {
			s.log.Error("Failed to send reminder %q: %v", entry.String(), err)
		}
		// Marked even on failure: reminders are at most once, never retried
		s.notifiedToday[entry] = struct{}{}
		fired++
	}
	return fired
}

// deliver calls the notifier, turning a panic into an error
func (s *Scheduler) deliver(entry models.ScheduleEntry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panicked: %v", r)
		}
	}()
	return s.notifier.Notify(s.request(entry))
}
