// Package dispatch hands work from any goroutine to the UI goroutine.
//
// Widgets may only be touched from the UI goroutine. Tray callbacks, the
// hotkey listener, the file watcher and the scheduler all run elsewhere and
// must go through a Bridge.
package dispatch

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/borgmon/schedule-reminder/pkg/logger"
)

// Runner runs fn on the UI goroutine at some later point. Do must not block
// waiting for fn to finish.
type Runner interface {
	Do(fn func())
}

// RunnerFunc adapts a function to the Runner interface
type RunnerFunc func(fn func())

func (f RunnerFunc) Do(fn func()) { f(fn) }

// Step is one stage of a Sequence. Delay is measured from the moment the
// previous step ran.
type Step struct {
	Delay time.Duration
	Fn    func()
}

// Bridge is a thread-safe FIFO of callbacks drained on the UI goroutine.
//
// Callbacks run exactly once, one at a time, in the order they were posted.
// The queue is drained in batches; a callback posted while a batch is running
// is deferred to the next batch, so a callback never runs inside the cycle
// that posted it.
type Bridge struct {
	runner Runner
	log    logger.Logger

	mu      sync.Mutex
	queue   []func()
	pending bool // a drain has been handed to the runner and not finished
	closed  bool
	timers  map[*time.Timer]struct{}
}

// New creates a bridge that drains through runner
func New(runner Runner, log logger.Logger) *Bridge {
	return &Bridge{
		runner: runner,
		log:    logger.Default(log),
		timers: make(map[*time.Timer]struct{}),
	}
}

// Post enqueues fn for the UI goroutine and returns immediately.
// Posts after Close are dropped.
func (b *Bridge) Post(fn func()) {
	if fn == nil {
		return
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.queue = append(b.queue, fn)
	schedule := !b.pending
	b.pending = true
	b.mu.Unlock()

	if schedule {
		b.runner.Do(b.drain)
	}
}

// PostDelayed posts fn once delay has elapsed. The returned function cancels
// the post and reports whether it was still pending.
func (b *Bridge) PostDelayed(fn func(), delay time.Duration) (cancel func() bool) {
	if fn == nil {
		return func() bool { return false }
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() bool { return false }
	}

	var timer *time.Timer
	timer = time.AfterFunc(delay, func() {
		b.mu.Lock()
		delete(b.timers, timer)
		b.mu.Unlock()
		b.Post(fn)
	})
	b.timers[timer] = struct{}{}

	return func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.timers, timer)
		return timer.Stop()
	}
}

// Sequence schedules steps in order. Each step waits for the previous one to
// have run on the UI goroutine before its own delay starts, so the order holds
// whatever the timer jitter.
func (b *Bridge) Sequence(steps ...Step) {
	b.runStep(steps, 0)
}

func (b *Bridge) runStep(steps []Step, i int) {
	if i >= len(steps) {
		return
	}
	step := steps[i]
	run := func() {
		if step.Fn != nil {
			step.Fn()
		}
		b.runStep(steps, i+1)
	}
	if step.Delay <= 0 {
		b.Post(run)
		return
	}
	b.PostDelayed(run, step.Delay)
}

// Close stops pending delayed posts and drops every later post.
// Callbacks already queued still run.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for timer := range b.timers {
		timer.Stop()
	}
	clear(b.timers)
}

// Len returns how many callbacks are waiting for the next drain
func (b *Bridge) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// drain runs the current batch. It is only ever invoked by the runner.
func (b *Bridge) drain() {
	b.mu.Lock()
	batch := b.queue
	b.queue = nil
	b.mu.Unlock()

	for _, fn := range batch {
		b.run(fn)
	}

	b.mu.Lock()
	more := len(b.queue) > 0
	b.pending = more
	b.mu.Unlock()

	if more {
		b.runner.Do(b.drain)
	}
}

func (b *Bridge) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("UI callback panicked: %v\n%s", r, debug.Stack())
		}
	}()
	fn()
}
