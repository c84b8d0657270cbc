package dispatch

import (
	"context"

	"fyne.io/fyne/v2"
)

// FyneRunner runs functions on the Fyne main goroutine
type FyneRunner struct{}

func (FyneRunner) Do(fn func()) {
	fyne.Do(fn)
}

// Loop is a minimal cooperative event loop. The goroutine calling Run is the
// UI goroutine; functions handed to Do run there one at a time in arrival order.
type Loop struct {
	funcs chan func()
	done  chan struct{}
}

// NewLoop creates a loop whose queue holds up to buffer functions before Do blocks
func NewLoop(buffer int) *Loop {
	if buffer < 1 {
		buffer = 1
	}
	return &Loop{
		funcs: make(chan func(), buffer),
		done:  make(chan struct{}),
	}
}

// Do queues fn. After Run has returned, fn is dropped.
func (l *Loop) Do(fn func()) {
	select {
	case l.funcs <- fn:
	case <-l.done:
	}
}

// Run processes queued functions until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.done)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.funcs:
			fn()
		}
	}
}

var (
	_ Runner = FyneRunner{}
	_ Runner = (*Loop)(nil)
	_ Runner = RunnerFunc(nil)
)
