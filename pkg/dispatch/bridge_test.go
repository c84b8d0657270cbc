package dispatch

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/borgmon/schedule-reminder/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startLoop runs a Loop on its own goroutine, which plays the UI goroutine
func startLoop(t *testing.T) (*Bridge, *logger.MockLogger) {
	t.Helper()
	loop := NewLoop(16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	log := logger.NewMockLogger()
	return New(loop, log), log
}

// flush waits until everything posted before it has run
func flush(t *testing.T, b *Bridge) {
	t.Helper()
	ran := make(chan struct{})
	b.Post(func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not drain")
	}
}

func TestPostRunsInOrderExactlyOnce(t *testing.T) {
	b, _ := startLoop(t)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		b.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	flush(t, b)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestPostFromManyGoroutinesNeverOverlaps(t *testing.T) {
	b, _ := startLoop(t)

	var inFlight, maxInFlight, total atomic.Int32
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				b.Post(func() {
					n := inFlight.Add(1)
					if n > maxInFlight.Load() {
						maxInFlight.Store(n)
					}
					time.Sleep(10 * time.Microsecond)
					inFlight.Add(-1)
					total.Add(1)
				})
			}
		}()
	}
	wg.Wait()
	flush(t, b)

	assert.Equal(t, int32(400), total.Load())
	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestPostFromCallbackRunsInNextBatch(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	// A synchronous runner would expose reentrancy immediately
	var b *Bridge
	drains := 0
	b = New(RunnerFunc(func(fn func()) {
		drains++
		fn()
	}), logger.NewNopLogger())

	b.Post(func() {
		record("outer start")
		b.Post(func() { record("nested") })
		record("outer end")
	})

	assert.Equal(t, []string{"outer start", "outer end", "nested"}, order)
	assert.Equal(t, 2, drains)
	assert.Equal(t, 0, b.Len())
}

func TestPostWhileBatchRunsIsDeferredSameBatchOrder(t *testing.T) {
	b, _ := startLoop(t)

	var mu sync.Mutex
	var order []string
	record := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	b.Post(func() {
		record("a")
		b.Post(func() { record("c") })
	})
	b.Post(func() { record("b") })
	flush(t, b)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestPanickingCallbackDoesNotBreakBridge(t *testing.T) {
	b, log := startLoop(t)

	var ran atomic.Bool
	b.Post(func() { panic("boom") })
	b.Post(func() { ran.Store(true) })
	flush(t, b)

	assert.True(t, ran.Load())
	assert.Len(t, log.Errors(), 1)
}

func TestPostDelayedWaits(t *testing.T) {
	b, _ := startLoop(t)

	start := time.Now()
	ran := make(chan time.Time, 1)
	b.PostDelayed(func() { ran <- time.Now() }, 30*time.Millisecond)

	select {
	case at := <-ran:
		assert.GreaterOrEqual(t, at.Sub(start), 30*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("delayed callback never ran")
	}
}

func TestPostDelayedCancel(t *testing.T) {
	b, _ := startLoop(t)

	var ran atomic.Bool
	cancel := b.PostDelayed(func() { ran.Store(true) }, 50*time.Millisecond)
	assert.True(t, cancel())
	assert.False(t, cancel())

	time.Sleep(100 * time.Millisecond)
	flush(t, b)
	assert.False(t, ran.Load())
}

func TestSequenceRunsStepsInOrder(t *testing.T) {
	b, _ := startLoop(t)

	var mu sync.Mutex
	var order []string
	step := func(name string) func() {
		return func() {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		}
	}

	done := make(chan struct{})
	b.Sequence(
		Step{Fn: step("reveal")},
		Step{Delay: 10 * time.Millisecond, Fn: step("raise")},
		Step{Delay: time.Millisecond, Fn: step("float")},
		Step{Delay: 0, Fn: step("unfloat")},
		Step{Fn: func() { close(done) }},
	)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sequence did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"reveal", "raise", "float", "unfloat"}, order)
}

func TestCloseDropsLaterWork(t *testing.T) {
	b, _ := startLoop(t)

	var ran atomic.Int32
	b.PostDelayed(func() { ran.Add(1) }, 20*time.Millisecond)
	b.Close()
	b.Post(func() { ran.Add(1) })
	b.PostDelayed(func() { ran.Add(1) }, time.Millisecond)

	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, int32(0), ran.Load())
	assert.Equal(t, 0, b.Len())
}

func TestLoopDropsWorkAfterRunReturns(t *testing.T) {
	loop := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, loop.Run(ctx), context.Canceled)

	// Must not block once the loop is gone
	finished := make(chan struct{})
	go func() {
		loop.Do(func() {})
		loop.Do(func() {})
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Do blocked after the loop stopped")
	}
}
