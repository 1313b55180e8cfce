package poller

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingLoader counts Load calls.
type countingLoader struct {
	calls atomic.Int32
}

func (c *countingLoader) Load(context.Context) {
	c.calls.Add(1)
}

// TestScheduler_StopBeforeStart verifies that calling Stop() on a scheduler
// that was never started does not panic and is a safe no-op.
func TestScheduler_StopBeforeStart(t *testing.T) {
	scheduler := NewScheduler(&countingLoader{}, time.Minute, testLogger())

	// this must not panic
	scheduler.Stop()

	if _, ok := <-scheduler.Results(); ok {
		t.Error("expected results channel to be closed after Stop()")
	}
}

// TestScheduler_StopTwice verifies that Stop() is idempotent and can be
// called multiple times without panic or deadlock.
func TestScheduler_StopTwice(t *testing.T) {
	scheduler := NewScheduler(&countingLoader{}, time.Minute, testLogger())
	scheduler.Start(context.Background())

	// both calls must complete without panic or deadlock
	scheduler.Stop()
	scheduler.Stop()
}

// TestScheduler_IntervalFloor verifies that intervals shorter than
// MinInterval are raised to it.
func TestScheduler_IntervalFloor(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		want     time.Duration
	}{
		{"zero", 0, MinInterval},
		{"negative", -time.Second, MinInterval},
		{"below floor", 10 * time.Millisecond, MinInterval},
		{"at floor", MinInterval, MinInterval},
		{"above floor", 5 * time.Minute, 5 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewScheduler(&countingLoader{}, tt.interval, testLogger())
			if got := s.Interval(); got != tt.want {
				t.Errorf("Interval() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestScheduler_NoImmediateCycle verifies that the first cycle waits a full
// interval, since the initial refresh belongs to bootstrap.
func TestScheduler_NoImmediateCycle(t *testing.T) {
	loader := &countingLoader{}
	scheduler := NewScheduler(loader, time.Hour, testLogger())
	scheduler.Start(context.Background())

	time.Sleep(100 * time.Millisecond)
	scheduler.Stop()

	if n := loader.calls.Load(); n != 0 {
		t.Errorf("Load called %d times, want 0", n)
	}
}

// TestScheduler_RunsOnInterval verifies that cycles run once per interval
// and are reported in order.
func TestScheduler_RunsOnInterval(t *testing.T) {
	loader := &countingLoader{}
	scheduler := NewScheduler(loader, MinInterval, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	var last uint64
	for i := 0; i < 2; i++ {
		select {
		case cycle := <-scheduler.Results():
			if cycle.Seq <= last {
				t.Errorf("cycle Seq = %d after %d, want increasing", cycle.Seq, last)
			}
			if cycle.Error != nil {
				t.Errorf("cycle Error = %v, want nil", cycle.Error)
			}
			if cycle.StartedAt.IsZero() {
				t.Error("cycle StartedAt is zero")
			}
			last = cycle.Seq
		case <-time.After(3 * time.Second):
			t.Fatalf("timeout waiting for cycle %d", i+1)
		}
	}

	if n := loader.calls.Load(); n < 2 {
		t.Errorf("Load called %d times, want at least 2", n)
	}
}

// TestScheduler_ContinuesWithoutConsumer verifies that unread results never
// stall the refresh loop.
func TestScheduler_ContinuesWithoutConsumer(t *testing.T) {
	loader := &countingLoader{}
	scheduler := NewScheduler(loader, MinInterval, testLogger())
	scheduler.Start(context.Background())

	time.Sleep(2500 * time.Millisecond)
	scheduler.Stop()

	if n := loader.calls.Load(); n < 2 {
		t.Errorf("Load called %d times without a consumer, want at least 2", n)
	}
}

// TestScheduler_ConcurrentStartStop verifies that calling Start() and Stop()
// concurrently does not cause a race condition or panic.
// Run with: go test -race ./internal/poller/...
func TestScheduler_ConcurrentStartStop(t *testing.T) {
	// run multiple iterations to increase chance of catching races
	for i := 0; i < 100; i++ {
		scheduler := NewScheduler(&countingLoader{}, time.Minute, testLogger())

		var wg sync.WaitGroup
		wg.Add(2)

		go func() {
			defer wg.Done()
			scheduler.Start(context.Background())
		}()

		go func() {
			defer wg.Done()
			scheduler.Stop()
		}()

		wg.Wait()
		scheduler.Stop()

		// drain any remaining results
		for range scheduler.Results() {
		}
	}
}

// TestScheduler_StartTwice verifies that Start() is idempotent and calling
// it multiple times does not spawn multiple refresh loops.
func TestScheduler_StartTwice(t *testing.T) {
	loader := &countingLoader{}
	scheduler := NewScheduler(loader, MinInterval, testLogger())

	scheduler.Start(context.Background())
	scheduler.Start(context.Background()) // second call should be no-op

	time.Sleep(1500 * time.Millisecond)
	scheduler.Stop()

	if n := loader.calls.Load(); n != 1 {
		t.Errorf("Load called %d times, want 1", n)
	}
}

// TestScheduler_StopBeforeStartThenStart verifies that if Stop() is called
// before Start(), a subsequent Start() call is a no-op.
func TestScheduler_StopBeforeStartThenStart(t *testing.T) {
	loader := &countingLoader{}
	scheduler := NewScheduler(loader, MinInterval, testLogger())

	scheduler.Stop()                // stop before start
	scheduler.Start(context.TODO()) // start after stop - should be a no-op
	scheduler.Stop()                // second stop should not panic

	if n := loader.calls.Load(); n != 0 {
		t.Errorf("Load called %d times, want 0", n)
	}
}

// TestScheduler_ContextCancellation verifies that cancelling the parent context
// stops the scheduler gracefully.
func TestScheduler_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	scheduler := NewScheduler(&countingLoader{}, time.Minute, testLogger())
	scheduler.Start(ctx)

	// cancel parent context
	cancel()

	select {
	case _, ok := <-scheduler.Results():
		if ok {
			t.Error("unexpected cycle after cancellation")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("results channel not closed after parent context cancellation")
	}

	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
		// success
	case <-time.After(2 * time.Second):
		t.Error("Stop() did not complete after parent context cancellation")
	}
}

// TestScheduler_StopWaitsForInflightLoad verifies that Stop() cancels the
// loader's context and waits for it to return.
func TestScheduler_StopWaitsForInflightLoad(t *testing.T) {
	entered := make(chan struct{})
	var returned atomic.Bool

	loader := LoaderFunc(func(ctx context.Context) {
		select {
		case <-entered:
		default:
			close(entered)
		}
		<-ctx.Done()
		returned.Store(true)
	})

	scheduler := NewScheduler(loader, MinInterval, testLogger())
	scheduler.Start(context.Background())

	select {
	case <-entered:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for first cycle")
	}

	scheduler.Stop()

	if !returned.Load() {
		t.Error("Stop() returned before the in-flight Load")
	}
}

// TestScheduler_LoaderPanicRecovery verifies that a panicking loader does
// not crash the scheduler. The cycle reports an error with a correlation ID
// and the loop keeps running.
func TestScheduler_LoaderPanicRecovery(t *testing.T) {
	var calls atomic.Int32
	loader := LoaderFunc(func(context.Context) {
		if calls.Add(1) == 1 {
			panic("loader panic: simulated failure")
		}
	})

	scheduler := NewScheduler(loader, MinInterval, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	var first Cycle
	select {
	case first = <-scheduler.Results():
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for cycle")
	}

	if first.Error == nil {
		t.Fatal("Error = nil, want error describing panic")
	}
	errMsg := first.Error.Error()
	if !strings.Contains(errMsg, "refresh panic") {
		t.Errorf("Error = %q, want to contain 'refresh panic'", errMsg)
	}
	if !strings.Contains(errMsg, "correlation_id") {
		t.Errorf("Error = %q, want to contain 'correlation_id'", errMsg)
	}

	select {
	case second := <-scheduler.Results():
		if second.Error != nil {
			t.Errorf("second cycle Error = %v, want nil", second.Error)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler stopped after a loader panic")
	}
}

// TestScheduler_NilPanicRecovery verifies that even a panic with a nil value
// is recovered gracefully.
func TestScheduler_NilPanicRecovery(t *testing.T) {
	loader := LoaderFunc(func(context.Context) {
		panic(nil)
	})

	scheduler := NewScheduler(loader, MinInterval, testLogger())
	scheduler.Start(context.Background())
	defer scheduler.Stop()

	select {
	case cycle := <-scheduler.Results():
		if cycle.Error == nil {
			t.Fatal("Error = nil, want error for nil panic")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for cycle")
	}
}
