package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MinInterval is the shortest refresh interval a Scheduler accepts. Shorter
// intervals are raised to it.
const MinInterval = time.Second

// Loader performs one refresh. Load must return once the refresh has
// settled and must not fail.
type Loader interface {
	Load(ctx context.Context)
}

// LoaderFunc adapts a function to [Loader].
type LoaderFunc func(ctx context.Context)

// Load calls f(ctx).
func (f LoaderFunc) Load(ctx context.Context) { f(ctx) }

// Cycle holds the outcome of one refresh cycle.
type Cycle struct {
	// Seq numbers cycles from 1 in the order they started.
	Seq uint64

	// StartedAt is when the cycle began.
	StartedAt time.Time

	// Duration is how long the Loader took to settle.
	Duration time.Duration

	// Error is set only when the Loader panicked.
	Error error
}

// Scheduler calls a [Loader] at a fixed interval.
//
// Cycles never overlap: a tick that arrives while a refresh is still running
// is dropped. Completed cycles are offered on [Scheduler.Results]; a cycle is
// discarded when the previous one has not been read yet, so a Scheduler
// without a consumer keeps running.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	loader   Loader
	interval time.Duration
	results  chan Cycle
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once
	seq       uint64
}

// NewScheduler creates a new refresh [Scheduler].
//
// Parameters:
//   - loader: The refresh operation to run each cycle
//   - interval: Time between cycles, raised to [MinInterval] if shorter
//   - logger: Logger for scheduler events (panic recovery, etc.)
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop].
func NewScheduler(loader Loader, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval < MinInterval {
		interval = MinInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		loader:   loader,
		interval: interval,
		results:  make(chan Cycle, 1),
		logger:   logger,
	}
}

// Interval returns the effective interval between cycles.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Results returns a receive-only channel that emits completed [Cycle] values.
//
// The channel is closed when the scheduler stops.
func (s *Scheduler) Results() <-chan Cycle {
	return s.results
}

// Start begins the refresh loop in a background goroutine.
//
// Start is non-blocking and returns immediately. The first cycle runs one
// interval after Start; the loop continues until [Scheduler.Stop] is called
// or the context is cancelled.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	loopCtx := s.ctx // capture under lock to avoid race
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.results) })

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.emit(s.runCycle(loopCtx))
			}
		}
	}()
}

// Stop halts the scheduler and waits for the loop to exit, including any
// refresh in flight.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.results) })
}

func (s *Scheduler) runCycle(ctx context.Context) Cycle {
	s.mu.Lock()
	s.seq++
	cycle := Cycle{Seq: s.seq, StartedAt: time.Now()}
	s.mu.Unlock()

	cycle.Error = s.safeLoad(ctx)
	cycle.Duration = time.Since(cycle.StartedAt)

	s.logger.Debug("refresh cycle finished",
		"seq", cycle.Seq,
		"duration_ms", cycle.Duration.Milliseconds(),
	)
	return cycle
}

func (s *Scheduler) emit(c Cycle) {
	select {
	case s.results <- c:
	default:
	}
}

// safeLoad calls the loader with panic recovery.
// If the loader panics, it logs the full stack trace with a correlation ID
// and returns an error containing the ID.
func (s *Scheduler) safeLoad(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			s.logger.Error("refresh panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			err = fmt.Errorf("refresh panic (correlation_id: %s)", correlationID)
		}
	}()
	s.loader.Load(ctx)
	return nil
}
