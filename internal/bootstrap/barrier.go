package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Hook starts one piece of initialization and returns a channel that is
// closed once it has settled. A nil channel counts as already settled.
type Hook func(ctx context.Context) <-chan struct{}

var (
	// ErrAlreadyStarted is returned by Register once the barrier has run.
	ErrAlreadyStarted = errors.New("bootstrap: barrier already started")

	// ErrDuplicateHook is returned when a hook name is registered twice.
	ErrDuplicateHook = errors.New("bootstrap: duplicate hook")
)

type namedHook struct {
	name string
	fn   Hook
}

// Barrier runs its registered hooks once and lets callers wait for them.
//
// All methods are safe for concurrent use.
type Barrier struct {
	logger *slog.Logger

	mu      sync.Mutex
	hooks   []namedHook
	started bool

	done chan struct{}
}

// New creates an empty Barrier. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Barrier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Barrier{
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Register adds a hook. Hooks are started in registration order.
func (b *Barrier) Register(name string, hook Hook) error {
	if name == "" {
		return errors.New("bootstrap: hook name is required")
	}
	if hook == nil {
		return fmt.Errorf("bootstrap: hook %q is nil", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return fmt.Errorf("register %q: %w", name, ErrAlreadyStarted)
	}
	for _, h := range b.hooks {
		if h.name == name {
			return fmt.Errorf("register %q: %w", name, ErrDuplicateHook)
		}
	}
	b.hooks = append(b.hooks, namedHook{name: name, fn: hook})
	return nil
}

// Run starts every hook on the first call and waits until all of them have
// settled. Later calls start nothing and wait for the first run.
//
// Run returns nil once the hooks have settled and ctx.Err() when ctx ends
// first. ctx only bounds the caller's own wait: hooks receive its values but
// not its cancellation, so a caller giving up never abandons the run for
// the others.
func (b *Barrier) Run(ctx context.Context) error {
	b.mu.Lock()
	first := !b.started
	b.started = true
	hooks := b.hooks
	b.mu.Unlock()

	if first {
		go b.run(context.WithoutCancel(ctx), hooks)
	}

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done returns a channel that is closed when the first run finishes.
func (b *Barrier) Done() <-chan struct{} {
	return b.done
}

// Ready reports whether every hook has settled.
func (b *Barrier) Ready() bool {
	select {
	case <-b.done:
		return true
	default:
		return false
	}
}

func (b *Barrier) run(ctx context.Context, hooks []namedHook) {
	defer close(b.done)

	start := time.Now()
	pending := make([]<-chan struct{}, len(hooks))
	for i, h := range hooks {
		pending[i] = b.invoke(ctx, h)
	}

	for _, ch := range pending {
		if ch != nil {
			<-ch
		}
	}

	b.logger.Info("bootstrap complete",
		"hooks", len(hooks),
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// invoke calls a hook with panic recovery. A panicking hook counts as
// settled.
func (b *Barrier) invoke(ctx context.Context, h namedHook) (ch <-chan struct{}) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bootstrap hook panic",
				"correlation_id", uuid.NewString(),
				"hook", h.name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			ch = nil
		}
	}()
	b.logger.Debug("bootstrap hook started", "hook", h.name)
	return h.fn(ctx)
}
