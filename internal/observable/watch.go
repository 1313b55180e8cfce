package observable

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/google/uuid"
)

// Watch calls fn with the current value of o and then with every later value,
// until ctx is cancelled or the subscription is closed. It blocks; run it in
// its own goroutine.
//
// A panic in fn is recovered and logged with a correlation id, and delivery
// continues with the next value.
func Watch[T any](ctx context.Context, o Observable[T], logger *slog.Logger, name string, fn func(T)) {
	ch, unsubscribe := o.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case val, ok := <-ch:
			if !ok {
				return
			}
			callSafe(logger, name, fn, val)
		}
	}
}

func callSafe[T any](logger *slog.Logger, name string, fn func(T), val T) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("subscriber callback panicked",
				"correlation_id", uuid.NewString(),
				"channel", name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn(val)
}
