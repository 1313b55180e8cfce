package store

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jpalmerr/pkgmirror/internal/observable"
	"github.com/jpalmerr/pkgmirror/internal/remote"
)

// Load refreshes all three values and returns once every fetch has settled.
//
// The fetches for packages, database info and upgradable details are started
// in that order and run concurrently. Each value is published as soon as its
// own fetch succeeds; a failed fetch is logged and leaves its value as it was.
// Load never fails, so callers have nothing to handle.
//
// Concurrent calls are allowed and are not serialized. When refreshes
// overlap, each value ends at whichever successful response settled last.
func (s *Store) Load(ctx context.Context) {
	start := time.Now()
	logger := s.logger.With("load_id", uuid.NewString())
	logger.Debug("refresh started")

	// the tasks never return errors; the group is only an all-settled join
	var g errgroup.Group
	launch(&g, func(begin func()) {
		if catalog, ok := refresh(ctx, s, logger, begin, ResourcePackages, s.api.FetchPackages, s.packages); ok {
			s.recorder.SetCatalogSize(len(catalog))
		}
	})
	launch(&g, func(begin func()) {
		refresh(ctx, s, logger, begin, ResourceDatabase, s.api.FetchDatabaseInfo, s.database)
	})
	launch(&g, func(begin func()) {
		refresh(ctx, s, logger, begin, ResourceUpgradable, s.api.FetchUpgradable, s.upgradable)
	})
	_ = g.Wait()

	elapsed := time.Since(start)
	s.recorder.ObserveLoad(elapsed)
	logger.Debug("refresh settled", "duration_ms", elapsed.Milliseconds())
}

// launch runs task on g and returns once the task has called begin, which
// it does right before its fetch. Fetches launched one after another are
// therefore issued in launch order.
func launch(g *errgroup.Group, task func(begin func())) {
	started := make(chan struct{})
	var once sync.Once
	begin := func() { once.Do(func() { close(started) }) }
	g.Go(func() error {
		// a task that ends without fetching must not stall the launcher
		defer begin()
		task(begin)
		return nil
	})
	<-started
}

// LoadAsync starts [Store.Load] in the background. The returned channel is
// closed once the refresh has settled.
func (s *Store) LoadAsync(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Load(ctx)
	}()
	return done
}

// refresh runs one fetch and publishes its payload into dst on success.
// It reports the published payload and whether a publish happened.
func refresh[T any](
	ctx context.Context,
	s *Store,
	logger *slog.Logger,
	begin func(),
	resource string,
	fetch func(context.Context) remote.Result[T],
	dst *observable.Value[T],
) (T, bool) {
	if s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.fetchTimeout)
		defer cancel()
	}

	start := time.Now()
	res := settle(ctx, logger, resource, begin, fetch)
	s.recorder.ObserveFetch(resource, time.Since(start), res.OK())

	if !res.OK() {
		logger.Warn("fetch failed",
			"resource", resource,
			"status_code", res.StatusCode,
			"message", res.Message,
		)
		var zero T
		return zero, false
	}

	dst.Set(res.Payload)
	logger.Debug("fetch published",
		"resource", resource,
		"latency_ms", time.Since(start).Milliseconds(),
	)
	return res.Payload, true
}

// settle waits for fetch to produce a result or for ctx to end, whichever
// comes first. begin is called immediately before fetch. A fetch that
// outlives ctx is abandoned and its eventual result discarded. A panic inside
// fetch becomes a failure carrying a correlation id.
func settle[T any](ctx context.Context, logger *slog.Logger, resource string, begin func(), fetch func(context.Context) remote.Result[T]) remote.Result[T] {
	done := make(chan remote.Result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				correlationID := uuid.NewString()
				logger.Error("fetch panicked",
					"correlation_id", correlationID,
					"resource", resource,
					"panic", fmt.Sprintf("%v", r),
					"stack", string(debug.Stack()),
				)
				done <- remote.Failure[T](0, fmt.Sprintf("fetch panic (correlation_id: %s)", correlationID))
			}
		}()
		begin()
		done <- fetch(ctx)
	}()

	select {
	case res := <-done:
		return res
	case <-ctx.Done():
		return remote.Failure[T](0, fmt.Sprintf("fetch abandoned: %v", ctx.Err()))
	}
}
