package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jpalmerr/pkgmirror/internal/metrics"
	"github.com/jpalmerr/pkgmirror/internal/model"
	"github.com/jpalmerr/pkgmirror/internal/observable"
	"github.com/jpalmerr/pkgmirror/internal/remote"
)

// Resource names used in logs and metrics.
const (
	ResourcePackages   = "packages"
	ResourceDatabase   = "database"
	ResourceUpgradable = "upgradable"
)

// API is the remote side a [Store] refreshes from.
//
// Implementations report every outcome through the returned Result;
// *remote.Client is the production implementation.
type API interface {
	FetchPackages(ctx context.Context) remote.Result[[]model.PackageRecord]
	FetchDatabaseInfo(ctx context.Context) remote.Result[model.DatabaseInfo]
	FetchUpgradable(ctx context.Context) remote.Result[model.UpgradableDetails]
}

// Store holds the mirrored state. Create one per application with [New]; it
// lives until [Store.Close].
//
// Only [Store.Load] writes to the values. Everything else sees them through
// the read-only [observable.Observable] views.
type Store struct {
	api          API
	logger       *slog.Logger
	recorder     metrics.Recorder
	fetchTimeout time.Duration

	packages   *observable.Value[[]model.PackageRecord]
	database   *observable.Value[model.DatabaseInfo]
	upgradable *observable.Value[model.UpgradableDetails]
}

// Option configures a [Store].
type Option func(*Store)

// WithLogger sets the logger used for refresh outcomes.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithFetchTimeout bounds each individual fetch. A fetch that exceeds the
// timeout settles as a failure. Zero means no bound beyond the caller's
// context.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.fetchTimeout = d
		}
	}
}

// New creates a Store backed by api, with every value at its default: an
// empty catalog, an empty database record and nothing upgradable.
func New(api API, opts ...Option) (*Store, error) {
	if api == nil {
		return nil, errors.New("store requires an API")
	}

	s := &Store{
		api:        api,
		logger:     slog.Default(),
		recorder:   metrics.NoopRecorder{},
		packages:   observable.New(model.EmptyCatalog()),
		database:   observable.New(model.DatabaseInfo{}),
		upgradable: observable.New(model.EmptyUpgradable()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Packages returns the observable package catalog.
func (s *Store) Packages() observable.Observable[[]model.PackageRecord] {
	return s.packages
}

// DatabaseInfo returns the observable database status record.
func (s *Store) DatabaseInfo() observable.Observable[model.DatabaseInfo] {
	return s.database
}

// Upgradable returns the observable upgrade availability record.
func (s *Store) Upgradable() observable.Observable[model.UpgradableDetails] {
	return s.upgradable
}

// Close ends all subscriptions. The last values stay readable, but Load no
// longer publishes.
func (s *Store) Close() {
	s.packages.Close()
	s.database.Close()
	s.upgradable.Close()
}
