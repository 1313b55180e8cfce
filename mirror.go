package pkgmirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/pkgmirror/dashboard"
	"github.com/jpalmerr/pkgmirror/internal/bootstrap"
	"github.com/jpalmerr/pkgmirror/internal/metrics"
	"github.com/jpalmerr/pkgmirror/internal/observable"
	"github.com/jpalmerr/pkgmirror/internal/poller"
	"github.com/jpalmerr/pkgmirror/internal/remote"
	"github.com/jpalmerr/pkgmirror/internal/server"
	"github.com/jpalmerr/pkgmirror/internal/store"
)

const (
	defaultPort            = 7890
	defaultRefreshInterval = 5 * time.Minute
	defaultFetchTimeout    = 10 * time.Second
)

// ErrAlreadyStarted is returned by [Mirror.Start] when called more than once.
var ErrAlreadyStarted = errors.New("mirror already started")

// Mirror keeps a local, observable copy of an MMPM API server's package
// catalog, database status and upgrade availability, and serves it to
// browsers.
//
// A Mirror is created using [New] with functional options and started with
// [Mirror.Start]. The typical lifecycle is:
//
//	m, err := pkgmirror.New(pkgmirror.WithAPIURL("http://raspberrypi.local:7891"))
//	if err != nil {
//	    slog.Error("failed to create mirror", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	m.Start(ctx) // blocks until context cancelled
//
// Embedders that only need the state can skip Start: call [Mirror.Bootstrap]
// once, then read or subscribe to the three channels and call [Mirror.Load]
// whenever a refresh is wanted.
type Mirror struct {
	title           string
	port            int
	refreshInterval time.Duration
	logger          *slog.Logger

	client   *remote.Client
	store    *store.Store
	barrier  *bootstrap.Barrier
	registry *prometheus.Registry

	packagesCallbacks   []func([]PackageRecord)
	databaseCallbacks   []func(DatabaseInfo)
	upgradableCallbacks []func(UpgradableDetails)

	mu      sync.Mutex
	started bool
}

// New creates a new [Mirror] instance with the given options.
//
// All options have defaults:
//   - API URL: http://localhost:7891
//   - Port: 7890
//   - Refresh interval: 5 minutes
//   - Fetch timeout: 10 seconds
//
// Until the first refresh settles every channel holds its default: an empty
// catalog, an empty database record and nothing upgradable.
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*Mirror, error) {
	cfg := &mirrorConfig{
		apiURL:          remote.DefaultBaseURL,
		port:            defaultPort,
		refreshInterval: defaultRefreshInterval,
		fetchTimeout:    defaultFetchTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := remote.NewClient(cfg.apiURL, copyHeaders(cfg.apiHeaders))
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	registry := cfg.registry
	if cfg.metricsEnabled {
		if registry == nil {
			registry = prometheus.NewRegistry()
		}
		recorder = metrics.NewPrometheusRecorder(registry)
	}

	st, err := store.New(client,
		store.WithLogger(logger),
		store.WithRecorder(recorder),
		store.WithFetchTimeout(cfg.fetchTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	barrier := bootstrap.New(logger)
	if err := barrier.Register("initial-load", st.LoadAsync); err != nil {
		return nil, fmt.Errorf("failed to register bootstrap hook: %w", err)
	}

	return &Mirror{
		title:               cfg.title,
		port:                cfg.port,
		refreshInterval:     cfg.refreshInterval,
		logger:              logger,
		client:              client,
		store:               st,
		barrier:             barrier,
		registry:            registry,
		packagesCallbacks:   cfg.packagesCallbacks,
		databaseCallbacks:   cfg.databaseCallbacks,
		upgradableCallbacks: cfg.upgradableCallbacks,
	}, nil
}

// Bootstrap performs the initial refresh and returns once it has settled.
//
// The refresh runs only once per Mirror; later calls wait for it. Failed
// fetches do not make Bootstrap fail: when the API server is unreachable the
// Mirror proceeds with default state. Bootstrap returns ctx.Err() if ctx
// ends before the refresh settles; the refresh itself carries on, and a
// later Bootstrap or Start waits for it again.
func (m *Mirror) Bootstrap(ctx context.Context) error {
	return m.barrier.Run(ctx)
}

// Ready reports whether bootstrap has completed.
func (m *Mirror) Ready() bool {
	return m.barrier.Ready()
}

// Load refreshes all three channels from the API server and returns once
// every fetch has settled. Each channel is updated as soon as its own fetch
// succeeds; failures are logged and leave the channel unchanged.
func (m *Mirror) Load(ctx context.Context) {
	m.store.Load(ctx)
}

// Start bootstraps the mirror and serves the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - The initial refresh runs and is awaited before anything is served
//   - Registered callbacks start receiving values
//   - The state is refreshed at the configured interval
//   - The HTTP server starts on the configured port
//
// Returns nil on graceful shutdown, including shutdown during bootstrap.
// Returns an error if the HTTP server fails to start or if Start was already
// called. The Mirror is closed when Start returns.
func (m *Mirror) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.mu.Unlock()

	defer m.Close()

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	m.logger.Info("pkgmirror starting", "api_url", m.client.BaseURL())

	if err := m.Bootstrap(ctx); err != nil {
		m.logger.Info("pkgmirror stopped during bootstrap", "error", err)
		return nil
	}

	// callback watchers run until Start returns
	watchCtx, cancelWatch := context.WithCancel(ctx)
	var wg sync.WaitGroup
	m.startCallbacks(watchCtx, &wg)

	var scheduler *poller.Scheduler
	if m.refreshInterval > 0 {
		scheduler = poller.NewScheduler(m.store, m.refreshInterval, m.logger)
		scheduler.Start(ctx)
		m.logger.Info("refresh configured", "interval", scheduler.Interval().String())
	}

	// cleanup stops background work before the store is closed
	cleanup := func() {
		if scheduler != nil {
			scheduler.Stop()
		}
		cancelWatch()
		wg.Wait()
	}

	var metricsHandler http.Handler
	if m.registry != nil {
		metricsHandler = metrics.HTTPHandler(m.registry)
	}

	httpServer := server.NewServer(m.store, server.Config{
		Port:      m.port,
		Assets:    dashboard.Assets,
		Title:     m.title,
		Refresher: m.store,
		Metrics:   metricsHandler,
		Logger:    m.logger,
	})
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	m.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", m.port))

	<-ctx.Done()
	cleanup()
	m.logger.Info("pkgmirror stopped")
	return nil
}

func (m *Mirror) startCallbacks(ctx context.Context, wg *sync.WaitGroup) {
	for _, cb := range m.packagesCallbacks {
		cb := cb
		wg.Add(1)
		go func() {
			defer wg.Done()
			observable.Watch(ctx, m.store.Packages(), m.logger, store.ResourcePackages, cb)
		}()
	}
	for _, cb := range m.databaseCallbacks {
		cb := cb
		wg.Add(1)
		go func() {
			defer wg.Done()
			observable.Watch(ctx, m.store.DatabaseInfo(), m.logger, store.ResourceDatabase, cb)
		}()
	}
	for _, cb := range m.upgradableCallbacks {
		cb := cb
		wg.Add(1)
		go func() {
			defer wg.Done()
			observable.Watch(ctx, m.store.Upgradable(), m.logger, store.ResourceUpgradable, cb)
		}()
	}
}

// Packages returns the current package catalog. The slice is shared; treat
// it as read-only.
func (m *Mirror) Packages() []PackageRecord {
	return m.store.Packages().Get()
}

// DatabaseInfo returns the current database status.
func (m *Mirror) DatabaseInfo() DatabaseInfo {
	return m.store.DatabaseInfo().Get()
}

// Upgradable returns the current upgrade availability.
func (m *Mirror) Upgradable() UpgradableDetails {
	return m.store.Upgradable().Get()
}

// Snapshot returns the current value of all three channels.
func (m *Mirror) Snapshot() Snapshot {
	return Snapshot{
		Packages:     m.Packages(),
		DatabaseInfo: m.DatabaseInfo(),
		Upgradable:   m.Upgradable(),
	}
}

// SubscribePackages returns a channel that immediately yields the current
// catalog and then every later one, plus a function that ends the
// subscription. A receiver that falls behind skips to the latest value.
// The channel is closed when the subscription ends or the Mirror is closed.
func (m *Mirror) SubscribePackages() (<-chan []PackageRecord, func()) {
	return m.store.Packages().Subscribe()
}

// SubscribeDatabaseInfo is the database status counterpart of
// [Mirror.SubscribePackages].
func (m *Mirror) SubscribeDatabaseInfo() (<-chan DatabaseInfo, func()) {
	return m.store.DatabaseInfo().Subscribe()
}

// SubscribeUpgradable is the upgrade availability counterpart of
// [Mirror.SubscribePackages].
func (m *Mirror) SubscribeUpgradable() (<-chan UpgradableDetails, func()) {
	return m.store.Upgradable().Subscribe()
}

// Close ends all subscriptions and releases idle connections. The last
// values stay readable.
func (m *Mirror) Close() {
	m.store.Close()
	m.client.Close()
}

// APIURL returns the configured API server base URL.
func (m *Mirror) APIURL() string {
	return m.client.BaseURL()
}

// Port returns the configured HTTP port for the dashboard server.
func (m *Mirror) Port() int {
	return m.port
}

// RefreshInterval returns the configured interval between refreshes. Zero
// means periodic refresh is disabled.
func (m *Mirror) RefreshInterval() time.Duration {
	return m.refreshInterval
}
