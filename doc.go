// Package pkgmirror keeps a live, observable copy of a MagicMirror Package
// Manager (MMPM) API server's state and serves it as a real-time dashboard.
//
// pkgmirror mirrors three independent pieces of remote state:
//
//   - the package catalog ([PackageRecord] values)
//   - the package database status ([DatabaseInfo])
//   - upgrade availability for MMPM, MagicMirror and installed packages
//     ([UpgradableDetails])
//
// Each is held as its last-known-good value and can be read at any time or
// subscribed to. A refresh fetches all three concurrently and publishes each
// one as soon as its own fetch succeeds. A failed fetch is logged and leaves
// its value untouched; refreshes never return errors.
//
// # Quick Start
//
//	m, _ := pkgmirror.New(pkgmirror.WithAPIURL("http://localhost:7891"))
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	m.Start(ctx) // blocks until context is cancelled
//
// # Startup
//
// [Mirror.Start] performs the initial refresh and waits for it to settle
// before serving anything, so the first page a browser sees already reflects
// the API server. An unreachable API server does not prevent startup; the
// dashboard comes up with empty state and fills in on the next successful
// refresh.
//
// # Embedding
//
// The state is usable without the HTTP server:
//
//	m, _ := pkgmirror.New()
//	defer m.Close()
//	_ = m.Bootstrap(ctx)
//
//	updates, stop := m.SubscribeUpgradable()
//	defer stop()
//	for u := range updates {
//	    fmt.Println("MagicMirror upgradable:", u.Core)
//	}
//
// # Architecture
//
// pkgmirror consists of several internal packages (under internal/):
//
//   - internal/observable: replay-of-latest values with non-blocking fan-out
//   - internal/remote: HTTP client for the MMPM API
//   - internal/store: the three mirrored values and the refresh operation
//   - internal/bootstrap: startup barrier awaiting the initial refresh
//   - internal/poller: periodic refresh scheduler
//   - internal/server: dashboard, JSON API, Server-Sent Events and WebSocket
//   - internal/metrics: Prometheus instrumentation
//   - dashboard: Embedded web UI assets
//
// The internal packages are not part of the public API and may change
// without notice.
package pkgmirror
