// Package server provides the HTTP surface for pkgmirror.
//
// This package is internal to pkgmirror and handles all HTTP concerns:
//
//   - Dashboard serving: Serves the embedded HTML dashboard at "/"
//   - REST API: JSON snapshots of each mirrored value and of all three at once
//   - Server-Sent Events: one named event per value at "/api/sse"
//   - WebSocket: the same updates as JSON frames at "/api/ws"
//   - Refresh: POST "/api/refresh" runs a refresh and answers once it settles
//   - Metrics: Prometheus exposition at "/metrics" when enabled
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the pkgmirror library should not need to interact with this
// package directly. The server is started by pkgmirror.Mirror.Start once
// bootstrap has completed.
package server
