// Package poller drives periodic refreshes of the pkgmirror store.
//
// This package is internal to pkgmirror. The first refresh happens during
// bootstrap; the [Scheduler] only covers the refreshes after it, calling its
// [Loader] once per interval until stopped.
//
// The main components are:
//
//   - [Scheduler]: runs refresh cycles on a ticker
//   - [Loader]: the refresh operation, satisfied by *store.Store
//   - [Cycle]: outcome of a single refresh cycle
//
// Users of the pkgmirror library should not need to interact with this
// package directly. Configuration is done through pkgmirror.WithRefreshInterval.
package poller
