// Package store mirrors MMPM server state into observable values.
//
// This package is internal to pkgmirror. It holds the current, best-known
// values of three independent pieces of remote state and lets any number of
// observers react to changes without polling.
//
// The main components are:
//
//   - [Store]: owns the packages, database-info and upgradable values
//   - [API]: the remote operations a Store refreshes from
//   - [Store.Load]: one refresh of all three values
//
// Each value always holds its last-known-good content. A failed fetch is
// logged and leaves its value untouched; it never affects the other two
// values and never surfaces as an error from Load.
//
// Users of the pkgmirror library should not need to interact with this
// package directly. The store is created and owned by pkgmirror.Mirror.
package store
