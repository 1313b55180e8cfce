// Package bootstrap gates application startup on a set of asynchronous
// initialization hooks.
//
// A [Barrier] collects named hooks, runs each of them exactly once and
// reports completion only after every hook has settled. pkgmirror registers
// the store's first refresh as a hook and serves nothing until the barrier
// is done.
package bootstrap
