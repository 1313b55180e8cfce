package pkgmirror

import "github.com/jpalmerr/pkgmirror/internal/model"

// Record types mirrored from the MMPM API server. They are aliases, so values
// flow between pkgmirror and its internal packages without conversion.
type (
	// PackageRecord is one installable MagicMirror package from the catalog.
	PackageRecord = model.PackageRecord

	// PackageRef identifies a package by title and repository.
	PackageRef = model.PackageRef

	// DatabaseInfo describes the state of the package database.
	DatabaseInfo = model.DatabaseInfo

	// UpgradableDetails reports what has an upgrade available.
	UpgradableDetails = model.UpgradableDetails
)

// Snapshot is the current value of all three mirrored channels.
type Snapshot struct {
	Packages     []PackageRecord   `json:"packages"`
	DatabaseInfo DatabaseInfo      `json:"database"`
	Upgradable   UpgradableDetails `json:"upgradable"`
}
