// Package model defines the records mirrored from the MMPM API server.
//
// Values of these types are treated as immutable snapshots: a refresh replaces
// a whole value, it never mutates one in place.
package model

// PackageRecord is one installable MagicMirror package from the catalog.
type PackageRecord struct {
	// Title is the package name and its identity within the catalog.
	Title string `json:"title"`

	Author string `json:"author"`

	// Repository is the package's source repository URL.
	Repository string `json:"repository"`

	Description string `json:"description"`

	Category string `json:"category"`

	// Directory is the install location relative to the MagicMirror modules
	// directory. Empty when the package is not installed.
	Directory string `json:"directory"`

	IsInstalled  bool `json:"is_installed"`
	IsUpgradable bool `json:"is_upgradable"`
}

// Ref returns the identity of the package.
func (p PackageRecord) Ref() PackageRef {
	return PackageRef{Title: p.Title, Repository: p.Repository}
}

// PackageRef identifies a package without carrying its full record.
type PackageRef struct {
	Title      string `json:"title"`
	Repository string `json:"repository"`
}

// DatabaseInfo describes the state of the catalog database on the server.
type DatabaseInfo struct {
	// LastUpdate is the server's timestamp of the last catalog refresh, passed
	// through verbatim.
	LastUpdate string `json:"last_update"`

	// Categories is the number of package categories in the catalog.
	Categories int `json:"categories"`

	// Packages is the number of packages in the catalog.
	Packages int `json:"packages"`
}

// UpgradableDetails reports which components have updates available.
type UpgradableDetails struct {
	// Manager is true when a newer MMPM release is available.
	Manager bool `json:"mmpm"`

	// Core is true when a newer MagicMirror release is available.
	Core bool `json:"MagicMirror"`

	// Packages lists, in server order, the packages with updates available.
	Packages []PackageRef `json:"packages"`
}

// EmptyCatalog returns the catalog value used before any successful refresh.
func EmptyCatalog() []PackageRecord {
	return []PackageRecord{}
}

// EmptyUpgradable returns the upgrade record used before any successful
// refresh: nothing has an update and the package list is empty, not nil.
func EmptyUpgradable() UpgradableDetails {
	return UpgradableDetails{Packages: []PackageRef{}}
}
