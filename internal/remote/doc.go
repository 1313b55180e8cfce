// Package remote is the HTTP client for the MMPM API server.
//
// The API exposes three read operations used by the state store:
//
//   - [Client.FetchPackages]: the package catalog
//   - [Client.FetchDatabaseInfo]: the catalog database status record
//   - [Client.FetchUpgradable]: which components have updates available
//
// Every endpoint wraps its response in an envelope of the form
// {"code": 200, "message": <payload>}. A code other than 200 marks a failure,
// and message then holds the error text. Each fetch returns a [Result] that
// carries either the decoded payload or the failure code and message.
package remote
