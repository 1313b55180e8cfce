package metrics

import "time"

// Result labels for fetch outcomes.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Recorder defines observability hooks for state refreshes. Implementations
// must be safe for concurrent use.
type Recorder interface {
	// ObserveFetch records one settled fetch of resource (packages, database,
	// upgradable).
	ObserveFetch(resource string, d time.Duration, success bool)

	// ObserveLoad records the duration of a whole refresh sequence.
	ObserveLoad(d time.Duration)

	// SetCatalogSize records the number of packages in the published catalog.
	SetCatalogSize(n int)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) ObserveFetch(string, time.Duration, bool) {}
func (NoopRecorder) ObserveLoad(time.Duration)                {}
func (NoopRecorder) SetCatalogSize(int)                       {}

func resultLabel(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}
