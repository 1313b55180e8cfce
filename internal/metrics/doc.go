// Package metrics records refresh outcomes of the state store.
//
// [Recorder] is the hook the store calls; [NoopRecorder] is the default when
// metrics are disabled and [PrometheusRecorder] exports to a Prometheus
// registry, served by [HTTPHandler].
package metrics
