package remote

import (
	"net/http"
	"time"
)

// Result is the tagged outcome of one fetch against the MMPM API.
//
// A Result is a success when StatusCode is 200; Payload is then meaningful.
// Any other code is a failure and Message carries a human-readable reason.
// StatusCode 0 means no usable response was received (transport failure,
// timeout or an undecodable body).
type Result[T any] struct {
	Payload    T
	StatusCode int
	Message    string

	// Latency is the wall time the fetch took.
	Latency time.Duration
}

// OK reports whether the result is a success.
func (r Result[T]) OK() bool {
	return r.StatusCode == http.StatusOK
}

// Success returns a successful Result carrying payload.
func Success[T any](payload T) Result[T] {
	return Result[T]{Payload: payload, StatusCode: http.StatusOK}
}

// Failure returns a failed Result with the given code and message.
func Failure[T any](code int, message string) Result[T] {
	return Result[T]{StatusCode: code, Message: message}
}
