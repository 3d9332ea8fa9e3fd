// Package refresh coordinates access-token refreshes for concurrent callers.
//
// # Model
//
// A [Gate] is the refresh lock: at most one refresh holds it at a time.
// Callers take a [Ticket] before sending a request; when the request comes
// back 401 the ticket tells [Gate.Acquire] whether a refresh has already
// completed since the request went out, in which case the caller shares that
// result instead of refreshing again.
//
// [Coordinator] runs the per-request algorithm: wait for idle, send, and on
// 401 either perform the single refresh (committing the new pair or forcing
// logout) or wait for the one in flight, then retry the request at most once.
//
// # Architecture boundaries
//
// This package knows nothing about HTTP or token formats. The transport, the
// refresh endpoint and the credential writer are injected.
//
// # What this package must NOT do
//
//   - Retry a request more than once.
//   - Issue a second refresh for a burst of 401s that one refresh satisfies.
//   - Hold the gate after a refresh attempt returns or panics.
package refresh
