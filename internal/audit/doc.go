// Package audit dispatches client audit events (logins, logouts, refreshes,
// forced logouts) to a caller-supplied Sink on a background goroutine.
//
// The package owns buffering and delivery only. Which events exist, and what
// they contain, is decided by the authclient package.
package audit
