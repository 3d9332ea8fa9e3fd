// Package authclient is an HTTP client for token-authenticated backends.
//
// A [Client] attaches the current access token to every request. When the
// backend answers 401, the client refreshes the token pair once for the whole
// burst of concurrent failures, retries each affected request once, and
// forces a logout when the refresh is impossible or fails.
//
// # Architecture boundaries
//
// authclient is the public surface: [Client], [Builder], [Config] and value
// types. Credential state lives in package session, refresh serialization in
// package refresh. The Client is the only component that performs backend
// I/O.
//
// # What this package must NOT do
//
//   - Retry a request more than once.
//   - Write tokens or passwords into logs, metrics or audit events.
//   - Mutate the session store other than through the session controller.
package authclient
