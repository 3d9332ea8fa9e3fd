// Package session holds the client-side credential state: the current access
// token, refresh token and user profile.
//
// # Components
//
//   - [Store]: in-memory credential store with partial-update semantics.
//   - [Controller]: the only writer of the [Store]; reacts to login, profile
//     fetch, refresh and logout outcomes, persists and broadcasts changes.
//   - [Persister]: optional durable backing ([RedisPersister], [FilePersister]).
//
// # Binary encoding
//
// Persisted sessions use a compact versioned binary format (v1–v2) with
// forward migration on read. New versions add fields but never reinterpret
// old ones.
//
// # Architecture boundaries
//
// This package does NOT perform HTTP calls or decide when a refresh happens;
// the refresh coordinator and the client own that.
package session
