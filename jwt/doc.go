// Package jwt issues and inspects JWT access tokens.
//
// [Manager] signs and strictly verifies tokens; it backs the fake backend in
// package authtest. [PeekExpiry] reads the exp claim without verification so
// a client can report when its current access token lapses; the server stays
// the only authority on validity.
package jwt
