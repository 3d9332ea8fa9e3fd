// Package authtest provides an in-process fake of a token backend for
// tests and local experiments: login, rotating refresh tokens, a bearer
// guard and knobs to expire tokens or break the refresh endpoint.
package authtest
