// Package session manages the lifecycle of sync-client sessions: opaque
// token issuance, lookup, refresh rotation, and revocation.
//
// # Token shape
//
// Access and refresh tokens are opaque bearer strings. Each encodes the
// session UUID plus a random secret; only a SHA-256 digest of the token is
// persisted, so a database leak does not yield usable credentials.
//
// # Storage tiers
//
// Regular sessions live in the relational store. Ephemeral sessions (issued
// when a client asks not to be remembered) live only in Redis and vanish
// with their TTL. Revoked sessions are tombstones kept in the relational
// store so that a client presenting a revoked token can be told exactly
// once that its session was revoked.
//
// # Architecture boundaries
//
// This package owns session persistence and the token codec. It does NOT
// verify passwords, interpret JWTs, or decide authentication outcomes.
package session
