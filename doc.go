// Package authcore is the authentication and secret-protection core of a
// multi-tenant note synchronization service.
//
// It resolves every inbound credential (current-format JWTs, legacy
// JWTs, and opaque session tokens) into a single authentication outcome,
// guards password sign-in with failed-attempt lockout, verifies TOTP
// second factors without leaking account existence, and keeps per-user
// secrets sealed under envelope encryption.
//
// The package is designed for concurrent server workloads: Core methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authcore is the public surface. Storage lives behind the repository
// interfaces ([UserRepository], [SettingRepository], session.Repository)
// so callers choose their own backends; the postgres sub-package provides
// the reference implementations. The crypter, session, token, lockout,
// and password sub-packages never import authcore.
//
// # What this package must NOT do
//
//   - Expose plaintext secrets, unwrapped keys, or token digests in its
//     public API.
//   - Treat an unknown token, user, or setting as an error: absence is a
//     routine outcome and resolves to nil.
package authcore
