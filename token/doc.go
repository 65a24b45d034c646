// Package token provides pluggable decoders for the historical bearer
// token encodings the service has issued over time.
//
// Decoders never fail: malformed or unverifiable input is routine client
// and attacker noise, so the absence of claims is a normal outcome, not an
// error. The resolver tries a current and a legacy decoder in a fixed
// order so that already-issued tokens keep working across a format
// migration.
package token
