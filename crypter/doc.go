// Package crypter implements the envelope encryption used to protect
// at-rest secrets: per-user server keys, MFA secrets, and sensitive
// setting values.
//
// Values are encrypted with XChaCha20-Poly1305 under a per-user data key.
// The data key itself is stored wrapped under the process-wide master key.
// Encrypted values are persisted as versioned envelope strings of the form
// "1:<ciphertext>:<nonce>" (base64-encoded fields, ":" delimiter).
package crypter
