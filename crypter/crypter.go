package crypter

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// EnvelopeVersion is the only encryption scheme version this build writes
// and accepts.
const EnvelopeVersion = 1

const envelopeDelimiter = ":"

var (
	// ErrUnsupportedEncryptionVersion is returned when an envelope declares
	// a version this build does not support. It indicates data corruption or
	// a deployed-version mismatch and is never silently coerced.
	ErrUnsupportedEncryptionVersion = errors.New("unsupported encryption version")

	// ErrInvalidEnvelope is returned for envelopes that do not parse as
	// "version:ciphertext:nonce".
	ErrInvalidEnvelope = errors.New("invalid encrypted envelope")

	// ErrDecryptionFailed is returned when authentication of the ciphertext
	// fails (wrong key, truncated or tampered data).
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrInvalidKey is returned when a key has the wrong length for the
	// underlying AEAD.
	ErrInvalidKey = errors.New("invalid encryption key")
)

// KeySize is the required key length in bytes, for both the master key and
// per-user data keys.
const KeySize = chacha20poly1305.KeySize

// Encrypt seals plaintext under key with a freshly generated nonce and
// returns the versioned envelope string. aad is bound into the
// authentication tag; it may be nil.
func Encrypt(plaintext, key, aad []byte) (string, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	ciphertext := aead.Seal(nil, nonce, plaintext, aad)

	return strings.Join([]string{
		strconv.Itoa(EnvelopeVersion),
		base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(nonce),
	}, envelopeDelimiter), nil
}

// Decrypt opens an envelope produced by Encrypt. It fails with
// ErrUnsupportedEncryptionVersion when the declared version is not
// EnvelopeVersion, regardless of the ciphertext content.
func Decrypt(envelope string, key, aad []byte) ([]byte, error) {
	version, ciphertext, nonce, err := parseEnvelope(envelope)
	if err != nil {
		return nil, err
	}
	if version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedEncryptionVersion, version)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(nonce) != aead.NonceSize() {
		return nil, ErrInvalidEnvelope
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

func parseEnvelope(envelope string) (int, []byte, []byte, error) {
	parts := strings.Split(envelope, envelopeDelimiter)
	if len(parts) != 3 {
		return 0, nil, nil, ErrInvalidEnvelope
	}

	version, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, nil, nil, ErrInvalidEnvelope
	}

	ciphertext, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return 0, nil, nil, ErrInvalidEnvelope
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[2])
	if err != nil {
		return 0, nil, nil, ErrInvalidEnvelope
	}

	return version, ciphertext, nonce, nil
}
