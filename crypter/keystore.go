package crypter

import (
	"crypto/rand"
	"errors"
)

// ErrMissingUserKey is returned when a user record carries no wrapped
// server key. Users are created with one, so this indicates corrupt data.
var ErrMissingUserKey = errors.New("user has no encrypted server key")

// KeyStore wraps and unwraps per-user data keys under the process-wide
// master key, and encrypts/decrypts values under the per-user key.
//
// The two-level indirection (master key wraps the user key, the user key
// wraps each value) bounds the blast radius of a single leaked value and
// allows rotating a user's key without touching the master key.
type KeyStore struct {
	masterKey []byte
}

// NewKeyStore creates a KeyStore. The master key must be exactly KeySize
// bytes; the caller treats a failure here as a fatal configuration error.
func NewKeyStore(masterKey []byte) (*KeyStore, error) {
	if len(masterKey) != KeySize {
		return nil, ErrInvalidKey
	}
	key := make([]byte, KeySize)
	copy(key, masterKey)
	return &KeyStore{masterKey: key}, nil
}

// WrapNewUserKey generates a fresh 256-bit per-user data key and returns it
// wrapped under the master key, ready to be stored as the user's
// encrypted server key.
func (k *KeyStore) WrapNewUserKey() (string, error) {
	userKey := make([]byte, KeySize)
	if _, err := rand.Read(userKey); err != nil {
		return "", err
	}
	return Encrypt(userKey, k.masterKey, nil)
}

// UnwrapUserKey decrypts a wrapped per-user key envelope under the master
// key and returns the raw key.
func (k *KeyStore) UnwrapUserKey(encryptedServerKey string) ([]byte, error) {
	if encryptedServerKey == "" {
		return nil, ErrMissingUserKey
	}
	return Decrypt(encryptedServerKey, k.masterKey, nil)
}

// EncryptForUser encrypts value under the user's data key, unwrapping it
// from the given envelope first. A fresh nonce is generated per call.
func (k *KeyStore) EncryptForUser(value string, encryptedServerKey string) (string, error) {
	userKey, err := k.UnwrapUserKey(encryptedServerKey)
	if err != nil {
		return "", err
	}
	return Encrypt([]byte(value), userKey, nil)
}

// DecryptForUser decrypts an envelope produced by EncryptForUser.
func (k *KeyStore) DecryptForUser(envelope string, encryptedServerKey string) (string, error) {
	userKey, err := k.UnwrapUserKey(encryptedServerKey)
	if err != nil {
		return "", err
	}
	plaintext, err := Decrypt(envelope, userKey, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
