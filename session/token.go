package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// TokenVersion is the only opaque token format version this build issues
// and accepts.
const TokenVersion = "1"

const tokenSecretSize = 32

// ErrInvalidToken is returned for tokens that do not parse as
// "version:session-uuid:secret" after base64 decoding.
var ErrInvalidToken = errors.New("invalid session token")

// GenerateToken mints an opaque token bound to the given session UUID.
// The embedded secret is 256 bits of fresh randomness.
func GenerateToken(sessionUUID string) (string, error) {
	secret := make([]byte, tokenSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return "", err
	}

	raw := strings.Join([]string{
		TokenVersion,
		sessionUUID,
		base64.RawURLEncoding.EncodeToString(secret),
	}, ":")

	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// ParseToken extracts the session UUID from an opaque token. The secret
// is not returned; callers verify tokens by digest comparison instead.
func ParseToken(token string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidToken
	}

	parts := strings.Split(string(raw), ":")
	if len(parts) != 3 || parts[0] != TokenVersion || parts[1] == "" || parts[2] == "" {
		return "", ErrInvalidToken
	}

	return parts[1], nil
}

// HashToken returns the hex SHA-256 digest of a token, the only form in
// which tokens are persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
