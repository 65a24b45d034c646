package token

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionTokenClaims is the claim set this service consumes from a signed
// bearer token. UserUUID is the only claim every decoder must produce.
type SessionTokenClaims struct {
	UserUUID    string `json:"user_uuid"`
	SessionUUID string `json:"session_uuid,omitempty"`
	jwt.RegisteredClaims
}

// Decoder decodes a raw credential string into claims. Implementations
// must return nil for anything that does not verify under their secret,
// and must never panic on malformed input.
type Decoder interface {
	DecodeToken(raw string) *SessionTokenClaims
}

// JWTDecoder verifies HS256-signed tokens under a single shared secret.
// Each historical token format gets its own decoder instance with its own
// secret.
type JWTDecoder struct {
	secret []byte
}

// NewJWTDecoder creates a decoder for the given signing secret.
func NewJWTDecoder(secret []byte) *JWTDecoder {
	key := make([]byte, len(secret))
	copy(key, secret)
	return &JWTDecoder{secret: key}
}

// DecodeToken returns the verified claims, or nil when the token is
// malformed, expired, signed with a different key, or missing a user id.
func (d *JWTDecoder) DecodeToken(raw string) *SessionTokenClaims {
	if raw == "" || len(d.secret) == 0 {
		return nil
	}

	claims := &SessionTokenClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return d.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return nil
	}
	if claims.UserUUID == "" {
		return nil
	}

	return claims
}
