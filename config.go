package authcore

import (
	"errors"
	"time"

	"github.com/notesync/authcore/crypter"
	"github.com/notesync/authcore/lockout"
	"github.com/notesync/authcore/password"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization
// and then treated as immutable.
type Config struct {
	Crypto   CryptoConfig
	Tokens   TokenConfig
	Session  SessionConfig
	Lockout  lockout.Config
	Pseudo   PseudoMFAConfig
	Password password.Params
	Audit    AuditConfig
}

// CryptoConfig holds the key material for secret protection.
type CryptoConfig struct {
	// MasterKey wraps every per-user server key. Exactly
	// crypter.KeySize bytes.
	MasterKey []byte
}

// TokenConfig holds the JWT verification secrets. JWTSecret verifies
// tokens of the current format; LegacyJWTSecret, when set, keeps tokens
// issued under the previous secret working during a migration.
type TokenConfig struct {
	JWTSecret       []byte
	LegacyJWTSecret []byte
}

// SessionConfig bounds the two token windows of issued sessions.
type SessionConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// EphemeralPrefix namespaces ephemeral session keys in Redis.
	// Empty selects the package default.
	EphemeralPrefix string
}

// PseudoMFAConfig controls the anti-enumeration behavior of MFA
// verification for unknown emails.
type PseudoMFAConfig struct {
	// Seed keys the deterministic choice of whether an unknown email
	// pretends to have MFA enabled. The same email always gets the same
	// answer under the same seed.
	Seed []byte
}

// AuditConfig controls the asynchronous audit trail.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

func defaultConfig() Config {
	return Config{
		Session: SessionConfig{
			AccessTTL:  90 * 24 * time.Hour,
			RefreshTTL: 365 * 24 * time.Hour,
		},
		Lockout: lockout.Config{
			Threshold: 6,
			Window:    time.Hour,
		},
		Password: password.DefaultParams(),
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
	}
}

// Validate checks the parts of the configuration that cannot be
// defaulted.
func (c *Config) Validate() error {
	if len(c.Crypto.MasterKey) != crypter.KeySize {
		return errors.New("master key must be exactly 32 bytes")
	}
	if len(c.Tokens.JWTSecret) == 0 {
		return errors.New("jwt secret required")
	}
	if c.Session.AccessTTL <= 0 {
		return errors.New("session access TTL must be positive")
	}
	if c.Session.RefreshTTL <= c.Session.AccessTTL {
		return errors.New("session refresh TTL must exceed access TTL")
	}
	if c.Lockout.Threshold < 0 {
		return errors.New("lockout threshold must not be negative")
	}
	if c.Lockout.Threshold > 0 && c.Lockout.Window <= 0 {
		return errors.New("lockout window must be positive when lockout is enabled")
	}
	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Crypto.MasterKey = cloneBytes(cfg.Crypto.MasterKey)
	out.Tokens.JWTSecret = cloneBytes(cfg.Tokens.JWTSecret)
	out.Tokens.LegacyJWTSecret = cloneBytes(cfg.Tokens.LegacyJWTSecret)
	out.Pseudo.Seed = cloneBytes(cfg.Pseudo.Seed)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
