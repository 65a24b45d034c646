package authcore

import (
	"context"
	"log/slog"
	"time"

	"github.com/notesync/authcore/crypter"
	"github.com/notesync/authcore/lockout"
	"github.com/notesync/authcore/password"
	"github.com/notesync/authcore/session"
	"github.com/notesync/authcore/token"
)

// Core is the assembled authentication engine. Construct it through
// [Builder.Build]; all methods are safe for concurrent use afterwards.
type Core struct {
	config Config
	logger *slog.Logger

	keystore *crypter.KeyStore
	decoders []token.Decoder
	sessions *session.Service
	guard    *lockout.Guard
	hasher   *password.Hasher

	// decoyHash is verified against when the email matches no user, so
	// both branches pay the same key-derivation cost.
	decoyHash string

	users    UserRepository
	settings SettingRepository

	audit    *auditDispatcher
	metrics  *Metrics
	selector BooleanSelector

	now func() time.Time
}

// Sessions exposes the session service for callers that manage sessions
// directly (refresh endpoints, admin tooling).
func (c *Core) Sessions() *session.Service {
	return c.sessions
}

// Keystore exposes the envelope-encryption helper bound to the master
// key.
func (c *Core) Keystore() *crypter.KeyStore {
	return c.keystore
}

// AuditDropped reports how many audit events were discarded under
// backpressure since startup.
func (c *Core) AuditDropped() uint64 {
	return c.audit.Dropped()
}

// Close flushes and stops the audit dispatcher. The Core must not be
// used afterwards.
func (c *Core) Close() {
	c.audit.Close()
}

func (c *Core) emit(ctx context.Context, event AuditEvent) {
	c.audit.Emit(ctx, event)
}
