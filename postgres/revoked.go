package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/notesync/authcore/session"
)

// RevokedSessionRepository persists revocation tombstones.
type RevokedSessionRepository struct {
	db *sql.DB
}

// NewRevokedSessionRepository creates a [RevokedSessionRepository] on the
// given handle.
func NewRevokedSessionRepository(db *sql.DB) *RevokedSessionRepository {
	return &RevokedSessionRepository{db: db}
}

// Insert stores a tombstone. Revoking an already-revoked session keeps
// the original tombstone untouched.
func (r *RevokedSessionRepository) Insert(ctx context.Context, revoked *session.RevokedSession) error {
	query := `INSERT INTO revoked_sessions (uuid, user_uuid, received, created_at)
	          VALUES ($1, $2, $3, $4)
	          ON CONFLICT (uuid) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query,
		revoked.UUID, revoked.UserUUID, revoked.Received, revoked.CreatedAt,
	); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByUUID returns the tombstone for a session, or nil when the session
// was never revoked.
func (r *RevokedSessionRepository) FindByUUID(ctx context.Context, sessionUUID string) (*session.RevokedSession, error) {
	query := `SELECT uuid, user_uuid, received, created_at FROM revoked_sessions WHERE uuid = $1`

	revoked := &session.RevokedSession{}
	err := r.db.QueryRowContext(ctx, query, sessionUUID).Scan(
		&revoked.UUID, &revoked.UserUUID, &revoked.Received, &revoked.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return revoked, nil
}

// MarkAsReceived flips the received flag. The conditional update makes
// concurrent marks agree on a single winner: only the call whose UPDATE
// touches the row reports true.
func (r *RevokedSessionRepository) MarkAsReceived(ctx context.Context, sessionUUID string) (bool, error) {
	query := `UPDATE revoked_sessions SET received = TRUE WHERE uuid = $1 AND received = FALSE`

	result, err := r.db.ExecContext(ctx, query, sessionUUID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return affected > 0, nil
}
