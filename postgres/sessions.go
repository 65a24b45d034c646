package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/notesync/authcore/session"
)

const sessionColumns = `uuid, user_uuid, hashed_access_token, hashed_refresh_token,
	api_version, user_agent, readonly_access, redact_user_agent,
	access_expiration, refresh_expiration, created_at, updated_at`

// SessionRepository persists long-lived sessions.
type SessionRepository struct {
	db *sql.DB
}

// NewSessionRepository creates a [SessionRepository] on the given handle.
func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Insert stores a new session row.
func (r *SessionRepository) Insert(ctx context.Context, sess *session.Session) error {
	query := `INSERT INTO sessions (` + sessionColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := r.db.ExecContext(ctx, query,
		sess.UUID, sess.UserUUID, sess.HashedAccessToken, sess.HashedRefreshToken,
		sess.APIVersion, sess.UserAgent, sess.ReadonlyAccess, sess.RedactUserAgent,
		sess.AccessExpiration, sess.RefreshExpiration,
		sess.CreatedAt, sess.UpdatedAt,
	); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update rewrites the rotating columns of an existing session.
func (r *SessionRepository) Update(ctx context.Context, sess *session.Session) error {
	query := `UPDATE sessions
	          SET hashed_access_token = $2, hashed_refresh_token = $3,
	              access_expiration = $4, refresh_expiration = $5, updated_at = $6
	          WHERE uuid = $1`
	if _, err := r.db.ExecContext(ctx, query,
		sess.UUID, sess.HashedAccessToken, sess.HashedRefreshToken,
		sess.AccessExpiration, sess.RefreshExpiration, sess.UpdatedAt,
	); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByUUID returns the session with the given UUID, or nil when none
// exists.
func (r *SessionRepository) FindByUUID(ctx context.Context, sessionUUID string) (*session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE uuid = $1`

	sess := &session.Session{}
	err := r.db.QueryRowContext(ctx, query, sessionUUID).Scan(
		&sess.UUID, &sess.UserUUID, &sess.HashedAccessToken, &sess.HashedRefreshToken,
		&sess.APIVersion, &sess.UserAgent, &sess.ReadonlyAccess, &sess.RedactUserAgent,
		&sess.AccessExpiration, &sess.RefreshExpiration,
		&sess.CreatedAt, &sess.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sess, nil
}

// FindAllByUserUUID returns every persistent session a user holds.
func (r *SessionRepository) FindAllByUserUUID(ctx context.Context, userUUID string) ([]*session.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_uuid = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, userUUID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var sessions []*session.Session
	for rows.Next() {
		sess := &session.Session{}
		if err := rows.Scan(
			&sess.UUID, &sess.UserUUID, &sess.HashedAccessToken, &sess.HashedRefreshToken,
			&sess.APIVersion, &sess.UserAgent, &sess.ReadonlyAccess, &sess.RedactUserAgent,
			&sess.AccessExpiration, &sess.RefreshExpiration,
			&sess.CreatedAt, &sess.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return sessions, nil
}

// Delete removes a session row. Deleting a missing row is not an error.
func (r *SessionRepository) Delete(ctx context.Context, sessionUUID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE uuid = $1`, sessionUUID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
