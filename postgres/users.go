package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	authcore "github.com/notesync/authcore"
)

const userColumns = `uuid, email, password_hash, encrypted_server_key, roles, created_at, updated_at`

// UserRepository persists user records.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a [UserRepository] on the given handle.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByUUID returns the user with the given UUID, or nil when none
// exists.
func (r *UserRepository) FindByUUID(ctx context.Context, userUUID string) (*authcore.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE uuid = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, userUUID))
}

// FindByEmail returns the user registered under the given email, or nil
// when none exists.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*authcore.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanUser(r.db.QueryRowContext(ctx, query, email))
}

// Insert stores a new user record.
func (r *UserRepository) Insert(ctx context.Context, user *authcore.User) error {
	roles, err := json.Marshal(user.Roles)
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}

	query := `INSERT INTO users (uuid, email, password_hash, encrypted_server_key, roles, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.ExecContext(ctx, query,
		user.UUID, user.Email, user.PasswordHash, user.EncryptedServerKey, roles,
		user.CreatedAt, user.UpdatedAt,
	); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update rewrites the mutable columns of an existing user.
func (r *UserRepository) Update(ctx context.Context, user *authcore.User) error {
	roles, err := json.Marshal(user.Roles)
	if err != nil {
		return fmt.Errorf("encode roles: %w", err)
	}

	query := `UPDATE users
	          SET email = $2, password_hash = $3, encrypted_server_key = $4, roles = $5, updated_at = $6
	          WHERE uuid = $1`
	if _, err := r.db.ExecContext(ctx, query,
		user.UUID, user.Email, user.PasswordHash, user.EncryptedServerKey, roles, user.UpdatedAt,
	); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *UserRepository) scanUser(row *sql.Row) (*authcore.User, error) {
	user := &authcore.User{}
	var roles []byte

	err := row.Scan(
		&user.UUID, &user.Email, &user.PasswordHash, &user.EncryptedServerKey, &roles,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if len(roles) > 0 {
		if err := json.Unmarshal(roles, &user.Roles); err != nil {
			return nil, fmt.Errorf("decode roles: %w", err)
		}
	}
	return user, nil
}
