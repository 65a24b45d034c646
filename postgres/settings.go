package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	authcore "github.com/notesync/authcore"
)

const settingColumns = `uuid, user_uuid, name, value, server_encryption_version, sensitive, created_at, updated_at`

// SettingRepository persists per-user settings, including secret-bearing
// ones like the TOTP seed.
type SettingRepository struct {
	db *sql.DB
}

// NewSettingRepository creates a [SettingRepository] on the given handle.
func NewSettingRepository(db *sql.DB) *SettingRepository {
	return &SettingRepository{db: db}
}

// FindOneByNameAndUserUUID returns the named setting for a user, or nil
// when the user never stored it.
func (r *SettingRepository) FindOneByNameAndUserUUID(ctx context.Context, name, userUUID string) (*authcore.Setting, error) {
	query := `SELECT ` + settingColumns + ` FROM settings WHERE user_uuid = $1 AND name = $2`
	return r.scanSetting(r.db.QueryRowContext(ctx, query, userUUID, name))
}

// FindAllByUserUUID returns every setting stored for a user.
func (r *SettingRepository) FindAllByUserUUID(ctx context.Context, userUUID string) ([]*authcore.Setting, error) {
	query := `SELECT ` + settingColumns + ` FROM settings WHERE user_uuid = $1 ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, userUUID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var settings []*authcore.Setting
	for rows.Next() {
		setting, err := r.scanSettingRow(rows)
		if err != nil {
			return nil, err
		}
		settings = append(settings, setting)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return settings, nil
}

// Upsert inserts the setting or, when the user already has one under the
// same name, replaces its value and encryption metadata.
func (r *SettingRepository) Upsert(ctx context.Context, setting *authcore.Setting) error {
	query := `INSERT INTO settings (uuid, user_uuid, name, value, server_encryption_version, sensitive, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (user_uuid, name) DO UPDATE
	          SET value = EXCLUDED.value,
	              server_encryption_version = EXCLUDED.server_encryption_version,
	              sensitive = EXCLUDED.sensitive,
	              updated_at = EXCLUDED.updated_at`

	if _, err := r.db.ExecContext(ctx, query,
		setting.UUID, setting.UserUUID, setting.Name, nullableValue(setting.Value),
		setting.ServerEncryptionVersion, setting.Sensitive,
		setting.CreatedAt, setting.UpdatedAt,
	); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SettingRepository) scanSetting(row *sql.Row) (*authcore.Setting, error) {
	setting := &authcore.Setting{}
	var value sql.NullString

	err := row.Scan(
		&setting.UUID, &setting.UserUUID, &setting.Name, &value,
		&setting.ServerEncryptionVersion, &setting.Sensitive,
		&setting.CreatedAt, &setting.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if value.Valid {
		setting.Value = &value.String
	}
	return setting, nil
}

func (r *SettingRepository) scanSettingRow(rows *sql.Rows) (*authcore.Setting, error) {
	setting := &authcore.Setting{}
	var value sql.NullString

	err := rows.Scan(
		&setting.UUID, &setting.UserUUID, &setting.Name, &value,
		&setting.ServerEncryptionVersion, &setting.Sensitive,
		&setting.CreatedAt, &setting.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	if value.Valid {
		setting.Value = &value.String
	}
	return setting, nil
}

func nullableValue(value *string) sql.NullString {
	if value == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *value, Valid: true}
}
