package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Config holds connection pool settings.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open creates a pooled *sql.DB on the pgx driver and verifies
// connectivity with a ping.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Schema is the DDL for every table this package touches.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    uuid                 UUID PRIMARY KEY,
    email                TEXT NOT NULL UNIQUE,
    password_hash        TEXT NOT NULL,
    encrypted_server_key TEXT NOT NULL DEFAULT '',
    roles                JSONB NOT NULL DEFAULT '[]',
    created_at           TIMESTAMPTZ NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    uuid                      UUID PRIMARY KEY,
    user_uuid                 UUID NOT NULL REFERENCES users (uuid) ON DELETE CASCADE,
    name                      TEXT NOT NULL,
    value                     TEXT,
    server_encryption_version INT NOT NULL DEFAULT 0,
    sensitive                 BOOLEAN NOT NULL DEFAULT FALSE,
    created_at                TIMESTAMPTZ NOT NULL,
    updated_at                TIMESTAMPTZ NOT NULL,
    UNIQUE (user_uuid, name)
);

CREATE TABLE IF NOT EXISTS sessions (
    uuid                 UUID PRIMARY KEY,
    user_uuid            UUID NOT NULL,
    hashed_access_token  TEXT NOT NULL,
    hashed_refresh_token TEXT NOT NULL,
    api_version          TEXT NOT NULL DEFAULT '',
    user_agent           TEXT NOT NULL DEFAULT '',
    readonly_access      BOOLEAN NOT NULL DEFAULT FALSE,
    redact_user_agent    BOOLEAN NOT NULL DEFAULT FALSE,
    access_expiration    TIMESTAMPTZ NOT NULL,
    refresh_expiration   TIMESTAMPTZ NOT NULL,
    created_at           TIMESTAMPTZ NOT NULL,
    updated_at           TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS sessions_user_uuid_idx ON sessions (user_uuid);

CREATE TABLE IF NOT EXISTS revoked_sessions (
    uuid       UUID PRIMARY KEY,
    user_uuid  UUID NOT NULL,
    received   BOOLEAN NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema applies the DDL. Statements are idempotent.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
