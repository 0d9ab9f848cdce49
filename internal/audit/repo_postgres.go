package audit

import (
	"context"
	"database/sql"
	"fmt"
)

var Schema = []string{
	`CREATE TABLE IF NOT EXISTS audit_events (
	id         UUID PRIMARY KEY,
	type       TEXT NOT NULL,
	actor      TEXT,
	actor_role TEXT,
	ip_address TEXT,
	session_id TEXT,
	message    TEXT,
	metadata   JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS audit_events_session_idx ON audit_events (session_id)`,
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, actor, actor_role, ip_address, session_id, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9)
`
	if _, err := r.db.ExecContext(ctx, q,
		e.ID, e.Type, e.Actor, e.ActorRole, e.IPAddress, e.SessionID, e.Message, e.Metadata, e.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
