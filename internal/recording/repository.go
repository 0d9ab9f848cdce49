package recording

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

var Schema = []string{
	`CREATE TABLE IF NOT EXISTS recordings (
	id         UUID PRIMARY KEY,
	session_id TEXT NOT NULL,
	role       TEXT NOT NULL,
	file_path  TEXT NOT NULL,
	size       BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS recordings_session_idx ON recordings (session_id)`,
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Save(ctx context.Context, m Metadata) error {
	const q = `
INSERT INTO recordings (id, session_id, role, file_path, size, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
	if _, err := r.db.ExecContext(ctx, q, m.ID, m.SessionID, m.Role, m.FilePath, m.Size, m.CreatedAt); err != nil {
		return fmt.Errorf("insert recording: %w", err)
	}
	return nil
}

func (r *PostgresRepo) ListBySession(ctx context.Context, sessionID string) ([]Metadata, error) {
	const q = `
SELECT id, session_id, role, file_path, size, created_at
FROM recordings
WHERE session_id = $1
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	out := make([]Metadata, 0)
	for rows.Next() {
		var m Metadata
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.FilePath, &m.Size, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// MemoryRepo is an in-memory Repository useful for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	items []Metadata
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Save(_ context.Context, m Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, m)
	return nil
}

func (r *MemoryRepo) ListBySession(_ context.Context, sessionID string) ([]Metadata, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Metadata
	for _, m := range r.items {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryRepo) All() []Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Metadata(nil), r.items...)
}
