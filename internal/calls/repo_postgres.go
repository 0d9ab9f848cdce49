package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"live-support/pkg/utils"

	sq "github.com/Masterminds/squirrel"
)

// Schema is the bootstrap DDL for calls and the daily quota counter.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS calls (
	id          UUID PRIMARY KEY,
	session_id  TEXT NOT NULL UNIQUE,
	caller_id   TEXT NOT NULL,
	caller_name TEXT NOT NULL,
	agent_id    TEXT,
	status      TEXT NOT NULL,
	start_time  TIMESTAMPTZ NOT NULL,
	end_time    TIMESTAMPTZ,
	duration    INTEGER
)`,
	`CREATE INDEX IF NOT EXISTS calls_start_time_idx ON calls (start_time DESC)`,
	`CREATE INDEX IF NOT EXISTS calls_status_idx ON calls (status)`,
	// One row per UTC day. The row lock taken by the upsert serializes
	// concurrent accepts on the same day.
	`CREATE TABLE IF NOT EXISTS daily_call_quota (
	day      DATE PRIMARY KEY,
	accepted INTEGER NOT NULL
)`,
}

const callColumns = "id, session_id, caller_id, caller_name, agent_id, status, start_time, end_time, duration"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c        Call
		agentID  sql.NullString
		endTime  sql.NullTime
		duration sql.NullInt64
	)
	if err := row.Scan(
		&c.ID,
		&c.SessionID,
		&c.CallerID,
		&c.CallerName,
		&agentID,
		&c.Status,
		&c.StartTime,
		&endTime,
		&duration,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrCallNotFound
		}
		return Call{}, err
	}
	c.AgentID = agentID.String
	if endTime.Valid {
		t := endTime.Time
		c.EndTime = &t
	}
	if duration.Valid {
		d := int(duration.Int64)
		c.DurationSeconds = &d
	}
	return c, nil
}

func (r *PostgresRepo) Create(ctx context.Context, c Call) error {
	const q = `
INSERT INTO calls (id, session_id, caller_id, caller_name, status, start_time)
VALUES ($1, $2, $3, $4, $5, $6)
`
	if _, err := r.db.ExecContext(ctx, q, c.ID, c.SessionID, c.CallerID, c.CallerName, c.Status, c.StartTime); err != nil {
		if utils.IsUniqueViolation(err) {
			return ErrSessionExists
		}
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

func (r *PostgresRepo) GetBySession(ctx context.Context, sessionID string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE session_id = $1`
	return scanCall(r.db.QueryRowContext(ctx, q, sessionID))
}

func lockCall(ctx context.Context, tx *sql.Tx, sessionID string) (Call, error) {
	// Row lock serializes respond/end on the same session.
	q := `SELECT ` + callColumns + ` FROM calls WHERE session_id = $1 FOR UPDATE`
	return scanCall(tx.QueryRowContext(ctx, q, sessionID))
}

// consumeQuota increments the day's counter unless it is already at limit.
// The conditional upsert is the check and the increment in one statement.
func consumeQuota(ctx context.Context, tx *sql.Tx, day time.Time, limit int) (int, error) {
	const q = `
INSERT INTO daily_call_quota (day, accepted)
VALUES ($1, 1)
ON CONFLICT (day) DO UPDATE
SET accepted = daily_call_quota.accepted + 1
WHERE daily_call_quota.accepted < $2
RETURNING accepted
`
	var n int
	if err := tx.QueryRowContext(ctx, q, day, limit).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrQuotaExceeded
		}
		return 0, err
	}
	return n, nil
}

func (r *PostgresRepo) Accept(ctx context.Context, sessionID, agentID string, day time.Time, limit int) (Call, error) {
	if limit <= 0 {
		return Call{}, ErrQuotaExceeded
	}
	var out Call
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		c, err := lockCall(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if c.Status != StatusPending {
			return ErrNotPending
		}
		if _, err := consumeQuota(ctx, tx, day, limit); err != nil {
			return err
		}

		const upd = `UPDATE calls SET status = $2, agent_id = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, upd, c.ID, StatusAccepted, agentID); err != nil {
			return fmt.Errorf("accept call: %w", err)
		}
		c.Status = StatusAccepted
		c.AgentID = agentID
		out = c
		return nil
	})
	return out, err
}

func (r *PostgresRepo) Reject(ctx context.Context, sessionID string) (Call, error) {
	var out Call
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		c, err := lockCall(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if c.Status != StatusPending {
			return ErrNotPending
		}
		const upd = `UPDATE calls SET status = $2 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, upd, c.ID, StatusRejected); err != nil {
			return fmt.Errorf("reject call: %w", err)
		}
		c.Status = StatusRejected
		out = c
		return nil
	})
	return out, err
}

func (r *PostgresRepo) End(ctx context.Context, sessionID string, at time.Time) (Call, bool, error) {
	var (
		out     Call
		changed bool
	)
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		c, err := lockCall(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		out = c
		if c.Status != StatusAccepted {
			return nil
		}

		dur := FloorSeconds(c.StartTime, at)
		const upd = `UPDATE calls SET status = $2, end_time = $3, duration = $4 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, upd, c.ID, StatusEnded, at, dur); err != nil {
			return fmt.Errorf("end call: %w", err)
		}
		out.Status = StatusEnded
		out.EndTime = &at
		out.DurationSeconds = &dur
		changed = true
		return nil
	})
	return out, changed, err
}

func (r *PostgresRepo) List(ctx context.Context, lq ListQuery) ([]Call, error) {
	b := psql.Select(callColumns).From("calls").OrderBy("start_time DESC")
	if lq.Status != "" {
		b = b.Where(sq.Eq{"status": lq.Status})
	}
	if !lq.From.IsZero() {
		b = b.Where(sq.GtOrEq{"start_time": lq.From})
	}
	if !lq.To.IsZero() {
		b = b.Where(sq.Lt{"start_time": lq.To})
	}
	if lq.Limit > 0 {
		b = b.Limit(uint64(lq.Limit))
	}

	q, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) QuotaUsed(ctx context.Context, day time.Time) (int, error) {
	const q = `SELECT accepted FROM daily_call_quota WHERE day = $1`
	var n int
	if err := r.db.QueryRowContext(ctx, q, day).Scan(&n); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return n, nil
}
