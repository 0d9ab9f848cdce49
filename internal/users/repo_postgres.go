package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"live-support/pkg/utils"
)

var Schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
	id              BIGSERIAL PRIMARY KEY,
	username        TEXT NOT NULL UNIQUE,
	hashed_password TEXT NOT NULL,
	is_superuser    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
}

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	const q = `
SELECT id, username, hashed_password, is_superuser, created_at
FROM users
WHERE username = $1
`
	var u User
	err := r.db.QueryRowContext(ctx, q, username).
		Scan(&u.ID, &u.Username, &u.HashedPassword, &u.IsSuperuser, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (r *PostgresRepo) Create(ctx context.Context, u User) (User, error) {
	const q = `
INSERT INTO users (username, hashed_password, is_superuser, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id
`
	err := r.db.QueryRowContext(ctx, q, u.Username, u.HashedPassword, u.IsSuperuser, u.CreatedAt).Scan(&u.ID)
	if utils.IsUniqueViolation(err) {
		return User{}, ErrUserExists
	}
	if err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}
