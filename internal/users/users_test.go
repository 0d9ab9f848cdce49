package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"live-support/internal/apperr"
	"live-support/internal/rbac"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(repo Repository) *Service {
	s := NewService(repo)
	s.cost = bcrypt.MinCost
	s.clock = func() time.Time { return time.Unix(1700000000, 0) }
	return s
}

func TestEnsureAdmin_CreatesOnce(t *testing.T) {
	ctx := context.Background()
	s := newTestService(NewMemoryRepo())

	u, created, err := s.EnsureAdmin(ctx, " admin ", "pw")
	if err != nil || !created {
		t.Fatalf("first ensure: created=%v err=%v", created, err)
	}
	if u.Username != "admin" || !u.IsSuperuser || u.Role() != rbac.RoleSuperAdmin {
		t.Fatalf("unexpected user %+v", u)
	}

	again, created, err := s.EnsureAdmin(ctx, "admin", "other")
	if err != nil || created || again.ID != u.ID {
		t.Fatalf("second ensure must return existing: %+v created=%v err=%v", again, created, err)
	}

	stored, err := s.Lookup(ctx, "admin")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.HashedPassword), []byte("pw")); err != nil {
		t.Fatalf("original password must still match: %v", err)
	}
}

func TestLookup(t *testing.T) {
	s := newTestService(NewMemoryRepo())
	if _, err := s.Lookup(context.Background(), "  "); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("blank username: %v", err)
	}
	if _, err := s.Lookup(context.Background(), "ghost"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown user: %v", err)
	}
}

func TestRoleForStaff(t *testing.T) {
	if (User{}).Role() != rbac.RoleAgent {
		t.Fatalf("non-superuser must be an agent")
	}
}

func TestPostgresRepo_GetByUsername(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	at := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT id, username, hashed_password, is_superuser, created_at").
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "hashed_password", "is_superuser", "created_at"}).
			AddRow(1, "admin", "hash", true, at))
	mock.ExpectQuery("SELECT id, username").
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"id", "username", "hashed_password", "is_superuser", "created_at"}))

	repo := NewPostgresRepo(db)
	u, err := repo.GetByUsername(context.Background(), "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.True(t, u.IsSuperuser)

	_, err = repo.GetByUsername(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_CreateDuplicate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err = NewPostgresRepo(db).Create(context.Background(), User{Username: "admin", HashedPassword: "h"})
	assert.ErrorIs(t, err, ErrUserExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}
