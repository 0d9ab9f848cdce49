package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"live-support/internal/apperr"
	"live-support/internal/rbac"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserNotFound    = apperr.New(apperr.ErrNotFound, "user not found")
	ErrMissingUsername = apperr.New(apperr.ErrInvalidInput, "username is required")
	ErrMissingPassword = apperr.New(apperr.ErrInvalidInput, "password is required")
)

// User is a support staff account. Only staff accounts can sign in; callers
// stay anonymous.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	HashedPassword string    `json:"-"`
	IsSuperuser    bool      `json:"is_superuser"`
	CreatedAt      time.Time `json:"created_at"`
}

// Role maps the account onto an RBAC role.
func (u User) Role() string {
	if u.IsSuperuser {
		return rbac.RoleSuperAdmin
	}
	return rbac.RoleAgent
}

type Repository interface {
	GetByUsername(ctx context.Context, username string) (User, error)
	// Create inserts u. It returns ErrUserExists when the username is taken.
	Create(ctx context.Context, u User) (User, error)
}

var ErrUserExists = apperr.New(apperr.ErrConflict, "user already exists")

type Service struct {
	repo  Repository
	cost  int
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, cost: bcrypt.DefaultCost, clock: time.Now}
}

func normalize(username string) string { return strings.TrimSpace(username) }

func (s *Service) Lookup(ctx context.Context, username string) (User, error) {
	username = normalize(username)
	if username == "" {
		return User{}, ErrMissingUsername
	}
	return s.repo.GetByUsername(ctx, username)
}

// EnsureAdmin creates a superuser unless the username already exists. The
// existing account is returned untouched.
func (s *Service) EnsureAdmin(ctx context.Context, username, password string) (User, bool, error) {
	username = normalize(username)
	if username == "" {
		return User{}, false, ErrMissingUsername
	}
	if password == "" {
		return User{}, false, ErrMissingPassword
	}

	existing, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, false, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.repo.Create(ctx, User{
		Username:       username,
		HashedPassword: string(hash),
		IsSuperuser:    true,
		CreatedAt:      s.clock().UTC(),
	})
	if errors.Is(err, ErrUserExists) {
		// Lost a race with another instance booting.
		u, err = s.repo.GetByUsername(ctx, username)
		return u, false, err
	}
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}
