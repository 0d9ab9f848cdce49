package users

import (
	"context"
	"sync"
)

type MemoryRepo struct {
	mu     sync.Mutex
	nextID int64
	byName map[string]User
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{byName: map[string]User{}} }

func (r *MemoryRepo) GetByUsername(_ context.Context, username string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byName[username]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryRepo) Create(_ context.Context, u User) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[u.Username]; ok {
		return User{}, ErrUserExists
	}
	r.nextID++
	u.ID = r.nextID
	r.byName[u.Username] = u
	return u, nil
}
