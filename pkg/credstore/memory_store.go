package credstore

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store using an in-memory slice. It carries the
// same locking semantics as FileStore and is intended for tests and
// embedding.
type MemoryStore struct {
	mu    sync.RWMutex
	users []*User
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// FindByUsername implements Store
func (s *MemoryStore) FindByUsername(username string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return u.Clone(), nil
		}
	}
	return nil, ErrUserNotFound
}

// FindByID implements Store
func (s *MemoryStore) FindByID(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ID == id {
			return u.Clone(), nil
		}
	}
	return nil, ErrUserNotFound
}

// Create implements Store
func (s *MemoryStore) Create(username, passwordHash string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username {
			return nil, ErrDuplicateUser
		}
	}

	user := &User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	s.users = append(s.users, user)
	return user.Clone(), nil
}

// Update implements Store
func (s *MemoryStore) Update(id string, mutate func(*User)) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == id {
			mutate(u)
			return u.Clone(), nil
		}
	}
	return nil, ErrUserNotFound
}
