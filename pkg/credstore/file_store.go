package credstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/markhold/gatehouse/pkg/logging"
)

// FileStore implements Store on a single JSON file. The whole store is
// held in memory; every mutation rewrites the file through a temp file
// and an atomic rename so readers never observe a partial write.
type FileStore struct {
	fs     afero.Fs
	path   string
	logger logging.Logger

	mu    sync.RWMutex
	users []*User
}

// NewFileStore loads the store at path. A missing file yields an empty
// store; an unparseable file is an ErrCorruptStore.
func NewFileStore(fs afero.Fs, path string, logger logging.Logger) (*FileStore, error) {
	if logger == nil {
		logger = logging.Noop{}
	}

	s := &FileStore{
		fs:     fs,
		path:   path,
		logger: logger,
	}

	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("User store file not found, starting empty", "path", path)
			return s, nil
		}
		return nil, fmt.Errorf("reading user store: %w", err)
	}

	if err := json.Unmarshal(data, &s.users); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrCorruptStore, path, err)
	}

	logger.Info("Loaded user store", "path", path, "users", len(s.users))
	return s, nil
}

// FindByUsername implements Store. Usernames match case-sensitively.
func (s *FileStore) FindByUsername(username string) (*User, error) {
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
func (s *FileStore) FindByID(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ID == id {
			return u.Clone(), nil
		}
	}
	return nil, ErrUserNotFound
}

// Create implements Store. The uniqueness check and the append happen
// under one lock so no two concurrent calls can both claim a username.
func (s *FileStore) Create(username, passwordHash string) (*User, error) {
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
	if err := s.saveLocked(); err != nil {
		s.users = s.users[:len(s.users)-1]
		return nil, err
	}

	s.logger.Info("Created user", "username", username, "id", user.ID)
	return user.Clone(), nil
}

// Update implements Store. mutate runs on the live record while the
// store lock is held, so read-modify-write sequences are atomic with
// respect to other callers.
func (s *FileStore) Update(id string, mutate func(*User)) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID != id {
			continue
		}

		before := u.Clone()
		mutate(u)
		if err := s.saveLocked(); err != nil {
			*u = *before
			return nil, err
		}
		return u.Clone(), nil
	}
	return nil, ErrUserNotFound
}

// Count returns the number of stored users
func (s *FileStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// saveLocked persists the store. Callers must hold the write lock.
func (s *FileStore) saveLocked() error {
	users := s.users
	if users == nil {
		users = []*User{} // an empty store is "[]", not "null"
	}

	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding user store: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmpPath, data, 0600); err != nil {
		return fmt.Errorf("writing user store: %w", err)
	}

	if err := s.fs.Rename(tmpPath, s.path); err != nil {
		s.fs.Remove(tmpPath) // Clean up temp file on error
		return fmt.Errorf("promoting user store: %w", err)
	}

	return nil
}
