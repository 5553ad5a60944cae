// Package credstore provides durable, concurrency-safe storage of user
// credential records.
package credstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// User represents a stored credential record
type User struct {
	ID             string
	Username       string
	PasswordHash   string
	CreatedAt      time.Time
	LastLogin      *time.Time
	FailedAttempts int
	LockedUntil    *time.Time

	// Extra carries fields this version does not understand so they
	// survive a load/save cycle unchanged.
	Extra map[string]json.RawMessage
}

// Store is the contract for credential repositories
type Store interface {
	// FindByUsername returns the user with the given username
	FindByUsername(username string) (*User, error)
	// FindByID returns the user with the given id
	FindByID(id string) (*User, error)
	// Create adds a new user with default counters
	Create(username, passwordHash string) (*User, error)
	// Update applies mutate to the user under the store lock and persists
	Update(id string, mutate func(*User)) (*User, error)
}

// Clone returns a deep copy so callers cannot alias store-internal state
func (u *User) Clone() *User {
	c := *u
	if u.LastLogin != nil {
		t := *u.LastLogin
		c.LastLogin = &t
	}
	if u.LockedUntil != nil {
		t := *u.LockedUntil
		c.LockedUntil = &t
	}
	if u.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(u.Extra))
		for k, v := range u.Extra {
			c.Extra[k] = v
		}
	}
	return &c
}

// Redacted returns a copy with the password hash cleared, for handing
// records outside the store/authentication boundary
func (u *User) Redacted() *User {
	c := u.Clone()
	c.PasswordHash = ""
	return c
}

// Field names of the persisted record. Timestamps are stored as unix
// seconds to match the historical on-disk format.
const (
	fieldID             = "id"
	fieldUsername       = "username"
	fieldPasswordHash   = "password_hash"
	fieldCreatedAt      = "created_at"
	fieldLastLogin      = "last_login"
	fieldFailedAttempts = "failed_attempts"
	fieldLockedUntil    = "locked_until"
)

// MarshalJSON implements json.Marshaler, merging known fields over any
// unknown ones captured at load time
func (u *User) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(u.Extra)+7)
	for k, v := range u.Extra {
		out[k] = v
	}

	set := func(key string, v interface{}) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		out[key] = raw
		return nil
	}

	if err := set(fieldID, u.ID); err != nil {
		return nil, err
	}
	if err := set(fieldUsername, u.Username); err != nil {
		return nil, err
	}
	if err := set(fieldPasswordHash, u.PasswordHash); err != nil {
		return nil, err
	}
	if err := set(fieldCreatedAt, u.CreatedAt.Unix()); err != nil {
		return nil, err
	}
	if err := set(fieldFailedAttempts, u.FailedAttempts); err != nil {
		return nil, err
	}
	if err := set(fieldLockedUntil, unixOrNil(u.LockedUntil)); err != nil {
		return nil, err
	}
	if err := set(fieldLastLogin, unixOrNil(u.LastLogin)); err != nil {
		return nil, err
	}

	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler, keeping unrecognized fields
// in Extra
func (u *User) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	take := func(key string, v interface{}) error {
		r, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		if string(r) == "null" {
			return nil
		}
		if err := json.Unmarshal(r, v); err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		return nil
	}

	if err := take(fieldID, &u.ID); err != nil {
		return err
	}
	if err := take(fieldUsername, &u.Username); err != nil {
		return err
	}
	if err := take(fieldPasswordHash, &u.PasswordHash); err != nil {
		return err
	}
	if err := take(fieldFailedAttempts, &u.FailedAttempts); err != nil {
		return err
	}

	var createdAt int64
	if err := take(fieldCreatedAt, &createdAt); err != nil {
		return err
	}
	if createdAt != 0 {
		u.CreatedAt = time.Unix(createdAt, 0).UTC()
	}

	var lockedUntil, lastLogin int64
	if err := take(fieldLockedUntil, &lockedUntil); err != nil {
		return err
	}
	if lockedUntil != 0 {
		t := time.Unix(lockedUntil, 0).UTC()
		u.LockedUntil = &t
	}
	if err := take(fieldLastLogin, &lastLogin); err != nil {
		return err
	}
	if lastLogin != 0 {
		t := time.Unix(lastLogin, 0).UTC()
		u.LastLogin = &t
	}

	if len(raw) > 0 {
		u.Extra = raw
	}
	return nil
}

func unixOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}
