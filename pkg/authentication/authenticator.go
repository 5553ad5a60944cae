// Package authentication answers whether a username/password pair is
// currently valid, and updates the persisted failure state accordingly.
package authentication

import (
	"errors"
	"fmt"

	"github.com/markhold/gatehouse/pkg/credstore"
	"github.com/markhold/gatehouse/pkg/lockout"
	"github.com/markhold/gatehouse/pkg/logging"
	"github.com/markhold/gatehouse/pkg/password"
)

// Authenticator orchestrates the credential store, the hashing scheme
// and the lockout policy. It is the only code path that mutates
// failed_attempts and locked_until; every write goes through the store
// so its lock covers concurrent attempts against the same account.
type Authenticator struct {
	store   credstore.Store
	hasher  password.Hasher
	lockout *lockout.Policy
	rules   password.Policy
	logger  logging.Logger
	audit   logging.AuditLogger
}

// NewAuthenticator creates an Authenticator
func NewAuthenticator(store credstore.Store, hasher password.Hasher, lockoutPolicy *lockout.Policy, rules password.Policy) (*Authenticator, error) {
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("password hasher is required")
	}
	if lockoutPolicy == nil {
		lockoutPolicy = lockout.NewPolicy(0, 0, nil)
	}

	return &Authenticator{
		store:   store,
		hasher:  hasher,
		lockout: lockoutPolicy,
		rules:   rules,
		logger:  logging.Noop{},
		audit:   logging.NopAudit{},
	}, nil
}

// SetLogger installs an application logger
func (a *Authenticator) SetLogger(logger logging.Logger) {
	if logger != nil {
		a.logger = logger
	}
}

// SetAudit installs an audit logger for login outcomes
func (a *Authenticator) SetAudit(audit logging.AuditLogger) {
	if audit != nil {
		a.audit = audit
	}
}

// Authenticate reports whether the credentials are currently valid.
// The boolean is deliberately the only signal: unknown username, locked
// account and wrong password all come back as plain false, so the
// caller cannot tell them apart. The error is non-nil only for storage
// faults.
func (a *Authenticator) Authenticate(username, pass string) (bool, error) {
	user, err := a.store.FindByUsername(username)
	if errors.Is(err, credstore.ErrUserNotFound) {
		a.audit.LogAuth("login", username, "unknown_user")
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up user: %w", err)
	}

	// A locked account rejects the attempt before any verification and
	// without touching the counter.
	if a.lockout.Locked(user) {
		a.audit.LogAuth("login", username, "locked", "locked_until", user.LockedUntil.Unix())
		return false, nil
	}

	if err := a.hasher.Verify(pass, user.PasswordHash); err != nil {
		updated, uerr := a.store.Update(user.ID, a.lockout.RecordFailure)
		if uerr != nil {
			return false, fmt.Errorf("recording failed attempt: %w", uerr)
		}

		if a.lockout.Locked(updated) {
			a.audit.LogAuth("login", username, "locked_out",
				"failed_attempts", updated.FailedAttempts,
				"locked_until", updated.LockedUntil.Unix())
		} else {
			a.audit.LogAuth("login", username, "failed",
				"failed_attempts", updated.FailedAttempts)
		}
		return false, nil
	}

	if _, err := a.store.Update(user.ID, a.lockout.RecordSuccess); err != nil {
		// Denying here keeps the counter-reset invariant tied to the
		// persisted record.
		return false, fmt.Errorf("recording successful login: %w", err)
	}

	a.audit.LogAuth("login", username, "success")
	a.logger.Debug("Authenticated user", "username", username)
	return true, nil
}

// Register validates the password against the strength rules, hashes it
// under the configured scheme and creates the user.
func (a *Authenticator) Register(username, pass string) (*credstore.User, error) {
	if err := a.rules.Validate(pass); err != nil {
		return nil, err
	}

	hash, err := a.hasher.Hash(pass)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := a.store.Create(username, hash)
	if err != nil {
		return nil, err
	}

	a.audit.LogAuth("register", username, "created", "id", user.ID)
	return user, nil
}
