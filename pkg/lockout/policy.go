// Package lockout decides when repeated authentication failures block
// an account and how failure and success mutate the stored counters.
//
// Locked is never stored as an explicit flag. It is derived from the
// locked_until timestamp on every check, so an expired lock lifts
// itself without a separate transition.
package lockout

import (
	"time"

	"github.com/markhold/gatehouse/pkg/credstore"
)

// Default thresholds, matching the historical deployment
const (
	DefaultMaxAttempts = 5
	DefaultDuration    = 15 * time.Minute
)

// Policy holds the lockout thresholds. Now is the clock used for every
// derivation and transition; injecting it keeps the policy
// deterministic under test.
type Policy struct {
	MaxAttempts int
	Duration    time.Duration
	Now         func() time.Time
}

// NewPolicy creates a Policy. Zero values fall back to defaults and a
// nil clock falls back to time.Now.
func NewPolicy(maxAttempts int, duration time.Duration, now func() time.Time) *Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if duration <= 0 {
		duration = DefaultDuration
	}
	if now == nil {
		now = time.Now
	}
	return &Policy{
		MaxAttempts: maxAttempts,
		Duration:    duration,
		Now:         now,
	}
}

// Locked reports whether the account is currently locked. This is the
// single shared derivation; all callers agree on "now" through the
// policy's clock.
func (p *Policy) Locked(u *credstore.User) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(p.Now())
}

// RecordFailure applies the failed-authentication transition to u.
// The counter increments; reaching the threshold sets the lock. Callers
// must not invoke this while Locked reports true, which is what keeps
// an active lock from being extended.
func (p *Policy) RecordFailure(u *credstore.User) {
	u.FailedAttempts++
	if u.FailedAttempts >= p.MaxAttempts {
		t := p.Now().Add(p.Duration).UTC()
		u.LockedUntil = &t
	}
}

// RecordSuccess applies the successful-authentication transition to u:
// counters reset, the lock clears, last_login is stamped.
func (p *Policy) RecordSuccess(u *credstore.User) {
	u.FailedAttempts = 0
	u.LockedUntil = nil
	t := p.Now().UTC()
	u.LastLogin = &t
}
