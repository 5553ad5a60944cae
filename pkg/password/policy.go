// Package password validates password strength and computes password
// hashes under a configurable hashing scheme.
package password

import (
	"fmt"
	"unicode"
)

// Policy holds the strength rules applied to new passwords. Each rule
// can be toggled independently.
type Policy struct {
	MinLength      int
	RequireDigit   bool
	RequireUpper   bool
	RequireLower   bool
	RequireSpecial bool
}

// DefaultPolicy returns the rules the original deployment shipped with
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      12,
		RequireDigit:   true,
		RequireUpper:   true,
		RequireLower:   true,
		RequireSpecial: true,
	}
}

// Validate checks password against the policy and returns the first
// failing rule's error
func (p Policy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("%w: minimum %d characters", ErrTooShort, p.MinLength)
	}

	var hasDigit, hasUpper, hasLower, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		default:
			hasSpecial = true
		}
	}

	if p.RequireDigit && !hasDigit {
		return ErrMissingDigit
	}
	if p.RequireUpper && !hasUpper {
		return ErrMissingUpper
	}
	if p.RequireLower && !hasLower {
		return ErrMissingLower
	}
	if p.RequireSpecial && !hasSpecial {
		return ErrMissingSpecial
	}
	return nil
}
