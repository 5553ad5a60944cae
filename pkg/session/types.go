// Package session manages the security state of an authenticated
// session: identity binding, rotation at the login boundary, and CSRF
// token issuance and verification.
package session

import "errors"

// Session is the transport layer's per-client session as seen by the
// controller. The controller only reads and writes keys; cookie
// encoding, expiry and persistence stay with the transport.
type Session interface {
	// Get returns the value stored under key, or nil
	Get(key string) interface{}
	// Set stores value under key
	Set(key string, value interface{})
	// Clear removes all session state
	Clear()
}

var (
	// ErrCSRFMismatch is returned when a state-changing request carries
	// a missing or incorrect CSRF token
	ErrCSRFMismatch = errors.New("csrf token mismatch")
)
