package password

import "errors"

// Validation failures. Each rule has its own error so callers can tell
// the user exactly which rule failed.
var (
	// ErrTooShort is returned when the password is below the minimum length
	ErrTooShort = errors.New("password too short")

	// ErrMissingDigit is returned when the password has no digit
	ErrMissingDigit = errors.New("password requires a digit")

	// ErrMissingUpper is returned when the password has no uppercase letter
	ErrMissingUpper = errors.New("password requires an uppercase letter")

	// ErrMissingLower is returned when the password has no lowercase letter
	ErrMissingLower = errors.New("password requires a lowercase letter")

	// ErrMissingSpecial is returned when the password has no special character
	ErrMissingSpecial = errors.New("password requires a special character")
)

var (
	// ErrHashMismatch is returned when a password does not match its hash
	ErrHashMismatch = errors.New("password mismatch")

	// ErrUnknownScheme is returned for a hash whose format does not match
	// the configured scheme
	ErrUnknownScheme = errors.New("unsupported hash format")
)
