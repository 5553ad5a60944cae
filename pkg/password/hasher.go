package password

import "fmt"

// Hasher computes and verifies password hashes. Exactly one scheme is
// active per deployment; stored hashes carry a format prefix so a hash
// produced under a different scheme is rejected rather than misread.
type Hasher interface {
	// Hash computes the stored form of password
	Hash(password string) (string, error)
	// Verify checks password against its stored form. It returns nil on
	// match, ErrHashMismatch on mismatch.
	Verify(password, hash string) error
}

// Supported hashing schemes
const (
	// SchemeBcrypt is the adaptive, cost-parameterized scheme
	SchemeBcrypt = "bcrypt"
	// SchemeHMAC is the keyed scheme (HMAC-SHA256 with a server secret)
	SchemeHMAC = "hmac"
)

// NewHasher constructs the hasher for the configured scheme. cost is
// only meaningful for bcrypt, key only for hmac.
func NewHasher(scheme string, cost int, key []byte) (Hasher, error) {
	switch scheme {
	case SchemeBcrypt:
		return NewBcryptHasher(cost), nil
	case SchemeHMAC:
		return NewHMACHasher(key)
	default:
		return nil, fmt.Errorf("unknown hash scheme %q", scheme)
	}
}
