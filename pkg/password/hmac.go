package password

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

// hmacPrefix versions the keyed-scheme hash format so stored hashes
// identify the scheme that produced them.
const hmacPrefix = "$hmac-sha256$"

// minHMACKeyLen guards against keys short enough to brute-force
const minHMACKeyLen = 32

// HMACHasher is the keyed scheme: HMAC-SHA256 over the password with a
// server-held secret. Cheaper than bcrypt but only as strong as the
// secrecy of the key.
type HMACHasher struct {
	key []byte
}

// NewHMACHasher creates an HMAC hasher. The key must be at least 32
// bytes.
func NewHMACHasher(key []byte) (*HMACHasher, error) {
	if len(key) < minHMACKeyLen {
		return nil, errors.New("hmac key must be at least 32 bytes")
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &HMACHasher{key: k}, nil
}

// Hash implements Hasher
func (h *HMACHasher) Hash(password string) (string, error) {
	return hmacPrefix + hex.EncodeToString(h.sum(password)), nil
}

// Verify implements Hasher. The comparison is constant time so timing
// does not reveal the position of the first mismatching byte.
func (h *HMACHasher) Verify(password, hash string) error {
	if !strings.HasPrefix(hash, hmacPrefix) {
		return ErrUnknownScheme
	}

	expected, err := hex.DecodeString(strings.TrimPrefix(hash, hmacPrefix))
	if err != nil {
		return ErrUnknownScheme
	}

	if subtle.ConstantTimeCompare(h.sum(password), expected) != 1 {
		return ErrHashMismatch
	}
	return nil
}

func (h *HMACHasher) sum(password string) []byte {
	mac := hmac.New(sha256.New, h.key)
	mac.Write([]byte(password))
	return mac.Sum(nil)
}
