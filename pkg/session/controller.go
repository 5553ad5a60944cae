package session

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"

	"github.com/markhold/gatehouse/pkg/credstore"
	"github.com/markhold/gatehouse/pkg/logging"
)

// Session keys owned by the controller. The identity key is
// configurable for compatibility with existing cookie payloads.
const (
	csrfTokenKey = "csrf_token"
	sessionIDKey = "session_id"
)

// Controller implements the session security protocol over any Session
// implementation.
type Controller struct {
	store       credstore.Store
	identityKey string
	rotation    bool
	csrf        bool
	logger      logging.Logger
}

// NewController creates a Controller. rotation enables session
// rotation at login; csrf enables CSRF token issuance and checks.
func NewController(store credstore.Store, identityKey string, rotation, csrf bool) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if identityKey == "" {
		identityKey = "user_id"
	}

	return &Controller{
		store:       store,
		identityKey: identityKey,
		rotation:    rotation,
		csrf:        csrf,
		logger:      logging.Noop{},
	}, nil
}

// SetLogger installs an application logger
func (c *Controller) SetLogger(logger logging.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Bind attaches an authenticated user to the session. With rotation
// enabled the prior session state is invalidated first, so a
// pre-authentication session identifier an attacker may have planted
// does not stay valid past login.
func (c *Controller) Bind(sess Session, userID string) error {
	if c.rotation {
		sess.Clear()
	}

	if c.rotation || sess.Get(sessionIDKey) == nil {
		id, err := randomToken()
		if err != nil {
			return fmt.Errorf("generating session id: %w", err)
		}
		sess.Set(sessionIDKey, id)
	}

	sess.Set(c.identityKey, userID)

	if c.csrf {
		if _, err := c.CSRFToken(sess); err != nil {
			return err
		}
	}

	c.logger.Debug("Bound session", "user_id", userID, "rotated", c.rotation)
	return nil
}

// SessionID returns the session's rotation marker, or "" when none has
// been issued yet
func (c *Controller) SessionID(sess Session) string {
	id, _ := sess.Get(sessionIDKey).(string)
	return id
}

// CSRFToken returns the session's CSRF token, generating and storing
// one on first use. The same token comes back until the session is
// cleared. Returns "" when CSRF protection is disabled.
func (c *Controller) CSRFToken(sess Session) (string, error) {
	if !c.csrf {
		return "", nil
	}

	if token, ok := sess.Get(csrfTokenKey).(string); ok && token != "" {
		return token, nil
	}

	token, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("generating csrf token: %w", err)
	}
	sess.Set(csrfTokenKey, token)
	return token, nil
}

// VerifyCSRF checks the token supplied with a request. Safe (read-only)
// methods pass without a token; every other method must present the
// session's exact stored token.
func (c *Controller) VerifyCSRF(sess Session, method, supplied string) error {
	if !c.csrf || IsSafeMethod(method) {
		return nil
	}

	expected, ok := sess.Get(csrfTokenKey).(string)
	if !ok || expected == "" {
		return ErrCSRFMismatch
	}

	if subtle.ConstantTimeCompare([]byte(expected), []byte(supplied)) != 1 {
		return ErrCSRFMismatch
	}
	return nil
}

// CurrentUser resolves the session's bound user. The returned record
// has its password hash redacted. An unbound session, or a binding
// whose user record no longer exists, yields nil.
func (c *Controller) CurrentUser(sess Session) (*credstore.User, error) {
	id, ok := sess.Get(c.identityKey).(string)
	if !ok || id == "" {
		return nil, nil
	}

	user, err := c.store.FindByID(id)
	if errors.Is(err, credstore.ErrUserNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolving session user: %w", err)
	}
	return user.Redacted(), nil
}

// Logout clears all session state unconditionally
func (c *Controller) Logout(sess Session) {
	sess.Clear()
}

// IsSafeMethod reports whether an HTTP method is read-only and
// therefore exempt from the CSRF check
func IsSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

// randomToken returns 32 cryptographically random bytes, hex encoded
func randomToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
