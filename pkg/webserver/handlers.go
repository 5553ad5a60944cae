package webserver

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/markhold/gatehouse/pkg/credstore"
	"github.com/markhold/gatehouse/pkg/password"
)

// isValidationError reports whether err is one of the password strength
// failures, which render as user feedback rather than server errors
func isValidationError(err error) bool {
	for _, rule := range []error{
		password.ErrTooShort,
		password.ErrMissingDigit,
		password.ErrMissingUpper,
		password.ErrMissingLower,
		password.ErrMissingSpecial,
	} {
		if errors.Is(err, rule) {
			return true
		}
	}
	return false
}

// csrfHeader is the header fallback for requests that cannot carry a
// form field
const csrfHeader = "X-CSRF-Token"

// contextUserKey carries the resolved user between middleware and
// handlers
const contextUserKey = "webserver.user"

// ginSession adapts gin-contrib/sessions to the controller's Session
// interface
type ginSession struct {
	s sessions.Session
}

func (g ginSession) Get(key string) interface{}        { return g.s.Get(key) }
func (g ginSession) Set(key string, value interface{}) { g.s.Set(key, value) }
func (g ginSession) Clear()                            { g.s.Clear() }

func (s *Server) session(c *gin.Context) ginSession {
	return ginSession{s: sessions.Default(c)}
}

func (s *Server) saveSession(c *gin.Context) bool {
	if err := sessions.Default(c).Save(); err != nil {
		s.logger.Error("Saving session failed", "error", err)
		c.String(http.StatusInternalServerError, "session error")
		c.Abort()
		return false
	}
	return true
}

// verifyCSRF enforces the CSRF check on state-changing requests. The
// token may arrive as a form field or as a header.
func (s *Server) verifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.PostForm("csrf_token")
		if token == "" {
			token = c.GetHeader(csrfHeader)
		}

		if err := s.sessions.VerifyCSRF(s.session(c), c.Request.Method, token); err != nil {
			s.logger.Warn("Rejected request with bad CSRF token", "path", c.Request.URL.Path, "method", c.Request.Method)
			c.String(http.StatusForbidden, "CSRF token mismatch")
			c.Abort()
			return
		}
		c.Next()
	}
}

// requireAuthentication redirects unauthenticated requests to the
// login page
func (s *Server) requireAuthentication() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := s.sessions.CurrentUser(s.session(c))
		if err != nil {
			s.logger.Error("Resolving session user failed", "error", err)
			c.String(http.StatusInternalServerError, "internal error")
			c.Abort()
			return
		}
		if user == nil {
			c.Redirect(http.StatusFound, s.config.LoginPath)
			c.Abort()
			return
		}
		c.Set(contextUserKey, user)
		c.Next()
	}
}

func (s *Server) currentUser(c *gin.Context) *credstore.User {
	if u, ok := c.Get(contextUserKey); ok {
		return u.(*credstore.User)
	}
	return nil
}

func (s *Server) handleIndex(c *gin.Context) {
	user, err := s.sessions.CurrentUser(s.session(c))
	if err != nil {
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	if user != nil {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	c.Redirect(http.StatusFound, s.config.LoginPath)
}

func (s *Server) handleLoginForm(c *gin.Context) {
	sess := s.session(c)
	token, err := s.sessions.CSRFToken(sess)
	if err != nil {
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	if !s.saveSession(c) {
		return
	}
	c.HTML(http.StatusOK, "login.html", gin.H{"CSRFToken": token})
}

func (s *Server) handleLogin(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	ok, err := s.auth.Authenticate(username, password)
	if err != nil {
		s.logger.Error("Authentication failed with storage error", "error", err)
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	sess := s.session(c)
	if !ok {
		token, terr := s.sessions.CSRFToken(sess)
		if terr != nil {
			c.String(http.StatusInternalServerError, "internal error")
			return
		}
		if !s.saveSession(c) {
			return
		}
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{
			"Error":     "Invalid credentials or account locked",
			"CSRFToken": token,
		})
		return
	}

	user, err := s.store.FindByUsername(username)
	if err != nil {
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.sessions.Bind(sess, user.ID); err != nil {
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	if !s.saveSession(c) {
		return
	}
	c.Redirect(http.StatusFound, "/dashboard")
}

func (s *Server) handleLogout(c *gin.Context) {
	s.sessions.Logout(s.session(c))
	if !s.saveSession(c) {
		return
	}
	c.Redirect(http.StatusFound, s.config.LoginPath)
}

func (s *Server) handleDashboard(c *gin.Context) {
	user := s.currentUser(c)
	token, err := s.sessions.CSRFToken(s.session(c))
	if err != nil {
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	if !s.saveSession(c) {
		return
	}
	c.HTML(http.StatusOK, "dashboard.html", gin.H{
		"Username":  user.Username,
		"LastLogin": user.LastLogin,
		"CSRFToken": token,
	})
}

func (s *Server) handleUsersForm(c *gin.Context) {
	token, err := s.sessions.CSRFToken(s.session(c))
	if err != nil {
		c.String(http.StatusInternalServerError, "internal error")
		return
	}
	if !s.saveSession(c) {
		return
	}
	c.HTML(http.StatusOK, "users.html", gin.H{"CSRFToken": token})
}

func (s *Server) handleCreateUser(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	token, err := s.sessions.CSRFToken(s.session(c))
	if err != nil {
		c.String(http.StatusInternalServerError, "internal error")
		return
	}

	user, err := s.auth.Register(username, password)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, credstore.ErrDuplicateUser) && !isValidationError(err) {
			status = http.StatusInternalServerError
		}
		c.HTML(status, "users.html", gin.H{
			"Message":   err.Error(),
			"CSRFToken": token,
		})
		return
	}

	c.HTML(http.StatusOK, "users.html", gin.H{
		"Message":   "User " + user.Username + " created successfully",
		"Success":   true,
		"CSRFToken": token,
	})
}
