// Package webserver wires the authentication core to HTTP. It carries
// no policy of its own: handlers call the core operations and render
// their results.
package webserver

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"github.com/markhold/gatehouse/pkg/authentication"
	"github.com/markhold/gatehouse/pkg/credstore"
	"github.com/markhold/gatehouse/pkg/logging"
	"github.com/markhold/gatehouse/pkg/session"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config holds web server configuration
type Config struct {
	ListenAddr    string
	Port          int
	CookieName    string
	SessionSecret string
	SessionExpire time.Duration
	LoginPath     string
	Production    bool // marks the session cookie Secure and silences gin debug output
}

// Server serves the login UI and the protected pages
type Server struct {
	config   *Config
	store    credstore.Store
	auth     *authentication.Authenticator
	sessions *session.Controller
	logger   logging.Logger
	engine   *gin.Engine
	srv      *http.Server
}

// New creates a web server
func New(config *Config, store credstore.Store, auth *authentication.Authenticator, controller *session.Controller, logger logging.Logger) (*Server, error) {
	if store == nil || auth == nil || controller == nil {
		return nil, fmt.Errorf("store, authenticator and session controller are required")
	}
	if logger == nil {
		logger = logging.Noop{}
	}
	if config.LoginPath == "" {
		config.LoginPath = "/login"
	}

	if config.Production {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		config:   config,
		store:    store,
		auth:     auth,
		sessions: controller,
		logger:   logger,
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	engine.SetHTMLTemplate(tmpl)

	cookieStore := cookie.NewStore([]byte(config.SessionSecret))
	cookieStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(config.SessionExpire.Seconds()),
		HttpOnly: true,
		Secure:   config.Production,
		SameSite: http.SameSiteLaxMode,
	})
	engine.Use(sessions.Sessions(config.CookieName, cookieStore))

	// The CSRF check runs before every handler, mirroring the original
	// before-filter. Safe methods pass through inside VerifyCSRF.
	engine.Use(s.verifyCSRF())

	engine.GET("/", s.handleIndex)
	engine.GET(config.LoginPath, s.handleLoginForm)
	engine.POST(config.LoginPath, s.handleLogin)
	engine.POST("/logout", s.handleLogout)

	protected := engine.Group("/", s.requireAuthentication())
	protected.GET("/dashboard", s.handleDashboard)
	protected.GET("/users", s.handleUsersForm)
	protected.POST("/users", s.handleCreateUser)

	s.engine = engine
	s.srv = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", config.ListenAddr, config.Port),
		Handler: engine,
	}

	return s, nil
}

// Handler exposes the underlying handler for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe starts the server
func (s *Server) ListenAndServe() error {
	s.logger.Info("Web server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down, draining in-flight requests
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
