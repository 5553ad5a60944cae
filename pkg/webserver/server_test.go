package webserver

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markhold/gatehouse/pkg/authentication"
	"github.com/markhold/gatehouse/pkg/credstore"
	"github.com/markhold/gatehouse/pkg/lockout"
	"github.com/markhold/gatehouse/pkg/password"
	"github.com/markhold/gatehouse/pkg/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var csrfFieldRe = regexp.MustCompile(`name="csrf_token" value="([^"]+)"`)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	store := credstore.NewMemoryStore()
	hasher, err := password.NewHMACHasher([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	policy := lockout.NewPolicy(5, 15*time.Minute, nil)
	auth, err := authentication.NewAuthenticator(store, hasher, policy, password.DefaultPolicy())
	require.NoError(t, err)

	_, err = auth.Register("alice", "Str0ng!Passw")
	require.NoError(t, err)

	controller, err := session.NewController(store, "user_id", true, true)
	require.NoError(t, err)

	server, err := New(&Config{
		ListenAddr:    "127.0.0.1",
		Port:          0,
		CookieName:    "session",
		SessionSecret: strings.Repeat("s", 64),
		SessionExpire: time.Hour,
		LoginPath:     "/login",
	}, store, auth, controller, nil)
	require.NoError(t, err)

	return server
}

// do performs a request carrying cookies from prior responses
func do(t *testing.T, server *Server, method, path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if form != nil {
		req = httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

// mergeCookies layers newly set cookies over the existing jar
func mergeCookies(jar []*http.Cookie, w *httptest.ResponseRecorder) []*http.Cookie {
	byName := make(map[string]*http.Cookie)
	for _, c := range jar {
		byName[c.Name] = c
	}
	for _, c := range w.Result().Cookies() {
		byName[c.Name] = c
	}
	out := make([]*http.Cookie, 0, len(byName))
	for _, c := range byName {
		out = append(out, c)
	}
	return out
}

// login walks the form flow and returns the authenticated cookie jar
func login(t *testing.T, server *Server, username, pass string) ([]*http.Cookie, *httptest.ResponseRecorder) {
	t.Helper()

	w := do(t, server, http.MethodGet, "/login", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	match := csrfFieldRe.FindStringSubmatch(w.Body.String())
	require.Len(t, match, 2, "login form must embed a csrf token")

	jar := mergeCookies(nil, w)
	form := url.Values{
		"username":   {username},
		"password":   {pass},
		"csrf_token": {match[1]},
	}
	w = do(t, server, http.MethodPost, "/login", form, jar)
	return mergeCookies(jar, w), w
}

func TestServer_LoginFormIssuesCSRFToken(t *testing.T) {
	server := newTestServer(t)

	w := do(t, server, http.MethodGet, "/login", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Regexp(t, csrfFieldRe, w.Body.String())
	assert.NotEmpty(t, w.Result().Cookies())
}

func TestServer_LoginWithoutCSRFTokenRejected(t *testing.T) {
	server := newTestServer(t)

	form := url.Values{"username": {"alice"}, "password": {"Str0ng!Passw"}}
	w := do(t, server, http.MethodPost, "/login", form, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestServer_SafeMethodsExemptFromCSRF(t *testing.T) {
	server := newTestServer(t)

	// No token anywhere, still served
	w := do(t, server, http.MethodGet, "/", nil, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestServer_LoginFlow(t *testing.T) {
	server := newTestServer(t)

	jar, w := login(t, server, "alice", "Str0ng!Passw")
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	w = do(t, server, http.MethodGet, "/dashboard", nil, jar)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "alice")
}

func TestServer_LoginRejectsBadCredentials(t *testing.T) {
	server := newTestServer(t)

	_, w := login(t, server, "alice", "wrong-password")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid credentials or account locked")
}

func TestServer_LoginRotatesSessionCookie(t *testing.T) {
	server := newTestServer(t)

	w := do(t, server, http.MethodGet, "/login", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var before string
	for _, c := range w.Result().Cookies() {
		if c.Name == "session" {
			before = c.Value
		}
	}
	require.NotEmpty(t, before)

	jar, w := login(t, server, "alice", "Str0ng!Passw")
	require.Equal(t, http.StatusFound, w.Code)

	var after string
	for _, c := range jar {
		if c.Name == "session" {
			after = c.Value
		}
	}
	require.NotEmpty(t, after)
	assert.NotEqual(t, before, after, "login must not keep the pre-authentication session payload")
}

func TestServer_DashboardRequiresLogin(t *testing.T) {
	server := newTestServer(t)

	w := do(t, server, http.MethodGet, "/dashboard", nil, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestServer_LogoutClearsSession(t *testing.T) {
	server := newTestServer(t)

	jar, w := login(t, server, "alice", "Str0ng!Passw")
	require.Equal(t, http.StatusFound, w.Code)

	// Grab the dashboard's csrf token for the logout form
	w = do(t, server, http.MethodGet, "/dashboard", nil, jar)
	require.Equal(t, http.StatusOK, w.Code)
	match := csrfFieldRe.FindStringSubmatch(w.Body.String())
	require.Len(t, match, 2)
	jar = mergeCookies(jar, w)

	w = do(t, server, http.MethodPost, "/logout", url.Values{"csrf_token": {match[1]}}, jar)
	assert.Equal(t, http.StatusFound, w.Code)
	jar = mergeCookies(jar, w)

	w = do(t, server, http.MethodGet, "/dashboard", nil, jar)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
}

func TestServer_CreateUser(t *testing.T) {
	server := newTestServer(t)

	jar, w := login(t, server, "alice", "Str0ng!Passw")
	require.Equal(t, http.StatusFound, w.Code)

	w = do(t, server, http.MethodGet, "/users", nil, jar)
	require.Equal(t, http.StatusOK, w.Code)
	match := csrfFieldRe.FindStringSubmatch(w.Body.String())
	require.Len(t, match, 2)
	jar = mergeCookies(jar, w)

	form := url.Values{
		"username":   {"bob"},
		"password":   {"An0ther!Pass"},
		"csrf_token": {match[1]},
	}
	w = do(t, server, http.MethodPost, "/users", form, jar)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bob created successfully")

	// Weak password renders the failing rule
	form.Set("username", "carol")
	form.Set("password", "short")
	w = do(t, server, http.MethodPost, "/users", form, jar)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "password too short")
}
