package authtest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authclient/jwt"
	"github.com/MrEthical07/authclient/session"
	"github.com/google/uuid"
)

const (
	DefaultUsername = "emilys"
	DefaultPassword = "emilyspass"
)

// DefaultProfile is the profile of the built-in user.
var DefaultProfile = session.Profile{
	ID:        1,
	Username:  DefaultUsername,
	Email:     "emily.johnson@x.dummyjson.com",
	FirstName: "Emily",
	LastName:  "Johnson",
	Gender:    "female",
	Image:     "https://dummyjson.com/icon/emilys/128",
}

type account struct {
	password string
	profile  session.Profile
}

type refreshGrant struct {
	username string
	sid      string
}

// Server is a fake token backend. It serves:
//
//	POST /auth/login     credentials -> profile + token pair
//	POST /auth/refresh   rotating refresh token -> new pair
//	GET  /auth/me        bearer-protected profile
//	POST /auth/logout    bearer-protected, revokes the session
//	ANY  /protected/...  bearer-protected echo
//	ANY  /status/<code>  bearer-protected, answers with <code>
type Server struct {
	*httptest.Server

	jwt       *jwt.Manager
	accessTTL time.Duration

	mu       sync.Mutex
	accounts map[string]account
	grants   map[string]refreshGrant // refresh token -> grant
	access   map[string]string       // live access token -> sid

	refreshDelay  atomic.Int64
	refreshStatus atomic.Int32

	callsMu sync.Mutex
	calls   map[string]int
}

// Option configures a Server.
type Option func(*Server)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) { s.accessTTL = ttl }
}

// WithUser registers an additional account.
func WithUser(password string, profile session.Profile) Option {
	return func(s *Server) {
		s.accounts[profile.Username] = account{password: password, profile: profile}
	}
}

// NewServer starts a fake backend. Call Close when done.
func NewServer(opts ...Option) *Server {
	s := &Server{
		accessTTL: 30 * time.Minute,
		accounts: map[string]account{
			DefaultUsername: {password: DefaultPassword, profile: DefaultProfile},
		},
		grants: make(map[string]refreshGrant),
		access: make(map[string]string),
		calls:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     s.accessTTL,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte(uuid.NewString()),
		Issuer:        "authtest",
	})
	if err != nil {
		panic("authtest: " + err.Error())
	}
	s.jwt = jm

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/refresh", s.handleRefresh)
	mux.Handle("GET /auth/me", s.guard(http.HandlerFunc(s.handleMe)))
	mux.Handle("POST /auth/logout", s.guard(http.HandlerFunc(s.handleLogout)))
	mux.Handle("/protected/", s.guard(http.HandlerFunc(s.handleProtected)))
	mux.Handle("/status/", s.guard(http.HandlerFunc(s.handleStatus)))

	s.Server = httptest.NewServer(s.count(mux))
	return s
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	s.access = make(map[string]string)
	s.mu.Unlock()
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	s.grants = make(map[string]refreshGrant)
	s.mu.Unlock()
}

// SetRefreshDelay holds every refresh response for d.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

// FailRefresh makes /auth/refresh answer with status. Zero restores normal
// behavior.
func (s *Server) FailRefresh(status int) {
	s.refreshStatus.Store(int32(status))
}

// Calls reports how many requests hit path.
func (s *Server) Calls(path string) int {
	s.callsMu.Lock()
	defer s.callsMu.Unlock()
	return s.calls[path]
}

// IssuePair mints a valid token pair for username without a login call.
func (s *Server) IssuePair(username string) (accessToken, refreshToken string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[username]
	if !ok {
		return "", "", errUnknownUser
	}
	return s.issueLocked(acct.profile, uuid.NewString())
}

func (s *Server) issueLocked(p session.Profile, sid string) (string, string, error) {
	accessToken, err := s.jwt.CreateAccess(p.ID, p.Username, sid, 0)
	if err != nil {
		return "", "", err
	}
	refreshToken := uuid.NewString()
	s.access[accessToken] = sid
	s.grants[refreshToken] = refreshGrant{username: p.Username, sid: sid}
	return accessToken, refreshToken, nil
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.callsMu.Lock()
		s.calls[r.URL.Path]++
		s.callsMu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[body.Username]
	if !ok || acct.password != body.Password {
		s.mu.Unlock()
		writeMessage(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	accessToken, refreshToken, err := s.issueLocked(acct.profile, uuid.NewString())
	s.mu.Unlock()
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	p := acct.profile
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           p.ID,
		"username":     p.Username,
		"email":        p.Email,
		"firstName":    p.FirstName,
		"lastName":     p.LastName,
		"gender":       p.Gender,
		"image":        p.Image,
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}
	if status := int(s.refreshStatus.Load()); status != 0 {
		writeMessage(w, status, "refresh rejected")
		return
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		writeMessage(w, http.StatusUnauthorized, "Refresh token required")
		return
	}

	s.mu.Lock()
	grant, ok := s.grants[body.RefreshToken]
	if !ok {
		s.mu.Unlock()
		writeMessage(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	delete(s.grants, body.RefreshToken)
	acct := s.accounts[grant.username]
	accessToken, refreshToken, err := s.issueLocked(acct.profile, grant.sid)
	s.mu.Unlock()
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"accessToken":  accessToken,
		"refreshToken": refreshToken,
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	s.mu.Lock()
	acct, ok := s.accounts[claims.Username]
	s.mu.Unlock()
	if !ok {
		writeMessage(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, acct.profile)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	s.mu.Lock()
	for token, sid := range s.access {
		if sid == claims.SID {
			delete(s.access, token)
		}
	}
	for token, grant := range s.grants {
		if grant.sid == claims.SID {
			delete(s.grants, token)
		}
	}
	s.mu.Unlock()
	writeMessage(w, http.StatusOK, "logged out")
}

func (s *Server) handleProtected(w http.ResponseWriter, r *http.Request) {
	claims, _ := claimsFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"method":   r.Method,
		"path":     r.URL.Path,
		"username": claims.Username,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/status/"))
	if err != nil {
		status = 0
	}
	if status < 100 || status > 599 {
		writeMessage(w, http.StatusBadRequest, "bad status")
		return
	}
	writeMessage(w, status, http.StatusText(status))
}

type claimsContextKey struct{}

func claimsFromContext(ctx context.Context) (*jwt.AccessClaims, bool) {
	c, ok := ctx.Value(claimsContextKey{}).(*jwt.AccessClaims)
	if !ok {
		return &jwt.AccessClaims{}, false
	}
	return c, true
}

// guard rejects requests without a live, correctly signed bearer token.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			writeMessage(w, http.StatusUnauthorized, "Access Token is required")
			return
		}

		claims, err := s.jwt.ParseAccess(token)
		if err != nil {
			writeMessage(w, http.StatusUnauthorized, "Invalid/Expired Token!")
			return
		}
		s.mu.Lock()
		_, live := s.access[token]
		s.mu.Unlock()
		if !live {
			writeMessage(w, http.StatusUnauthorized, "Token Expired!")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

var errUnknownUser = errors.New("authtest: unknown user")
