package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/thejerf/abtime"
	"golang.org/x/crypto/bcrypt"

	"github.com/linkrelay/panel/internal/api/session"
	"github.com/linkrelay/panel/internal/core/domain"
	"github.com/linkrelay/panel/internal/core/service"
	"github.com/linkrelay/panel/internal/infrastructure/ratelimit"
	jwtsession "github.com/linkrelay/panel/internal/infrastructure/session"
)

// memActors is a map-backed ports.ActorRepository.
type memActors struct {
	mu   sync.Mutex
	byID map[int64]*domain.Actor
}

func (m *memActors) FindByID(_ context.Context, id int64) (*domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrActorNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memActors) FindByUsername(_ context.Context, username string) (*domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byID {
		if strings.EqualFold(a.Username, username) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrActorNotFound
}

func (m *memActors) Create(_ context.Context, a *domain.Actor) (*domain.Actor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = int64(len(m.byID) + 1)
	m.byID[a.ID] = a
	return a, nil
}

func (m *memActors) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id].PasswordHash = hash
	return nil
}

// SaveStatus makes memActors a ports.StatusRepository without assignments.
func (m *memActors) SaveStatus(_ context.Context, a *domain.Actor, _ bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	m.byID[a.ID] = &cp
	return 0, nil
}

func (m *memActors) BumpCacheVersion(context.Context) error { return nil }

type testServer struct {
	e      *echo.Echo
	actors *memActors
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	hasher := service.NewBcryptHasher(bcrypt.MinCost)
	hash := func(pw string) string {
		h, err := hasher.Hash(pw)
		if err != nil {
			t.Fatalf("hash: %v", err)
		}
		return h
	}
	actors := &memActors{byID: map[int64]*domain.Actor{
		1: {ID: 1, Username: "root", PasswordHash: hash("rootpass"), Role: domain.RoleAdmin, IsActive: true},
		2: {ID: 2, Username: "alice", PasswordHash: hash("alicepass"), Role: domain.RoleUser, DisplayName: "Alice", IsActive: true},
	}}

	clock := abtime.NewRealTime()
	codec, err := jwtsession.NewJWTCodec("router-secret", clock)
	if err != nil {
		t.Fatalf("codec: %v", err)
	}
	log := zerolog.Nop()
	limiter := ratelimit.NewMemory(domain.DefaultThrottlePolicy(), clock)
	identity := service.NewIdentityService(actors)

	e := NewRouter(Deps{
		Auth:          service.NewAuthService(actors, hasher, limiter, nil, clock, log),
		Identity:      identity,
		Impersonation: service.NewImpersonationService(actors, nil, clock, log),
		Accounts:      service.NewAccountService(actors, actors, hasher, nil, clock, log),
		Sessions:      session.NewStore(codec, false),
		Registry:      prometheus.NewRegistry(),
		Log:           log,
	})
	return &testServer{e: e, actors: actors}
}

func (s *testServer) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge > 0 {
			return c
		}
	}
	t.Fatalf("no session cookie in response (status %d, body %s)", rec.Code, rec.Body.String())
	return nil
}

func (s *testServer) login(t *testing.T, username, password string) *http.Cookie {
	t.Helper()
	rec := s.do(http.MethodPost, "/api/auth/login", `{"username":"`+username+`","password":"`+password+`"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", username, rec.Code, rec.Body.String())
	}
	return sessionCookie(t, rec)
}

type meBody struct {
	User struct {
		ID              int64  `json:"id"`
		Role            string `json:"role"`
		IsImpersonating bool   `json:"isImpersonating"`
		RealUser        *struct {
			ID int64 `json:"id"`
		} `json:"realUser"`
	} `json:"user"`
}

func (s *testServer) me(t *testing.T, cookie *http.Cookie) meBody {
	t.Helper()
	rec := s.do(http.MethodGet, "/api/auth/me", "", cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body meBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	return body
}

func TestRouter_ImpersonationFlow(t *testing.T) {
	s := newTestServer(t)
	admin := s.login(t, "root", "rootpass")

	rec := s.do(http.MethodPost, "/api/impersonate", `{"targetUserId":2}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("enter: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	impersonating := sessionCookie(t, rec)

	me := s.me(t, impersonating)
	if me.User.ID != 2 || !me.User.IsImpersonating || me.User.RealUser == nil || me.User.RealUser.ID != 1 {
		t.Fatalf("unexpected identity while impersonating: %+v", me.User)
	}

	// Admin pages stay reachable; the role claim is still admin.
	if rec := s.do(http.MethodGet, "/admin", "", impersonating); rec.Code == http.StatusFound {
		t.Fatalf("admin page redirected while impersonating: %s", rec.Header().Get("Location"))
	}

	rec = s.do(http.MethodDelete, "/api/impersonate", "", impersonating)
	if rec.Code != http.StatusOK {
		t.Fatalf("exit: expected 200, got %d", rec.Code)
	}
	back := sessionCookie(t, rec)
	if me := s.me(t, back); me.User.ID != 1 || me.User.IsImpersonating || me.User.RealUser != nil {
		t.Fatalf("unexpected identity after exit: %+v", me.User)
	}
}

func TestRouter_MemberCannotImpersonate(t *testing.T) {
	s := newTestServer(t)
	member := s.login(t, "alice", "alicepass")

	rec := s.do(http.MethodPost, "/api/impersonate", `{"targetUserId":1}`, member)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestRouter_BanTakesEffectOnNextRequest(t *testing.T) {
	s := newTestServer(t)
	member := s.login(t, "alice", "alicepass")
	admin := s.login(t, "root", "rootpass")

	rec := s.do(http.MethodPatch, "/api/users/2/status", `{"isBanned":true,"bannedReason":"spam"}`, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("ban: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = s.do(http.MethodGet, "/api/auth/me", "", member)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for banned member, got %d", rec.Code)
	}
	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.BannedReason != "spam" {
		t.Fatalf("bannedReason = %q", body.BannedReason)
	}
}

func TestRouter_LoginThrottle(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < domain.DefaultMaxLoginAttempts; i++ {
		rec := s.do(http.MethodPost, "/api/auth/login", `{"username":"root","password":"wrong"}`, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, rec.Code)
		}
	}

	rec := s.do(http.MethodPost, "/api/auth/login", `{"username":"root","password":"rootpass"}`, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after the limit, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("missing throttle headers: %v", rec.Header())
	}

	rec = s.do(http.MethodPost, "/api/auth/login", "", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("locked-out client with an empty body: expected 429, got %d", rec.Code)
	}
}

func TestTrustedIPExtractor(t *testing.T) {
	_, lb, _ := net.ParseCIDR("10.20.0.0/16")
	extract := trustedIPExtractor([]*net.IPNet{lb})

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	req.Header.Set(echo.HeaderXForwardedFor, "1.2.3.4")
	req.RemoteAddr = "198.51.100.20:4000"
	if got := extract(req); got != "198.51.100.20" {
		t.Fatalf("untrusted peer: expected socket address, got %q", got)
	}

	req.RemoteAddr = "10.20.1.1:4000"
	if got := extract(req); got != "1.2.3.4" {
		t.Fatalf("trusted proxy: expected forwarded client, got %q", got)
	}
}

func TestRouter_APIWithoutSession(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/api/auth/me", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); !strings.HasPrefix(ct, echo.MIMEApplicationJSON) {
		t.Fatalf("API errors must be JSON, got %q", ct)
	}
}

func TestRouter_PagesRedirectWithoutSession(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodGet, "/dashboard", "", nil)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login?from=%2Fdashboard" {
		t.Fatalf("Location = %q", loc)
	}
}

func TestRouter_HealthIsPublic(t *testing.T) {
	s := newTestServer(t)
	if rec := s.do(http.MethodGet, "/health", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := s.do(http.MethodGet, "/health/ready", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("readiness with no checks: expected 200, got %d", rec.Code)
	}
}

func TestRouter_LogoutAlwaysSucceeds(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(http.MethodPost, "/api/auth/logout", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
