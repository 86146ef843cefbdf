package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/linkrelay/panel/internal/api/session"
	"github.com/linkrelay/panel/internal/core/domain"
	"github.com/linkrelay/panel/internal/core/ports"
	jwtsession "github.com/linkrelay/panel/internal/infrastructure/session"
)

// --- stub ports ---

type stubAuth struct {
	res         *ports.LoginResult
	err         error
	got         ports.LoginInput
	throttleErr error
	checkedFor  string
}

func (s *stubAuth) CheckThrottle(_ context.Context, clientID string) error {
	s.checkedFor = clientID
	return s.throttleErr
}

func (s *stubAuth) Login(_ context.Context, in ports.LoginInput) (*ports.LoginResult, error) {
	s.got = in
	return s.res, s.err
}

// stubIdentity resolves sessions from a fixed actor table and applies the
// real suspension policy.
type stubIdentity struct {
	actors map[int64]*domain.Actor
}

func (s *stubIdentity) CurrentActor(_ context.Context, sess *domain.Session) (*domain.Actor, error) {
	a, ok := s.actors[sess.UserID]
	if !ok {
		return nil, domain.ErrActorNotFound
	}
	return a, nil
}

func (s *stubIdentity) Resolve(ctx context.Context, sess *domain.Session) (domain.Identity, error) {
	actor, err := s.CurrentActor(ctx, sess)
	if err != nil {
		return nil, err
	}
	if sess.ImpersonatingUserID == nil {
		return domain.Direct{Actor: actor}, nil
	}
	target, ok := s.actors[*sess.ImpersonatingUserID]
	if !ok {
		return nil, domain.ErrImpersonationTargetGone
	}
	return domain.NewImpersonation(actor, target)
}

func (s *stubIdentity) Authorize(id domain.Identity) error {
	return domain.CheckAccess(id)
}

type stubImpersonator struct {
	enterErr error
	exited   bool
}

func (s *stubImpersonator) Enter(_ context.Context, sess domain.Session, targetUserID int64, _ string) (domain.Session, error) {
	if s.enterErr != nil {
		return domain.Session{}, s.enterErr
	}
	return sess.WithImpersonation(targetUserID), nil
}

func (s *stubImpersonator) Exit(_ context.Context, sess domain.Session, _ string) (domain.Session, bool) {
	if !sess.Impersonating() {
		return sess, false
	}
	s.exited = true
	return sess.WithoutImpersonation(), true
}

type stubAccounts struct {
	pwIn      ports.ChangePasswordInput
	pwBy      domain.Identity
	pwErr     error
	statusID  int64
	status    domain.AccountStatus
	statusErr error
}

func (s *stubAccounts) ChangePassword(_ context.Context, by domain.Identity, in ports.ChangePasswordInput) error {
	s.pwBy, s.pwIn = by, in
	return s.pwErr
}

func (s *stubAccounts) SetStatus(_ context.Context, _ domain.Identity, userID int64, status domain.AccountStatus, _ string) (*domain.Actor, error) {
	s.statusID, s.status = userID, status
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &domain.Actor{ID: userID, Username: "alice", Role: domain.RoleUser}, nil
}

// --- fixtures ---

func adminActor() *domain.Actor {
	return &domain.Actor{ID: 1, Username: "root", Role: domain.RoleAdmin, DisplayName: "Super Admin", IsActive: true}
}

func memberActor() *domain.Actor {
	return &domain.Actor{
		ID:          2,
		Username:    "alice",
		Role:        domain.RoleUser,
		DisplayName: "Alice",
		IsActive:    true,
		BotEnabled:  true,
		CreatedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func actorTable(actors ...*domain.Actor) *stubIdentity {
	m := make(map[int64]*domain.Actor, len(actors))
	for _, a := range actors {
		m[a.ID] = a
	}
	return &stubIdentity{actors: m}
}

type harness struct {
	e     *echo.Echo
	codec *jwtsession.JWTCodec
	store *session.Store
}

func newHarness(t *testing.T) harness {
	t.Helper()
	codec, err := jwtsession.NewJWTCodec("handler-secret", nil)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	e := echo.New()
	e.Validator = NewValidator()
	return harness{e: e, codec: codec, store: session.NewStore(codec, false)}
}

// request builds a context with an optional JSON body and session already on
// it, the way RequireSession leaves it.
func (h harness) request(method, target, body string, sess *domain.Session) (echo.Context, *httptest.ResponseRecorder) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.RemoteAddr = "203.0.113.7:5555"
	rec := httptest.NewRecorder()
	c := h.e.NewContext(req, rec)
	if sess != nil {
		session.Set(c, sess)
	}
	return c, rec
}

// issuedSession decodes the session cookie set on rec, or fails the test.
func (h harness) issuedSession(t *testing.T, rec *httptest.ResponseRecorder) *domain.Session {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name != session.CookieName {
			continue
		}
		if !c.HttpOnly || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
			t.Fatalf("unexpected cookie attributes: %+v", c)
		}
		sess, err := h.codec.Parse(c.Value)
		if err != nil {
			t.Fatalf("parse issued cookie: %v", err)
		}
		return sess
	}
	t.Fatal("no session cookie set")
	return nil
}

func hasCookie(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			return true
		}
	}
	return false
}

func httpCode(t *testing.T, err error) int {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected *echo.HTTPError, got %T (%v)", err, err)
	}
	return he.Code
}
