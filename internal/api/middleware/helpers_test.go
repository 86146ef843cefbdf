package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/linkrelay/panel/internal/api/session"
	"github.com/linkrelay/panel/internal/core/domain"
	jwtsession "github.com/linkrelay/panel/internal/infrastructure/session"
)

type testSessions struct {
	codec *jwtsession.JWTCodec
	store *session.Store
}

func newTestSessions(t *testing.T) testSessions {
	t.Helper()
	codec, err := jwtsession.NewJWTCodec("middleware-secret", nil)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	return testSessions{codec: codec, store: session.NewStore(codec, false)}
}

func (s testSessions) cookie(t *testing.T, sess domain.Session) *http.Cookie {
	t.Helper()
	token, _, err := s.codec.Issue(sess)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return &http.Cookie{Name: session.CookieName, Value: token}
}

func newContext(method, target string, cookie *http.Cookie) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func adminSession() domain.Session {
	return domain.Session{UserID: 1, Username: "root", Role: domain.RoleAdmin}
}

func userSession() domain.Session {
	return domain.Session{UserID: 2, Username: "alice", Role: domain.RoleUser}
}

func clearedCookie(rec *httptest.ResponseRecorder) bool {
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			return true
		}
	}
	return false
}
