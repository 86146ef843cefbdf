// Package session keeps the signed session token in the "session" cookie.
package session

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/linkrelay/panel/internal/core/domain"
	"github.com/linkrelay/panel/internal/core/ports"
)

const (
	CookieName = "session"
	contextKey = "session"
)

// Store reads and writes session cookies through a codec.
type Store struct {
	codec  ports.SessionCodec
	secure bool
}

// NewStore returns a Store. secure marks cookies Secure and is set in
// production.
func NewStore(codec ports.SessionCodec, secure bool) *Store {
	return &Store{codec: codec, secure: secure}
}

// Save issues a new token for sess and replaces the cookie.
func (s *Store) Save(c echo.Context, sess domain.Session) error {
	token, expiresAt, err := s.codec.Issue(sess)
	if err != nil {
		return err
	}
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(domain.SessionTTL / time.Second),
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	Set(c, &sess)
	return nil
}

// Load returns the verified session, or nil when the cookie is absent or
// fails verification. present tells the two cases apart for callers that
// must clear a bad cookie.
func (s *Store) Load(c echo.Context) (sess *domain.Session, present bool) {
	cookie, err := c.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, false
	}
	sess, err = s.codec.Parse(cookie.Value)
	if err != nil {
		return nil, true
	}
	return sess, true
}

// Clear deletes the cookie. Calling it without a cookie is harmless.
func (s *Store) Clear(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	c.Set(contextKey, nil)
}

// Set stores a verified session on the echo context.
func Set(c echo.Context, sess *domain.Session) {
	c.Set(contextKey, sess)
}

// FromContext returns the session put there by the Gate, RequireSession or Save.
func FromContext(c echo.Context) *domain.Session {
	sess, _ := c.Get(contextKey).(*domain.Session)
	return sess
}
