package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/linkrelay/panel/internal/api/session"
	"github.com/linkrelay/panel/internal/core/domain"
)

// RequireSession rejects API requests without a valid session cookie and
// places the decoded session on the context. A bad cookie is cleared.
func RequireSession(store *session.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess, present := store.Load(c)
			if sess == nil {
				if present {
					store.Clear(c)
					return domain.ErrInvalidSession
				}
				return domain.ErrUnauthenticated
			}
			session.Set(c, sess)
			return next(c)
		}
	}
}

// RBAC enforces role-based access control on the session's real role.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			sess := session.FromContext(c)
			if sess == nil {
				return domain.ErrUnauthenticated
			}
			if _, ok := allowed[sess.Role]; !ok {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
