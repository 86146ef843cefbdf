package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/linkrelay/panel/internal/api/metrics"
	"github.com/linkrelay/panel/internal/api/session"
	"github.com/linkrelay/panel/internal/core/domain"
)

const (
	adminPrefix    = "/admin"
	adminLoginPath = "/admin/login"
	userLoginPath  = "/login"
	adminHome      = "/admin"
	userHome       = "/dashboard"
)

// publicPaths are reachable without a session, as exact paths or prefixes
// followed by "/".
var publicPaths = []string{
	userLoginPath,
	adminLoginPath,
	"/api/auth/login",
	"/health",
	"/metrics",
	"/swagger",
	"/assets",
	"/favicon.ico",
}

// Gate is the edge check for page routes. It only verifies the token
// signature and reads the role claim; it never touches storage. Everything
// under /api passes through and is authorized by the handlers.
func Gate(store *session.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path

			if isPublic(path) {
				metrics.GateDecisionsTotal.WithLabelValues("public").Inc()
				return next(c)
			}
			if hasPrefix(path, "/api") {
				metrics.GateDecisionsTotal.WithLabelValues("api").Inc()
				return next(c)
			}

			sess, present := store.Load(c)
			if sess == nil {
				decision := "login_redirect"
				if present {
					decision = "invalid_session"
					store.Clear(c)
				}
				metrics.GateDecisionsTotal.WithLabelValues(decision).Inc()
				return c.Redirect(http.StatusFound, loginRedirect(path))
			}
			session.Set(c, sess)

			if hasPrefix(path, adminPrefix) && sess.Role != domain.RoleAdmin {
				metrics.GateDecisionsTotal.WithLabelValues("role_redirect").Inc()
				return c.Redirect(http.StatusFound, userHome)
			}
			if path == "/" {
				metrics.GateDecisionsTotal.WithLabelValues("root_redirect").Inc()
				if sess.Role == domain.RoleAdmin {
					return c.Redirect(http.StatusFound, adminHome)
				}
				return c.Redirect(http.StatusFound, userHome)
			}

			metrics.GateDecisionsTotal.WithLabelValues("allow").Inc()
			return next(c)
		}
	}
}

func loginRedirect(path string) string {
	if hasPrefix(path, adminPrefix) {
		return adminLoginPath
	}
	return userLoginPath + "?" + url.Values{"from": {path}}.Encode()
}

func isPublic(path string) bool {
	for _, p := range publicPaths {
		if hasPrefix(path, p) {
			return true
		}
	}
	return false
}

// hasPrefix matches prefix as a whole path segment.
func hasPrefix(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
