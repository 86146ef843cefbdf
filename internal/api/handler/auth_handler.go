package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/linkrelay/panel/internal/api/metrics"
	"github.com/linkrelay/panel/internal/api/session"
	"github.com/linkrelay/panel/internal/core/domain"
	"github.com/linkrelay/panel/internal/core/ports"
)

type AuthHandler struct {
	authService ports.AuthService
	identity    ports.IdentityResolver
	store       *session.Store
}

func NewAuthHandler(authService ports.AuthService, identity ports.IdentityResolver, store *session.Store) *AuthHandler {
	return &AuthHandler{authService: authService, identity: identity, store: store}
}

// Login authenticates an admin or member and sets the session cookie.
//
// @Summary      Login
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Login credentials"
// @Success      200   {object}  loginResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      429   {object}  map[string]any
// @Router       /api/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	clientID := ClientIP(c)

	// A locked-out client gets 429 whatever the body holds.
	if err := h.authService.CheckThrottle(ctx, clientID); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(loginResult(err)).Inc()
		return err
	}

	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.authService.Login(ctx, ports.LoginInput{
		Username: req.Username,
		Password: req.Password,
		ClientID: clientID,
	})
	if err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues(loginResult(err)).Inc()
		return err
	}

	if err := h.store.Save(c, res.Session); err != nil {
		metrics.LoginAttemptsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()

	return c.JSON(http.StatusOK, loginResponse{Success: true, User: toPublicUser(res.Actor)})
}

// Logout clears the session cookie. It succeeds with or without a session.
//
// @Summary      Logout
// @Tags         auth
// @Produce      json
// @Success      200  {object}  statusResponse
// @Router       /api/auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	h.store.Clear(c)
	return c.JSON(http.StatusOK, statusResponse{Success: true})
}

// Me returns the effective actor of the session and, while impersonating,
// the real admin.
//
// @Summary      Current identity
// @Tags         auth
// @Produce      json
// @Success      200  {object}  meResponse
// @Failure      401  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	id, err := resolveAuthorized(c, h.identity)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toMeResponse(id))
}

// resolveAuthorized loads the identity of the request session and applies the
// suspension policy.
func resolveAuthorized(c echo.Context, identity ports.IdentityResolver) (domain.Identity, error) {
	sess := session.FromContext(c)
	if sess == nil {
		return nil, domain.ErrUnauthenticated
	}
	id, err := identity.Resolve(c.Request().Context(), sess)
	if err != nil {
		return nil, err
	}
	if err := identity.Authorize(id); err != nil {
		return nil, err
	}
	return id, nil
}

func loginResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return "throttled"
	case errors.Is(err, domain.ErrAccountSuspended):
		return "suspended"
	case errors.Is(err, domain.ErrInvalidCredentials):
		return "invalid"
	default:
		return "error"
	}
}
