package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/linkrelay/panel/internal/api/metrics"
	"github.com/linkrelay/panel/internal/api/session"
	"github.com/linkrelay/panel/internal/core/domain"
	"github.com/linkrelay/panel/internal/core/ports"
)

type ImpersonationHandler struct {
	impersonator ports.Impersonator
	identity     ports.IdentityResolver
	store        *session.Store
}

func NewImpersonationHandler(impersonator ports.Impersonator, identity ports.IdentityResolver, store *session.Store) *ImpersonationHandler {
	return &ImpersonationHandler{impersonator: impersonator, identity: identity, store: store}
}

// Enter starts viewing the panel as a member and re-issues the cookie.
//
// @Summary      Start impersonation
// @Tags         impersonation
// @Accept       json
// @Produce      json
// @Param        body  body      impersonateRequest  true  "Target member"
// @Success      200   {object}  impersonationResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/impersonate [post]
func (h *ImpersonationHandler) Enter(c echo.Context) error {
	sess := session.FromContext(c)
	if sess == nil {
		return domain.ErrUnauthenticated
	}

	var req impersonateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	next, err := h.impersonator.Enter(ctx, *sess, req.TargetUserID, ClientIP(c))
	if err != nil {
		metrics.ImpersonationTransitionsTotal.WithLabelValues("enter", "rejected").Inc()
		return err
	}

	id, err := h.identity.Resolve(ctx, &next)
	if err != nil {
		return err
	}
	if err := h.store.Save(c, next); err != nil {
		return err
	}
	metrics.ImpersonationTransitionsTotal.WithLabelValues("enter", "ok").Inc()

	target := toPublicUser(id.Effective())
	return c.JSON(http.StatusOK, impersonationResponse{
		Success:         true,
		Message:         "now viewing as " + displayName(id.Effective()),
		IsImpersonating: true,
		User:            &target,
	})
}

// Exit returns to the admin's own identity and reports who the caller now is.
// Without an active impersonation the cookie is left untouched.
//
// @Summary      Stop impersonation
// @Tags         impersonation
// @Produce      json
// @Success      200  {object}  impersonationResponse
// @Failure      401  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/impersonate [delete]
func (h *ImpersonationHandler) Exit(c echo.Context) error {
	sess := session.FromContext(c)
	if sess == nil {
		return domain.ErrUnauthenticated
	}

	ctx := c.Request().Context()
	next, changed := h.impersonator.Exit(ctx, *sess, ClientIP(c))

	id, err := h.identity.Resolve(ctx, &next)
	if err != nil {
		return err
	}
	self := toPublicUser(id.Effective())

	if !changed {
		metrics.ImpersonationTransitionsTotal.WithLabelValues("exit", "noop").Inc()
		return c.JSON(http.StatusOK, impersonationResponse{Success: true, Message: "not impersonating", User: &self})
	}

	if err := h.store.Save(c, next); err != nil {
		return err
	}
	metrics.ImpersonationTransitionsTotal.WithLabelValues("exit", "ok").Inc()
	return c.JSON(http.StatusOK, impersonationResponse{
		Success: true,
		Message: "returned to your own panel",
		User:    &self,
	})
}
