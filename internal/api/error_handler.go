package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/linkrelay/panel/internal/core/domain"
	"github.com/linkrelay/panel/pkg/logger"
)

// errorResponse is the canonical error envelope for all API errors.
type errorResponse struct {
	Error        string `json:"error"`
	BannedReason string `json:"bannedReason,omitempty"`
	RetryAfter   int    `json:"retryAfter,omitempty"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their appropriate HTTP status codes.
//   - Adds the retry headers to throttled logins.
//   - Logs unexpected errors internally without leaking details to the client.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, errorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, errorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	var rl *domain.RateLimitError
	if errors.As(err, &rl) {
		retry := rl.RetryAfterSeconds()
		h := c.Response().Header()
		h.Set("Retry-After", strconv.Itoa(retry))
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.Limit))
		h.Set("X-RateLimit-Remaining", "0")
		h.Set("X-RateLimit-Reset", strconv.FormatInt(rl.ResetAt.UnixMilli(), 10))
		return http.StatusTooManyRequests, errorResponse{Error: rl.Error(), RetryAfter: retry}
	}

	var se *domain.SuspensionError
	if errors.As(err, &se) {
		return http.StatusForbidden, errorResponse{Error: se.Error(), BannedReason: se.Reason}
	}

	// Known domain errors → deterministic HTTP codes.
	switch {
	case errors.Is(err, domain.ErrUnauthenticated), errors.Is(err, domain.ErrInvalidSession):
		return http.StatusUnauthorized, errorResponse{Error: "not authenticated"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, errorResponse{Error: domain.ErrInvalidCredentials.Error()}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, errorResponse{Error: "access forbidden"}
	case errors.Is(err, domain.ErrImpersonationTargetGone):
		return http.StatusNotFound, errorResponse{Error: domain.ErrImpersonationTargetGone.Error()}
	case errors.Is(err, domain.ErrActorNotFound):
		return http.StatusNotFound, errorResponse{Error: "user not found"}
	case errors.Is(err, domain.ErrTargetNotFound):
		return http.StatusNotFound, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrTargetInactive),
		errors.Is(err, domain.ErrTargetBanned),
		errors.Is(err, domain.ErrWeakPassword),
		errors.Is(err, domain.ErrCurrentPasswordRequired),
		errors.Is(err, domain.ErrCurrentPasswordMismatch):
		return http.StatusBadRequest, errorResponse{Error: err.Error()}
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, errorResponse{Error: "user already exists"}
	}

	// Unexpected error: log the real cause, return a generic message. The
	// request logger carries the request id when logger.Middleware ran.
	ctx := c.Request().Context()
	if zerolog.Ctx(ctx).GetLevel() == zerolog.Disabled {
		ctx = log.WithContext(ctx)
	}
	logger.FromContext(ctx).Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, errorResponse{Error: "internal server error"}
}
