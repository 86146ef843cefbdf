package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/linkrelay/panel/internal/core/domain"
	"github.com/linkrelay/panel/internal/core/ports"
)

type AccountHandler struct {
	accounts ports.AccountManager
	identity ports.IdentityResolver
}

func NewAccountHandler(accounts ports.AccountManager, identity ports.IdentityResolver) *AccountHandler {
	return &AccountHandler{accounts: accounts, identity: identity}
}

// ChangePassword updates a password. Members change their own and must send
// the current one; admins may reset anyone's.
//
// @Summary      Change password
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        id    path      int                    true  "User ID"
// @Param        body  body      changePasswordRequest  true  "Passwords"
// @Success      200   {object}  statusResponse
// @Failure      400   {object}  map[string]string
// @Failure      401   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Router       /api/users/{id}/password [patch]
func (h *AccountHandler) ChangePassword(c echo.Context) error {
	userID, err := pathID(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	id, err := resolveAuthorized(c, h.identity)
	if err != nil {
		return err
	}

	err = h.accounts.ChangePassword(c.Request().Context(), id, ports.ChangePasswordInput{
		TargetUserID:    userID,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
		ClientIP:        ClientIP(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, statusResponse{Success: true})
}

// UpdateStatus activates, deactivates, bans or unbans a member.
//
// @Summary      Update member status
// @Tags         accounts
// @Accept       json
// @Produce      json
// @Param        id    path      int                  true  "User ID"
// @Param        body  body      updateStatusRequest  true  "Status change"
// @Success      200   {object}  accountStatusResponse
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/users/{id}/status [patch]
func (h *AccountHandler) UpdateStatus(c echo.Context) error {
	userID, err := pathID(c)
	if err != nil {
		return err
	}

	var req updateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.IsActive == nil && req.IsBanned == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "isActive or isBanned is required")
	}

	id, err := resolveAuthorized(c, h.identity)
	if err != nil {
		return err
	}

	actor, err := h.accounts.SetStatus(c.Request().Context(), id, userID, domain.AccountStatus{
		IsActive:     req.IsActive,
		IsBanned:     req.IsBanned,
		BannedReason: req.BannedReason,
	}, ClientIP(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, accountStatusResponse{Success: true, User: actor})
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	return id, nil
}
