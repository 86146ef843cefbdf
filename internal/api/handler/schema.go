package handler

import (
	"time"

	"github.com/linkrelay/panel/internal/core/domain"
)

// ── Requests ──────────────────────────────────────────────────────────────────

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type impersonateRequest struct {
	TargetUserID int64 `json:"targetUserId" validate:"required,gt=0"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type updateStatusRequest struct {
	IsActive     *bool  `json:"isActive"`
	IsBanned     *bool  `json:"isBanned"`
	BannedReason string `json:"bannedReason" validate:"max=500"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

type publicUser struct {
	ID          int64       `json:"id"`
	Username    string      `json:"username"`
	DisplayName string      `json:"displayName,omitempty"`
	Role        domain.Role `json:"role"`
}

type loginResponse struct {
	Success bool       `json:"success"`
	User    publicUser `json:"user"`
}

type realUser struct {
	ID       int64       `json:"id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
}

type meUser struct {
	ID               int64       `json:"id"`
	Username         string      `json:"username"`
	DisplayName      string      `json:"displayName,omitempty"`
	Role             domain.Role `json:"role"`
	TelegramUsername string      `json:"telegramUsername,omitempty"`
	PhotoURL         string      `json:"photoUrl,omitempty"`
	IsActive         bool        `json:"isActive"`
	IsBanned         bool        `json:"isBanned"`
	BannedReason     string      `json:"bannedReason,omitempty"`
	BotEnabled       bool        `json:"botEnabled"`
	CreatedAt        time.Time   `json:"createdAt"`
	IsImpersonating  bool        `json:"isImpersonating"`
	RealUser         *realUser   `json:"realUser"`
}

type meResponse struct {
	User meUser `json:"user"`
}

type impersonationResponse struct {
	Success         bool        `json:"success"`
	Message         string      `json:"message"`
	IsImpersonating bool        `json:"isImpersonating"`
	User            *publicUser `json:"user,omitempty"`
}

type statusResponse struct {
	Success bool `json:"success"`
}

type accountStatusResponse struct {
	Success bool          `json:"success"`
	User    *domain.Actor `json:"user"`
}

// ── Mappers ───────────────────────────────────────────────────────────────────

func toPublicUser(a *domain.Actor) publicUser {
	return publicUser{ID: a.ID, Username: a.Username, DisplayName: a.DisplayName, Role: a.Role}
}

func toMeResponse(id domain.Identity) meResponse {
	eff := id.Effective()
	out := meUser{
		ID:               eff.ID,
		Username:         eff.Username,
		DisplayName:      eff.DisplayName,
		Role:             eff.Role,
		TelegramUsername: eff.TelegramUsername,
		PhotoURL:         eff.PhotoURL,
		IsActive:         eff.IsActive,
		IsBanned:         eff.IsBanned,
		BannedReason:     eff.BannedReason,
		BotEnabled:       eff.BotEnabled,
		CreatedAt:        eff.CreatedAt,
		IsImpersonating:  id.Impersonating(),
	}
	if id.Impersonating() {
		r := id.Real()
		out.RealUser = &realUser{ID: r.ID, Username: r.Username, Role: r.Role}
	}
	return meResponse{User: out}
}

func displayName(a *domain.Actor) string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Username
}
