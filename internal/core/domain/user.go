package domain

import "time"

// Role discriminates the two kinds of actor stored in the same table.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Actor models an authenticated identity: an admin or a member user.
// Admins have no ban/active concept; those fields are ignored for RoleAdmin.
type Actor struct {
	ID               int64      `json:"id"`
	Username         string     `json:"username"`
	PasswordHash     string     `json:"-"`
	Role             Role       `json:"role"`
	DisplayName      string     `json:"displayName,omitempty"`
	TelegramID       *int64     `json:"telegramId,omitempty"`
	TelegramUsername string     `json:"telegramUsername,omitempty"`
	FirstName        string     `json:"firstName,omitempty"`
	LastName         string     `json:"lastName,omitempty"`
	PhotoURL         string     `json:"photoUrl,omitempty"`
	LastSeen         *time.Time `json:"lastSeen,omitempty"`
	IsActive         bool       `json:"isActive"`
	IsBanned         bool       `json:"isBanned"`
	BannedAt         *time.Time `json:"bannedAt,omitempty"`
	BannedReason     string     `json:"bannedReason,omitempty"`
	BotEnabled       bool       `json:"botEnabled"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (a *Actor) IsAdmin() bool { return a != nil && a.Role == RoleAdmin }

// Suspension returns the reason a member may not act, or nil. Deactivation
// is checked before the ban. Admins are never suspended.
func (a *Actor) Suspension() *SuspensionError {
	if a == nil || a.Role != RoleUser {
		return nil
	}
	if !a.IsActive {
		return &SuspensionError{Kind: SuspensionInactive}
	}
	if a.IsBanned {
		return &SuspensionError{Kind: SuspensionBanned, Reason: a.BannedReason}
	}
	return nil
}

// AccountStatus is a partial update of a member's standing. Nil fields are
// left unchanged.
type AccountStatus struct {
	IsActive     *bool
	IsBanned     *bool
	BannedReason string
}

// ApplyTo mutates a according to the status change. Banning stamps BannedAt
// and switches the bot off; unbanning clears the ban metadata.
func (s AccountStatus) ApplyTo(a *Actor, now time.Time) {
	if s.IsActive != nil {
		a.IsActive = *s.IsActive
	}
	if s.IsBanned != nil {
		a.IsBanned = *s.IsBanned
		if *s.IsBanned {
			at := now
			a.BannedAt = &at
			a.BannedReason = s.BannedReason
			a.BotEnabled = false
		} else {
			a.BannedAt = nil
			a.BannedReason = ""
		}
	}
	a.UpdatedAt = now
}

// PausesAssignments reports whether the change takes the member out of
// service, which pauses all of their channel assignments.
func (s AccountStatus) PausesAssignments() bool {
	return (s.IsBanned != nil && *s.IsBanned) || (s.IsActive != nil && !*s.IsActive)
}
