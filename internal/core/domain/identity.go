package domain

import "fmt"

// Identity is the resolved acting identity of a request. It is either Direct
// or Impersonation; no other implementations exist outside this package.
type Identity interface {
	// Effective is the actor whose permissions and data apply.
	Effective() *Actor
	// Real is the authenticated actor, kept for auditing.
	Real() *Actor
	Impersonating() bool
	sealed()
}

// Direct is an actor acting as itself.
type Direct struct {
	Actor *Actor
}

func (d Direct) Effective() *Actor { return d.Actor }
func (d Direct) Real() *Actor { return d.Actor }
func (d Direct) Impersonating() bool { return false }
func (Direct) sealed() {}

// Impersonation is an admin acting as a member. Build it with NewImpersonation.
type Impersonation struct {
	admin  *Actor
	target *Actor
}

// NewImpersonation rejects any pair other than admin → user.
func NewImpersonation(admin, target *Actor) (Impersonation, error) {
	if !admin.IsAdmin() {
		return Impersonation{}, fmt.Errorf("impersonation: %w", ErrForbidden)
	}
	if target == nil || target.Role != RoleUser {
		return Impersonation{}, fmt.Errorf("impersonation: %w", ErrTargetNotFound)
	}
	return Impersonation{admin: admin, target: target}, nil
}

func (i Impersonation) Effective() *Actor { return i.target }
func (i Impersonation) Real() *Actor { return i.admin }
func (i Impersonation) Impersonating() bool { return true }
func (Impersonation) sealed() {}

// CheckAccess applies the suspension policy: a banned or deactivated
// effective member is rejected unless an admin is really acting.
func CheckAccess(id Identity) error {
	if id.Real().IsAdmin() {
		return nil
	}
	if s := id.Effective().Suspension(); s != nil {
		return s
	}
	return nil
}
