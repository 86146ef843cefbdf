package domain

import "time"

type AuditAction string

const (
	AuditLogin              AuditAction = "login"
	AuditImpersonationStart AuditAction = "impersonation.start"
	AuditImpersonationStop  AuditAction = "impersonation.stop"
	AuditPasswordChange     AuditAction = "account.password"
	AuditStatusChange       AuditAction = "account.status"
)

// AuditEvent records a security-relevant action by the real actor.
type AuditEvent struct {
	Action       AuditAction `json:"action"`
	ActorID      int64       `json:"actorId"`
	ActorRole    Role        `json:"actorRole"`
	TargetUserID *int64      `json:"targetUserId,omitempty"`
	ClientIP     string      `json:"clientIp,omitempty"`
	At           time.Time   `json:"at"`
}
