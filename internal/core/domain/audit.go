package domain

import "time"

const (
	AuditLoginSucceeded = "login_succeeded"
	AuditLoginFailed    = "login_failed"
	AuditUserCreated    = "user_created"
	AuditPasswordChange = "password_changed"
	AuditRoleChange     = "role_changed"
	AuditFileUploaded   = "file_uploaded"
	AuditFileDeleted    = "file_deleted"
)

// AuditEvent records a security-relevant action.
type AuditEvent struct {
	Action     string
	Username   string
	ResourceID string
	Status     string
	Reason     string
	OccurredAt time.Time
}
