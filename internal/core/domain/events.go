package domain

import "time"

// Audit actions recorded for console mutations.
const (
	AuditActionCreate  = "create"
	AuditActionUpdate  = "update"
	AuditActionDelete  = "delete"
	AuditActionReplace = "replace"
	AuditActionLogin   = "login"
)

// AuditEvent captures a single administrative mutation for the audit trail.
type AuditEvent struct {
	EventID    string
	Action     string
	EntityType string
	EntityID   int64
	ActorID    int64
	OccurredAt time.Time
	Details    map[string]any
}
