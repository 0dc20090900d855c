package domain

import (
	"context"
	"time"
)

// AuditEventType classifies audit log entries.
type AuditEventType string

const (
	AuditAgentCreate  AuditEventType = "agent_create"
	AuditAgentUpdate  AuditEventType = "agent_update"
	AuditAgentDelete  AuditEventType = "agent_delete"
	AuditAgentImport  AuditEventType = "agent_import"
	AuditAccessDenied AuditEventType = "access_denied"
)

// AuditEvent represents a single auditable action.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	Type      AuditEventType    `json:"type"`
	Actor     string            `json:"actor,omitempty"`
	Resource  string            `json:"resource,omitempty"`
	Outcome   string            `json:"outcome,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Detail    map[string]string `json:"detail,omitempty"`
}

// AuditLogger writes audit events to a persistent log.
type AuditLogger interface {
	Log(ctx context.Context, event AuditEvent) error
	Close() error
}

// ActorOf names the caller in ctx for audit records: the user ID when the
// proxy supplied one, otherwise the email.
func ActorOf(ctx context.Context) string {
	p, ok := PrincipalFrom(ctx)
	if !ok {
		return ""
	}
	if p.UserID != "" {
		return p.UserID
	}
	return p.Email
}
