package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType enumerates audit event types emitted by the core.
type AuditEventType string

const (
	AuditLoginSucceeded      AuditEventType = "auth.login.succeeded"
	AuditLoginFailed         AuditEventType = "auth.login.failed"
	AuditLogout              AuditEventType = "auth.logout"
	AuditLogoutAll           AuditEventType = "auth.logout_all"
	AuditTokenRotated        AuditEventType = "auth.token.rotated"
	AuditTokenReuseDetected  AuditEventType = "auth.token.reuse_detected"
	AuditSessionEvicted      AuditEventType = "auth.session.evicted"
	AuditCodeIssued          AuditEventType = "auth.code.issued"
	AuditCodeValidated       AuditEventType = "auth.code.validated"
	AuditCodeExhausted       AuditEventType = "auth.code.attempts_exhausted"
	AuditServiceTokenRotated AuditEventType = "auth.service_token.rotated"
)

// AuditEvent is a structured audit record dispatched after commit. The audit
// sink owns persistence and querying; the core only emits.
type AuditEvent struct {
	Type       AuditEventType         `json:"type"`
	ActorID    *uuid.UUID             `json:"actor_id,omitempty"`
	DeviceID   *uuid.UUID             `json:"device_id,omitempty"`
	TargetType string                 `json:"target_type,omitempty"`
	TargetID   string                 `json:"target_id,omitempty"`
	Detail     map[string]interface{} `json:"detail,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NotificationEvent asks the external dispatcher to deliver a code or link
// over a contact channel. Delivery mechanics are outside the core.
type NotificationEvent struct {
	UserID    uuid.UUID           `json:"user_id"`
	Channel   ContactChannel      `json:"channel"`
	Recipient string              `json:"recipient"`
	Purpose   VerificationPurpose `json:"purpose"`
	Kind      VerificationKind    `json:"kind"`
	Payload   string              `json:"payload"` // plaintext code or link token
	ExpiresAt time.Time           `json:"expires_at"`
}
