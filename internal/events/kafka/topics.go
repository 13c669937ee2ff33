package kafka

// Default topic names; overridable via config.
const (
	DefaultAuditTopic        = "auth.audit"
	DefaultNotificationTopic = "auth.notifications"
)

// Event types published by this service.
const (
	EventTypeAudit        = "com.arcadia.auth.audit"
	EventTypeNotification = "com.arcadia.auth.notification.requested"
)
