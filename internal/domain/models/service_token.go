package models

import (
	"time"

	"github.com/google/uuid"
)

// ServiceToken is a short-lived credential for service-to-service calls in
// multi-instance deployments. At most one row per (service, instance) is
// active; rotation deactivates the previous row in the same transaction.
type ServiceToken struct {
	ID            uuid.UUID `json:"id" db:"id"`
	ServiceName   string    `json:"service_name" db:"service_name"`
	InstanceID    string    `json:"instance_id" db:"instance_id"`
	TokenHash     string    `json:"-" db:"token_hash"`
	ExpiresAt     time.Time `json:"expires_at" db:"expires_at"`
	Active        bool      `json:"active" db:"active"`
	RotationCount int       `json:"rotation_count" db:"rotation_count"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
