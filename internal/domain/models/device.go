package models

import (
	"time"

	"github.com/google/uuid"
)

// Device is a client device identity, independent of any one user. Devices
// are created on first sight, updated when metadata changes and never
// deleted; blocked devices stay on record for forensics.
type Device struct {
	ID        uuid.UUID `json:"id" db:"id"` // client-generated v4 UUID
	Name      *string   `json:"name,omitempty" db:"name"`
	Type      *string   `json:"type,omitempty" db:"type"`
	Blocked   bool      `json:"blocked" db:"blocked"`
	FirstSeen time.Time `json:"first_seen" db:"first_seen"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
