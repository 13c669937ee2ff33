package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the durable (user, device) mapping at the heart of the token
// lifecycle. Exactly one row exists per pair. A session is active iff its
// refresh hash is set and the hash was issued within the refresh TTL; logout
// and eviction null the hash instead of deleting the row so login history
// survives.
type Session struct {
	ID                  uuid.UUID  `json:"id" db:"id"`
	UserID              uuid.UUID  `json:"user_id" db:"user_id"`
	DeviceID            uuid.UUID  `json:"device_id" db:"device_id"`
	RefreshTokenHash    *string    `json:"-" db:"refresh_token_hash"`
	RefreshIssuedAt     *time.Time `json:"refresh_issued_at,omitempty" db:"refresh_issued_at"`
	FirstSeenAt         time.Time  `json:"first_seen_at" db:"first_seen_at"`
	LastLoginAt         *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	LastLogoutAt        *time.Time `json:"last_logout_at,omitempty" db:"last_logout_at"`
	LoginCount          int        `json:"login_count" db:"login_count"`
	TwoFAVerifiedAt     *time.Time `json:"two_fa_verified_at,omitempty" db:"two_fa_verified_at"`
	FailedTwoFAAttempts int        `json:"failed_two_fa_attempts" db:"failed_two_fa_attempts"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the session holds a live refresh credential.
// Active is computed, never stored.
func (s *Session) IsActive(now time.Time, refreshTTL time.Duration) bool {
	if s.RefreshTokenHash == nil || s.RefreshIssuedAt == nil {
		return false
	}
	return now.Sub(*s.RefreshIssuedAt) < refreshTTL
}

// RefreshAge returns the age of the current refresh credential. The second
// return is false when the session holds no credential.
func (s *Session) RefreshAge(now time.Time) (time.Duration, bool) {
	if s.RefreshIssuedAt == nil {
		return 0, false
	}
	return now.Sub(*s.RefreshIssuedAt), true
}

// SessionResponse is the API shape for session listings.
type SessionResponse struct {
	DeviceID    uuid.UUID  `json:"device_id"`
	DeviceName  *string    `json:"device_name,omitempty"`
	DeviceType  *string    `json:"device_type,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	LoginCount  int        `json:"login_count"`
	IsActive    bool       `json:"is_active"`
	IsCurrent   bool       `json:"is_current"`
}

// CachedSession is the payload mirrored into the distributed cache. It never
// contains raw identifiers in its key; the value keeps them for fan-out
// handling on this instance only.
type CachedSession struct {
	UserID           uuid.UUID `json:"user_id"`
	DeviceID         uuid.UUID `json:"device_id"`
	RefreshTokenHash string    `json:"refresh_token_hash"`
	RefreshIssuedAt  time.Time `json:"refresh_issued_at"`
	Version          int64     `json:"version"`
}
