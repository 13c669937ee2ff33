package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arcadia-online/auth-service/internal/domain/models"
)

// SessionRepository is the durable per-(user, device) session store. All
// mutations that pair with a device upsert must run inside the transaction
// manager so both commit or neither does. Conflicting writes for the same
// (user, device) are serialized by the store's compare-and-set updates, not
// by application-level read-modify-write.
type SessionRepository interface {
	GetByUserAndDevice(ctx context.Context, userID, deviceID uuid.UUID) (*models.Session, error)

	// UpsertOnLogin creates the (user, device) row on first login or stamps
	// a fresh refresh hash, issue time, last-login and login count on an
	// existing one.
	UpsertOnLogin(ctx context.Context, userID, deviceID uuid.UUID, refreshHash string, now time.Time) (*models.Session, error)

	// Rotate swaps the refresh hash only if the stored hash still equals
	// currentHash. ErrSessionNotFound is returned when no row matches, which
	// covers both a missing session and a lost compare-and-set race.
	Rotate(ctx context.Context, userID, deviceID uuid.UUID, currentHash, newHash string, now time.Time) (*models.Session, error)

	// Clear nulls the refresh credential and stamps last-logout. The row
	// survives for history.
	Clear(ctx context.Context, userID, deviceID uuid.UUID, now time.Time) error
	ClearAllForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)

	// ListActiveByUser returns active sessions (hash set, issued after
	// activeSince) ordered by issue time ascending, optionally excluding one
	// device.
	ListActiveByUser(ctx context.Context, userID uuid.UUID, activeSince time.Time, excludeDevice *uuid.UUID) ([]*models.Session, error)
	ListActiveByDevice(ctx context.Context, deviceID uuid.UUID, activeSince time.Time) ([]*models.Session, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Session, error)

	// Stamp2FAVerified sets the 2FA verification timestamp and resets the
	// failed-attempt counter.
	Stamp2FAVerified(ctx context.Context, userID, deviceID uuid.UUID, now time.Time) error
	// IncrementFailed2FA bumps the failed-2FA counter and returns the new value.
	IncrementFailed2FA(ctx context.Context, userID, deviceID uuid.UUID) (int, error)
}
