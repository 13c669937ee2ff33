package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/arcadia-online/auth-service/internal/domain/models"
)

// VerificationCodeRepository stores one-time-code records. Consumption is a
// compare-and-set on the used flag so two concurrent validations of the same
// record cannot both succeed.
type VerificationCodeRepository interface {
	Create(ctx context.Context, vc *models.VerificationCode) error

	// FindLive returns the newest unexpired, unused, attempts-remaining
	// record for (user, device, purpose). deviceID may be nil for
	// channel-only flows.
	FindLive(ctx context.Context, userID uuid.UUID, deviceID *uuid.UUID, purpose models.VerificationPurpose) (*models.VerificationCode, error)

	// MarkUsed flips used to true only when it is still false and the record
	// is unexpired. Returns ErrVerificationCodeInvalid when the CAS loses.
	MarkUsed(ctx context.Context, id uuid.UUID, now time.Time) error

	// IncrementAttempts bumps the attempt counter and returns the new count.
	IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error)

	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
