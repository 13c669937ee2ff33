package repository

import (
	"context"
	"time"

	"github.com/arcadia-online/auth-service/internal/domain/models"
)

// ServiceTokenRepository persists hashed service-to-service credentials.
// At most one token per (service, instance) is active.
type ServiceTokenRepository interface {
	// RotateIn deactivates any active token for the same (service, instance)
	// and inserts the new one in a single transaction, carrying the rotation
	// count forward.
	RotateIn(ctx context.Context, token *models.ServiceToken) error

	FindActiveByHash(ctx context.Context, tokenHash string, now time.Time) (*models.ServiceToken, error)
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}
