package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/arcadia-online/auth-service/internal/domain/models"
)

// UserRepository reads identity records. The account-management service owns
// writes; the auth core only needs lookups and the 2FA flag.
type UserRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByPhone(ctx context.Context, phone string) (*models.User, error)
	MarkContactVerified(ctx context.Context, id uuid.UUID, channel models.ContactChannel) error
}
