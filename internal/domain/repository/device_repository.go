package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/arcadia-online/auth-service/internal/domain/models"
)

// DeviceRepository manages device identity records. Devices are created on
// first sight and updated on metadata change; there is no delete.
type DeviceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Device, error)
	// Upsert inserts the device or refreshes its name/type. It must run in
	// the same transaction as the session mutation of the same logical step.
	Upsert(ctx context.Context, device *models.Device) error
}
