package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/arcadia-online/auth-service/internal/domain/errors"
	"github.com/arcadia-online/auth-service/internal/domain/models"
	"github.com/arcadia-online/auth-service/internal/domain/repository"
)

// DeviceRepositoryPostgres implements repository.DeviceRepository.
type DeviceRepositoryPostgres struct {
	pool *pgxpool.Pool
}

func NewDeviceRepositoryPostgres(pool *pgxpool.Pool) *DeviceRepositoryPostgres {
	return &DeviceRepositoryPostgres{pool: pool}
}

func (r *DeviceRepositoryPostgres) GetByID(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	query := `SELECT id, name, type, blocked, first_seen, updated_at FROM devices WHERE id = $1`
	d := &models.Device{}
	err := querier(ctx, r.pool).QueryRow(ctx, query, id).Scan(
		&d.ID, &d.Name, &d.Type, &d.Blocked, &d.FirstSeen, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return d, nil
}

// Upsert inserts the device on first sight or refreshes name/type. The block
// flag is never touched here; blocking is an administrative action.
func (r *DeviceRepositoryPostgres) Upsert(ctx context.Context, device *models.Device) error {
	query := `
		INSERT INTO devices (id, name, type, blocked, first_seen, updated_at)
		VALUES ($1, $2, $3, FALSE, NOW(), NOW())
		ON CONFLICT (id) DO UPDATE SET
			name       = COALESCE(EXCLUDED.name, devices.name),
			type       = COALESCE(EXCLUDED.type, devices.type),
			updated_at = NOW()
	`
	_, err := querier(ctx, r.pool).Exec(ctx, query, device.ID, device.Name, device.Type)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

var _ repository.DeviceRepository = (*DeviceRepositoryPostgres)(nil)
