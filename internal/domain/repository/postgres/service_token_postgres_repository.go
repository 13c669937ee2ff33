package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/arcadia-online/auth-service/internal/domain/errors"
	"github.com/arcadia-online/auth-service/internal/domain/models"
	"github.com/arcadia-online/auth-service/internal/domain/repository"
)

// ServiceTokenRepositoryPostgres implements
// repository.ServiceTokenRepository.
type ServiceTokenRepositoryPostgres struct {
	pool *pgxpool.Pool
	tx   *TxManager
}

func NewServiceTokenRepositoryPostgres(pool *pgxpool.Pool, tx *TxManager) *ServiceTokenRepositoryPostgres {
	return &ServiceTokenRepositoryPostgres{pool: pool, tx: tx}
}

// RotateIn deactivates the previous active token for (service, instance) and
// inserts the replacement in one transaction, so at most one row is ever
// active per instance.
func (r *ServiceTokenRepositoryPostgres) RotateIn(ctx context.Context, token *models.ServiceToken) error {
	return r.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		q := querier(ctx, r.pool)

		var prevRotations int
		err := q.QueryRow(ctx, `
			UPDATE service_tokens
			SET active = FALSE
			WHERE service_name = $1 AND instance_id = $2 AND active = TRUE
			RETURNING rotation_count
		`, token.ServiceName, token.InstanceID).Scan(&prevRotations)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to deactivate previous service token: %w", err)
		}
		token.RotationCount = prevRotations + 1

		_, err = q.Exec(ctx, `
			INSERT INTO service_tokens (id, service_name, instance_id, token_hash, expires_at, active, rotation_count, created_at)
			VALUES ($1, $2, $3, $4, $5, TRUE, $6, NOW())
		`, token.ID, token.ServiceName, token.InstanceID, token.TokenHash, token.ExpiresAt, token.RotationCount)
		if err != nil {
			return fmt.Errorf("failed to insert service token: %w", err)
		}
		return nil
	})
}

func (r *ServiceTokenRepositoryPostgres) FindActiveByHash(ctx context.Context, tokenHash string, now time.Time) (*models.ServiceToken, error) {
	query := `
		SELECT id, service_name, instance_id, token_hash, expires_at, active, rotation_count, created_at
		FROM service_tokens
		WHERE token_hash = $1 AND active = TRUE AND expires_at > $2
	`
	st := &models.ServiceToken{}
	err := querier(ctx, r.pool).QueryRow(ctx, query, tokenHash, now).Scan(
		&st.ID, &st.ServiceName, &st.InstanceID, &st.TokenHash, &st.ExpiresAt, &st.Active, &st.RotationCount, &st.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrServiceTokenInvalid
		}
		return nil, fmt.Errorf("failed to find service token: %w", err)
	}
	return st, nil
}

func (r *ServiceTokenRepositoryPostgres) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE service_tokens SET active = FALSE WHERE active = TRUE AND expires_at < $1`
	result, err := querier(ctx, r.pool).Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate expired service tokens: %w", err)
	}
	return result.RowsAffected(), nil
}

var _ repository.ServiceTokenRepository = (*ServiceTokenRepositoryPostgres)(nil)
