package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/arcadia-online/auth-service/internal/domain/errors"
	"github.com/arcadia-online/auth-service/internal/domain/models"
	"github.com/arcadia-online/auth-service/internal/domain/repository"
)

const verificationColumns = `id, user_id, device_id, purpose, kind, code_hash, salt,
	expires_at, attempts, max_attempts, used, created_at`

// VerificationCodeRepositoryPostgres implements
// repository.VerificationCodeRepository.
type VerificationCodeRepositoryPostgres struct {
	pool *pgxpool.Pool
}

func NewVerificationCodeRepositoryPostgres(pool *pgxpool.Pool) *VerificationCodeRepositoryPostgres {
	return &VerificationCodeRepositoryPostgres{pool: pool}
}

func scanVerificationCode(row pgx.Row) (*models.VerificationCode, error) {
	vc := &models.VerificationCode{}
	err := row.Scan(
		&vc.ID, &vc.UserID, &vc.DeviceID, &vc.Purpose, &vc.Kind, &vc.CodeHash, &vc.Salt,
		&vc.ExpiresAt, &vc.Attempts, &vc.MaxAttempts, &vc.Used, &vc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return vc, nil
}

func (r *VerificationCodeRepositoryPostgres) Create(ctx context.Context, vc *models.VerificationCode) error {
	query := `
		INSERT INTO verification_codes (id, user_id, device_id, purpose, kind, code_hash, salt,
			expires_at, attempts, max_attempts, used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, FALSE, NOW())
	`
	_, err := querier(ctx, r.pool).Exec(ctx, query,
		vc.ID, vc.UserID, vc.DeviceID, vc.Purpose, vc.Kind, vc.CodeHash, vc.Salt,
		vc.ExpiresAt, vc.MaxAttempts,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" { // foreign_key_violation
			return fmt.Errorf("user %s not found for verification code: %w", vc.UserID, domainErrors.ErrUserNotFound)
		}
		return fmt.Errorf("failed to create verification code: %w", err)
	}
	return nil
}

func (r *VerificationCodeRepositoryPostgres) FindLive(ctx context.Context, userID uuid.UUID, deviceID *uuid.UUID, purpose models.VerificationPurpose) (*models.VerificationCode, error) {
	query := `
		SELECT ` + verificationColumns + `
		FROM verification_codes
		WHERE user_id = $1 AND purpose = $2
		  AND used = FALSE AND attempts < max_attempts AND expires_at > NOW()
	`
	args := []any{userID, purpose}
	if deviceID != nil {
		query += ` AND device_id = $3`
		args = append(args, *deviceID)
	} else {
		query += ` AND device_id IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT 1`

	vc, err := scanVerificationCode(querier(ctx, r.pool).QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find live verification code: %w", err)
	}
	return vc, nil
}

// MarkUsed consumes the record with a compare-and-set on the used flag. Two
// racing validations see exactly one row update.
func (r *VerificationCodeRepositoryPostgres) MarkUsed(ctx context.Context, id uuid.UUID, now time.Time) error {
	query := `
		UPDATE verification_codes
		SET used = TRUE
		WHERE id = $1 AND used = FALSE AND expires_at > $2
	`
	result, err := querier(ctx, r.pool).Exec(ctx, query, id, now)
	if err != nil {
		return fmt.Errorf("failed to mark verification code used: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrVerificationCodeInvalid
	}
	return nil
}

func (r *VerificationCodeRepositoryPostgres) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	query := `
		UPDATE verification_codes
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	err := querier(ctx, r.pool).QueryRow(ctx, query, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domainErrors.ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment verification attempts: %w", err)
	}
	return attempts, nil
}

func (r *VerificationCodeRepositoryPostgres) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM verification_codes WHERE expires_at < $1`
	result, err := querier(ctx, r.pool).Exec(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired verification codes: %w", err)
	}
	return result.RowsAffected(), nil
}

var _ repository.VerificationCodeRepository = (*VerificationCodeRepositoryPostgres)(nil)
