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

const userColumns = `id, email, phone, password_hash, role, email_verified, phone_verified,
	two_fa_enabled, totp_secret, status, created_at, updated_at`

// UserRepositoryPostgres implements repository.UserRepository.
type UserRepositoryPostgres struct {
	pool *pgxpool.Pool
}

func NewUserRepositoryPostgres(pool *pgxpool.Pool) *UserRepositoryPostgres {
	return &UserRepositoryPostgres{pool: pool}
}

func scanUser(row pgx.Row) (*models.User, error) {
	u := &models.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.Phone, &u.PasswordHash, &u.Role, &u.EmailVerified, &u.PhoneVerified,
		&u.TwoFAEnabled, &u.TOTPSecret, &u.Status, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepositoryPostgres) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(querier(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by id: %w", err)
	}
	return u, nil
}

func (r *UserRepositoryPostgres) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(querier(ctx, r.pool).QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return u, nil
}

func (r *UserRepositoryPostgres) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	u, err := scanUser(querier(ctx, r.pool).QueryRow(ctx, query, phone))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by phone: %w", err)
	}
	return u, nil
}

func (r *UserRepositoryPostgres) MarkContactVerified(ctx context.Context, id uuid.UUID, channel models.ContactChannel) error {
	column := "email_verified"
	if channel == models.ContactChannelPhone {
		column = "phone_verified"
	}
	query := fmt.Sprintf(`UPDATE users SET %s = TRUE, updated_at = NOW() WHERE id = $1`, column)
	result, err := querier(ctx, r.pool).Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to mark contact verified: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrUserNotFound
	}
	return nil
}

var _ repository.UserRepository = (*UserRepositoryPostgres)(nil)
