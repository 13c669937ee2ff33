package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	domainErrors "github.com/arcadia-online/auth-service/internal/domain/errors"
	"github.com/arcadia-online/auth-service/internal/domain/models"
	"github.com/arcadia-online/auth-service/internal/domain/repository"
)

const sessionColumns = `id, user_id, device_id, refresh_token_hash, refresh_issued_at,
	first_seen_at, last_login_at, last_logout_at, login_count,
	two_fa_verified_at, failed_two_fa_attempts, created_at, updated_at`

// SessionRepositoryPostgres implements repository.SessionRepository for
// PostgreSQL. Rotation and clearing rely on conditional UPDATEs so the
// database serializes conflicting writers per (user, device) row.
type SessionRepositoryPostgres struct {
	pool *pgxpool.Pool
}

func NewSessionRepositoryPostgres(pool *pgxpool.Pool) *SessionRepositoryPostgres {
	return &SessionRepositoryPostgres{pool: pool}
}

func scanSession(row pgx.Row) (*models.Session, error) {
	s := &models.Session{}
	err := row.Scan(
		&s.ID, &s.UserID, &s.DeviceID, &s.RefreshTokenHash, &s.RefreshIssuedAt,
		&s.FirstSeenAt, &s.LastLoginAt, &s.LastLogoutAt, &s.LoginCount,
		&s.TwoFAVerifiedAt, &s.FailedTwoFAAttempts, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SessionRepositoryPostgres) GetByUserAndDevice(ctx context.Context, userID, deviceID uuid.UUID) (*models.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE user_id = $1 AND device_id = $2`
	s, err := scanSession(querier(ctx, r.pool).QueryRow(ctx, query, userID, deviceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepositoryPostgres) UpsertOnLogin(ctx context.Context, userID, deviceID uuid.UUID, refreshHash string, now time.Time) (*models.Session, error) {
	query := `
		INSERT INTO sessions (id, user_id, device_id, refresh_token_hash, refresh_issued_at,
			first_seen_at, last_login_at, login_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5, $5, 1, $5, $5)
		ON CONFLICT (user_id, device_id) DO UPDATE SET
			refresh_token_hash = EXCLUDED.refresh_token_hash,
			refresh_issued_at  = EXCLUDED.refresh_issued_at,
			last_login_at      = EXCLUDED.last_login_at,
			login_count        = sessions.login_count + 1,
			updated_at         = EXCLUDED.updated_at
		RETURNING ` + sessionColumns
	s, err := scanSession(querier(ctx, r.pool).QueryRow(ctx, query, uuid.New(), userID, deviceID, refreshHash, now))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session on login: %w", err)
	}
	return s, nil
}

func (r *SessionRepositoryPostgres) Rotate(ctx context.Context, userID, deviceID uuid.UUID, currentHash, newHash string, now time.Time) (*models.Session, error) {
	// Compare-and-set on the stored hash: a concurrent rotation that already
	// replaced it makes this update match zero rows.
	query := `
		UPDATE sessions
		SET refresh_token_hash = $1, refresh_issued_at = $2, updated_at = $2
		WHERE user_id = $3 AND device_id = $4 AND refresh_token_hash = $5
		RETURNING ` + sessionColumns
	s, err := scanSession(querier(ctx, r.pool).QueryRow(ctx, query, newHash, now, userID, deviceID, currentHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domainErrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to rotate session credential: %w", err)
	}
	return s, nil
}

func (r *SessionRepositoryPostgres) Clear(ctx context.Context, userID, deviceID uuid.UUID, now time.Time) error {
	query := `
		UPDATE sessions
		SET refresh_token_hash = NULL, refresh_issued_at = NULL, last_logout_at = $1, updated_at = $1
		WHERE user_id = $2 AND device_id = $3
	`
	result, err := querier(ctx, r.pool).Exec(ctx, query, now, userID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepositoryPostgres) ClearAllForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	query := `
		UPDATE sessions
		SET refresh_token_hash = NULL, refresh_issued_at = NULL, last_logout_at = $1, updated_at = $1
		WHERE user_id = $2 AND refresh_token_hash IS NOT NULL
	`
	result, err := querier(ctx, r.pool).Exec(ctx, query, now, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to clear user sessions: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *SessionRepositoryPostgres) ListActiveByUser(ctx context.Context, userID uuid.UUID, activeSince time.Time, excludeDevice *uuid.UUID) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND refresh_token_hash IS NOT NULL AND refresh_issued_at > $2
	`
	args := []any{userID, activeSince}
	if excludeDevice != nil {
		query += ` AND device_id != $3`
		args = append(args, *excludeDevice)
	}
	query += ` ORDER BY refresh_issued_at ASC`

	return r.listSessions(ctx, query, args...)
}

func (r *SessionRepositoryPostgres) ListActiveByDevice(ctx context.Context, deviceID uuid.UUID, activeSince time.Time) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE device_id = $1 AND refresh_token_hash IS NOT NULL AND refresh_issued_at > $2
		ORDER BY refresh_issued_at ASC
	`
	return r.listSessions(ctx, query, deviceID, activeSince)
}

func (r *SessionRepositoryPostgres) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1
		ORDER BY last_login_at DESC NULLS LAST
	`
	return r.listSessions(ctx, query, userID)
}

func (r *SessionRepositoryPostgres) listSessions(ctx context.Context, query string, args ...any) ([]*models.Session, error) {
	rows, err := querier(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*models.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepositoryPostgres) Stamp2FAVerified(ctx context.Context, userID, deviceID uuid.UUID, now time.Time) error {
	query := `
		UPDATE sessions
		SET two_fa_verified_at = $1, failed_two_fa_attempts = 0, updated_at = $1
		WHERE user_id = $2 AND device_id = $3
	`
	result, err := querier(ctx, r.pool).Exec(ctx, query, now, userID, deviceID)
	if err != nil {
		return fmt.Errorf("failed to stamp 2FA verification: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domainErrors.ErrSessionNotFound
	}
	return nil
}

func (r *SessionRepositoryPostgres) IncrementFailed2FA(ctx context.Context, userID, deviceID uuid.UUID) (int, error) {
	query := `
		UPDATE sessions
		SET failed_two_fa_attempts = failed_two_fa_attempts + 1, updated_at = NOW()
		WHERE user_id = $1 AND device_id = $2
		RETURNING failed_two_fa_attempts
	`
	var attempts int
	err := querier(ctx, r.pool).QueryRow(ctx, query, userID, deviceID).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domainErrors.ErrSessionNotFound
		}
		return 0, fmt.Errorf("failed to increment 2FA failures: %w", err)
	}
	return attempts, nil
}

var _ repository.SessionRepository = (*SessionRepositoryPostgres)(nil)
