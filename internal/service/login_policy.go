package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-online/auth-service/internal/config"
	domainErrors "github.com/arcadia-online/auth-service/internal/domain/errors"
	"github.com/arcadia-online/auth-service/internal/domain/models"
	"github.com/arcadia-online/auth-service/internal/domain/repository"
	"github.com/arcadia-online/auth-service/internal/utils/metrics"
)

// LoginPolicy enforces the users-per-device and devices-per-user caps before
// a session is established. Enforce must run inside the same transaction as
// the session upsert: a login admitted here must also record its session,
// and vice versa.
type LoginPolicy struct {
	sessions   repository.SessionRepository
	cfg        config.PolicyConfig
	refreshTTL time.Duration
	logger     *zap.Logger
}

func NewLoginPolicy(sessions repository.SessionRepository, cfg config.PolicyConfig, refreshTTL time.Duration, logger *zap.Logger) *LoginPolicy {
	return &LoginPolicy{
		sessions:   sessions,
		cfg:        cfg,
		refreshTTL: refreshTTL,
		logger:     logger,
	}
}

// Enforce applies the caps for a candidate (user, device) login. When
// soft-replace evicts a session, the cleared (user, device) pair is returned
// so the caller can invalidate its cache entry after commit.
func (p *LoginPolicy) Enforce(ctx context.Context, user *models.User, deviceID uuid.UUID, now time.Time) (evicted []*models.Session, err error) {
	activeSince := now.Add(-p.refreshTTL)

	// Cap 1: distinct users on this device.
	deviceSessions, err := p.sessions.ListActiveByDevice(ctx, deviceID, activeSince)
	if err != nil {
		return nil, fmt.Errorf("failed to list device sessions: %w", err)
	}
	userAlreadyOnDevice := false
	distinctUsers := make(map[uuid.UUID]struct{}, len(deviceSessions))
	for _, s := range deviceSessions {
		distinctUsers[s.UserID] = struct{}{}
		if s.UserID == user.ID {
			userAlreadyOnDevice = true
		}
	}
	if len(distinctUsers) >= p.cfg.UsersPerDevice && !userAlreadyOnDevice {
		metrics.PolicyRejectionsTotal.WithLabelValues("device_user_limit").Inc()
		return nil, domainErrors.ErrDeviceUserLimitReached
	}

	// Cap 2: active devices for this user, oldest first, excluding the
	// candidate device (a re-login on the same device replaces itself).
	userSessions, err := p.sessions.ListActiveByUser(ctx, user.ID, activeSince, &deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user sessions: %w", err)
	}
	cap := p.cfg.DeviceCapForRole(user.Role)
	if len(userSessions)+1 > cap {
		if !p.cfg.SoftReplace {
			metrics.PolicyRejectionsTotal.WithLabelValues("session_limit").Inc()
			return nil, domainErrors.ErrSessionLimitReached
		}

		// Soft replace: clear exactly the oldest active session.
		oldest := userSessions[0]
		if err := p.sessions.Clear(ctx, oldest.UserID, oldest.DeviceID, now); err != nil {
			return nil, fmt.Errorf("failed to evict oldest session: %w", err)
		}
		metrics.SessionEvictionsTotal.Inc()
		p.logger.Info("Evicted oldest session for soft replace",
			zap.String("user_id", oldest.UserID.String()),
			zap.String("evicted_device_id", oldest.DeviceID.String()),
			zap.String("new_device_id", deviceID.String()),
		)
		evicted = append(evicted, oldest)
	}

	return evicted, nil
}
