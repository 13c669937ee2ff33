package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-online/auth-service/internal/config"
	domainErrors "github.com/arcadia-online/auth-service/internal/domain/errors"
	"github.com/arcadia-online/auth-service/internal/domain/models"
	"github.com/arcadia-online/auth-service/internal/domain/repository"
	"github.com/arcadia-online/auth-service/internal/infrastructure/security"
	"github.com/arcadia-online/auth-service/internal/utils/metrics"
)

// TransactionManager runs a logical operation spanning several repositories
// inside one database transaction.
type TransactionManager interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// LoginInput is everything a login attempt carries.
type LoginInput struct {
	Identifier string // email or phone, depending on auth mode
	Password   string
	TwoFACode  *string
	DeviceID   uuid.UUID
	DeviceName *string
	DeviceType *string
}

// LoginResult is a successful login: the signed pair plus the session row it
// established.
type LoginResult struct {
	User    *models.User
	Session *models.Session
	Tokens  *models.TokenPair
}

// AuthService implements the login and logout flows. Policy enforcement,
// device registration and the session upsert run in a single transaction so a
// login either fully happens or leaves no trace; the cache and audit trail
// are updated only after commit.
type AuthService struct {
	users    repository.UserRepository
	devices  repository.DeviceRepository
	sessions repository.SessionRepository
	tx       TransactionManager
	hasher   *security.PasswordHasher
	totp     *security.TOTPService
	tokens   *TokenService
	policy   *LoginPolicy
	cache    SessionCache
	auditor  *AuditDispatcher
	cfg      config.PolicyConfig
	logger   *zap.Logger
}

func NewAuthService(
	users repository.UserRepository,
	devices repository.DeviceRepository,
	sessions repository.SessionRepository,
	tx TransactionManager,
	hasher *security.PasswordHasher,
	totp *security.TOTPService,
	tokens *TokenService,
	policy *LoginPolicy,
	cache SessionCache,
	auditor *AuditDispatcher,
	cfg config.PolicyConfig,
	logger *zap.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		devices:  devices,
		sessions: sessions,
		tx:       tx,
		hasher:   hasher,
		totp:     totp,
		tokens:   tokens,
		policy:   policy,
		cache:    cache,
		auditor:  auditor,
		cfg:      cfg,
		logger:   logger,
	}
}

// Login authenticates credentials, enforces the login policy and establishes
// the (user, device) session.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	now := time.Now()

	user, err := s.lookupUser(ctx, input.Identifier)
	if err != nil {
		if errors.Is(err, domainErrors.ErrUserNotFound) {
			s.recordFailure(nil, input.DeviceID, "unknown_identifier")
			return nil, domainErrors.ErrInvalidCredentials
		}
		return nil, err
	}

	switch user.Status {
	case models.UserStatusBlocked:
		s.recordFailure(&user.ID, input.DeviceID, "user_blocked")
		return nil, domainErrors.ErrUserBlocked
	case models.UserStatusDeleted:
		s.recordFailure(&user.ID, input.DeviceID, "user_deleted")
		return nil, domainErrors.ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(input.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.recordFailure(&user.ID, input.DeviceID, "bad_password")
		return nil, domainErrors.ErrInvalidCredentials
	}

	if !s.cfg.ContactPolicyVal.Satisfied(user) {
		s.recordFailure(&user.ID, input.DeviceID, "contact_not_verified")
		return nil, domainErrors.ErrContactNotVerified
	}

	if user.TwoFAEnabled {
		if err := s.checkTwoFA(ctx, user, input); err != nil {
			return nil, err
		}
	}

	device, err := s.devices.GetByID(ctx, input.DeviceID)
	if err != nil && !errors.Is(err, domainErrors.ErrNotFound) {
		return nil, err
	}
	if device != nil && device.Blocked {
		s.recordFailure(&user.ID, input.DeviceID, "device_blocked")
		return nil, domainErrors.ErrDeviceBlocked
	}

	pair, refreshHash, err := s.tokens.IssuePair(user.ID, input.DeviceID)
	if err != nil {
		return nil, err
	}

	var session *models.Session
	var evicted []*models.Session
	err = s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.devices.Upsert(txCtx, &models.Device{
			ID:   input.DeviceID,
			Name: input.DeviceName,
			Type: input.DeviceType,
		}); err != nil {
			return err
		}

		evicted, err = s.policy.Enforce(txCtx, user, input.DeviceID, now)
		if err != nil {
			return err
		}

		session, err = s.sessions.UpsertOnLogin(txCtx, user.ID, input.DeviceID, refreshHash, now)
		if err != nil {
			return err
		}

		if user.TwoFAEnabled {
			return s.sessions.Stamp2FAVerified(txCtx, user.ID, input.DeviceID, now)
		}
		return nil
	})
	if err != nil {
		if domainErrors.IsPolicyRejection(err) {
			s.recordFailure(&user.ID, input.DeviceID, "policy")
		}
		return nil, err
	}

	s.afterLoginCommit(ctx, user, session, refreshHash, evicted, now)

	return &LoginResult{User: user, Session: session, Tokens: pair}, nil
}

// afterLoginCommit does the best-effort post-commit work: cache mirroring,
// evicted-session invalidation and the audit trail.
func (s *AuthService) afterLoginCommit(ctx context.Context, user *models.User, session *models.Session, refreshHash string, evicted []*models.Session, now time.Time) {
	if s.cache != nil {
		if err := s.cache.Store(ctx, &models.CachedSession{
			UserID:           user.ID,
			DeviceID:         session.DeviceID,
			RefreshTokenHash: refreshHash,
			RefreshIssuedAt:  now,
		}); err != nil {
			s.logger.Warn("Failed to mirror session into cache",
				zap.Error(err),
				zap.String("user_id", user.ID.String()),
			)
		}
		for _, old := range evicted {
			if err := s.cache.Delete(ctx, old.UserID, old.DeviceID); err != nil {
				s.logger.Warn("Failed to invalidate evicted session in cache",
					zap.Error(err),
					zap.String("user_id", old.UserID.String()),
				)
			}
		}
	}

	for _, old := range evicted {
		deviceID := old.DeviceID
		s.auditor.Dispatch(models.AuditEvent{
			Type:     models.AuditSessionEvicted,
			ActorID:  &old.UserID,
			DeviceID: &deviceID,
			Detail:   map[string]interface{}{"reason": "soft_replace"},
		})
	}

	metrics.LoginAttemptsTotal.WithLabelValues("success").Inc()
	deviceID := session.DeviceID
	s.auditor.Dispatch(models.AuditEvent{
		Type:     models.AuditLoginSucceeded,
		ActorID:  &user.ID,
		DeviceID: &deviceID,
		Detail:   map[string]interface{}{"login_count": session.LoginCount},
	})
}

// checkTwoFA validates the TOTP step of a 2FA-enabled login. Failed attempts
// count against the (user, device) session when one already exists.
func (s *AuthService) checkTwoFA(ctx context.Context, user *models.User, input LoginInput) error {
	if input.TwoFACode == nil || *input.TwoFACode == "" {
		metrics.LoginAttemptsTotal.WithLabelValues("2fa_required").Inc()
		return domainErrors.Err2FARequired
	}
	if user.TOTPSecret == nil || !s.totp.Validate(*input.TwoFACode, *user.TOTPSecret) {
		attempts, err := s.sessions.IncrementFailed2FA(ctx, user.ID, input.DeviceID)
		if err != nil && !errors.Is(err, domainErrors.ErrSessionNotFound) {
			s.logger.Error("Failed to record failed 2FA attempt", zap.Error(err), zap.String("user_id", user.ID.String()))
		}
		s.recordFailure(&user.ID, input.DeviceID, "bad_2fa")
		if err == nil && s.cfg.MaxFailed2FA > 0 && attempts >= s.cfg.MaxFailed2FA {
			return domainErrors.ErrVerificationAttemptsExhausted
		}
		return domainErrors.ErrInvalid2FACode
	}
	return nil
}

// lookupUser resolves the login identifier under the configured auth mode.
func (s *AuthService) lookupUser(ctx context.Context, identifier string) (*models.User, error) {
	looksLikeEmail := strings.Contains(identifier, "@")

	switch s.cfg.ContactPolicyVal {
	case models.ContactPolicyEmailOnly:
		if !looksLikeEmail {
			return nil, domainErrors.ErrUserNotFound
		}
		return s.users.FindByEmail(ctx, identifier)
	case models.ContactPolicyPhoneOnly:
		if looksLikeEmail {
			return nil, domainErrors.ErrUserNotFound
		}
		return s.users.FindByPhone(ctx, identifier)
	default:
		if looksLikeEmail {
			return s.users.FindByEmail(ctx, identifier)
		}
		return s.users.FindByPhone(ctx, identifier)
	}
}

func (s *AuthService) recordFailure(userID *uuid.UUID, deviceID uuid.UUID, reason string) {
	metrics.LoginAttemptsTotal.WithLabelValues("failure").Inc()
	s.auditor.Dispatch(models.AuditEvent{
		Type:     models.AuditLoginFailed,
		ActorID:  userID,
		DeviceID: &deviceID,
		Detail:   map[string]interface{}{"reason": reason},
	})
}

// Logout revokes the (user, device) session. Idempotent: logging out an
// already-cleared session succeeds.
func (s *AuthService) Logout(ctx context.Context, userID, deviceID uuid.UUID) error {
	now := time.Now()
	if err := s.sessions.Clear(ctx, userID, deviceID, now); err != nil &&
		!errors.Is(err, domainErrors.ErrSessionNotFound) {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, userID, deviceID); err != nil {
			s.logger.Warn("Failed to invalidate session cache on logout", zap.Error(err))
		}
	}
	s.auditor.Dispatch(models.AuditEvent{
		Type:     models.AuditLogout,
		ActorID:  &userID,
		DeviceID: &deviceID,
	})
	return nil
}

// LogoutAll revokes every session the user holds and returns how many were
// active.
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID) (int64, error) {
	now := time.Now()
	cleared, err := s.sessions.ClearAllForUser(ctx, userID, now)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.DeleteAllForUser(ctx, userID); err != nil {
			s.logger.Warn("Failed to clear session cache family on logout-all", zap.Error(err))
		}
	}
	s.auditor.Dispatch(models.AuditEvent{
		Type:    models.AuditLogoutAll,
		ActorID: &userID,
		Detail:  map[string]interface{}{"cleared": cleared},
	})
	return cleared, nil
}

// ListSessions returns the user's session history with device metadata,
// newest login first.
func (s *AuthService) ListSessions(ctx context.Context, userID, currentDeviceID uuid.UUID, refreshTTL time.Duration) ([]models.SessionResponse, error) {
	sessions, err := s.sessions.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	out := make([]models.SessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		resp := models.SessionResponse{
			DeviceID:    sess.DeviceID,
			LastLoginAt: sess.LastLoginAt,
			LoginCount:  sess.LoginCount,
			IsActive:    sess.IsActive(now, refreshTTL),
			IsCurrent:   sess.DeviceID == currentDeviceID,
		}
		if device, err := s.devices.GetByID(ctx, sess.DeviceID); err == nil {
			resp.DeviceName = device.Name
			resp.DeviceType = device.Type
		}
		out = append(out, resp)
	}
	return out, nil
}
