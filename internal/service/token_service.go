package service

import (
	"context"
	"errors"
	"fmt"
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

// SessionCache is the distributed session mirror. Implementations are
// best-effort: the token service treats every cache error as a miss and falls
// through to the store. A nil cache disables mirroring entirely.
type SessionCache interface {
	Store(ctx context.Context, entry *models.CachedSession) error
	Get(ctx context.Context, userID, deviceID uuid.UUID) (*models.CachedSession, error)
	Rotate(ctx context.Context, userID, deviceID uuid.UUID, newHash string, issuedAt time.Time) error
	Delete(ctx context.Context, userID, deviceID uuid.UUID) error
	DeleteAllForUser(ctx context.Context, userID uuid.UUID) error
}

// TokenService orchestrates per-request token verification and rotation. It
// owns the decision tree that turns an (access, refresh, device) triple into
// one of the five verification outcomes; the session store is only touched
// when the access token has already failed stateless verification.
type TokenService struct {
	codec    *security.JWTService
	sessions repository.SessionRepository
	devices  repository.DeviceRepository
	cache    SessionCache
	auditor  *AuditDispatcher
	cfg      config.TokenConfig
	logger   *zap.Logger
}

func NewTokenService(
	codec *security.JWTService,
	sessions repository.SessionRepository,
	devices repository.DeviceRepository,
	cache SessionCache,
	auditor *AuditDispatcher,
	cfg config.TokenConfig,
	logger *zap.Logger,
) *TokenService {
	return &TokenService{
		codec:    codec,
		sessions: sessions,
		devices:  devices,
		cache:    cache,
		auditor:  auditor,
		cfg:      cfg,
		logger:   logger,
	}
}

// IssuePair signs a fresh access+refresh pair for (userID, deviceID) and
// returns the pair together with the refresh hash the caller must persist.
func (s *TokenService) IssuePair(userID, deviceID uuid.UUID) (*models.TokenPair, string, error) {
	access, err := s.codec.Issue(userID, deviceID.String(), s.cfg.AccessTTL, models.PurposeAccess)
	if err != nil {
		return nil, "", err
	}
	refresh, err := s.codec.Issue(userID, deviceID.String(), s.cfg.RefreshTTL, models.PurposeRefresh)
	if err != nil {
		return nil, "", err
	}
	pair := &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(s.cfg.AccessTTL.Seconds()),
		TokenType:    "Bearer",
	}
	return pair, security.HashToken(refresh), nil
}

// VerifyRequest runs the per-request decision tree. The returned outcome is
// always meaningful; RequestAuth is non-nil only for OutcomeAccessValid and
// OutcomeNeedsRotation, and carries a fresh pair after rotation.
//
// A valid access token never causes a session mutation. Rotation and reuse
// handling happen only after the access token has failed verification by
// expiry.
func (s *TokenService) VerifyRequest(ctx context.Context, accessToken, refreshToken string, deviceID uuid.UUID) (*models.RequestAuth, models.VerificationOutcome, error) {
	auth, outcome, err := s.verifyRequest(ctx, accessToken, refreshToken, deviceID)
	metrics.TokenVerificationsTotal.WithLabelValues(outcome.String()).Inc()
	return auth, outcome, err
}

func (s *TokenService) verifyRequest(ctx context.Context, accessToken, refreshToken string, deviceID uuid.UUID) (*models.RequestAuth, models.VerificationOutcome, error) {
	now := time.Now()

	if accessToken == "" || refreshToken == "" {
		return nil, models.OutcomeRejected, domainErrors.ErrMissingCredential
	}

	accessClaims, err := s.codec.Verify(accessToken, models.PurposeAccess)
	switch {
	case err == nil:
		return s.handleValidAccess(ctx, accessClaims, refreshToken, deviceID, now)
	case errors.Is(err, domainErrors.ErrExpiredToken):
		return s.handleExpiredAccess(ctx, accessToken, refreshToken, deviceID, now)
	default:
		return nil, models.OutcomeRejected, err
	}
}

// handleValidAccess is the fast path: both tokens check out statelessly and
// the session is read, never written.
func (s *TokenService) handleValidAccess(ctx context.Context, accessClaims *models.TokenClaims, refreshToken string, deviceID uuid.UUID, now time.Time) (*models.RequestAuth, models.VerificationOutcome, error) {
	if accessClaims.Binding != deviceID.String() {
		return nil, models.OutcomeRejected, domainErrors.ErrDeviceMismatch
	}
	if now.Sub(accessClaims.IssuedAt) > s.cfg.AccessTTL {
		// The signature checks out, yet the token claims a lifetime longer
		// than anything this service issues. Never trust the embedded expiry
		// alone for that.
		return nil, models.OutcomeRejected, domainErrors.ErrStaleOrForgedToken
	}

	refreshClaims, err := s.codec.Verify(refreshToken, models.PurposeRefresh)
	if err != nil {
		if errors.Is(err, domainErrors.ErrExpiredToken) {
			return nil, models.OutcomeSessionExpired, domainErrors.ErrSessionExpired
		}
		return nil, models.OutcomeRejected, err
	}
	if refreshClaims.SubjectID != accessClaims.SubjectID {
		return nil, models.OutcomeRejected, fmt.Errorf("%w: token pair subjects differ", domainErrors.ErrInvalidToken)
	}
	if refreshClaims.Binding != deviceID.String() {
		return nil, models.OutcomeRejected, domainErrors.ErrDeviceMismatch
	}

	session, err := s.loadSession(ctx, accessClaims.SubjectID, deviceID)
	if err != nil {
		return nil, models.OutcomeRejected, err
	}

	return &models.RequestAuth{
		UserID:   accessClaims.SubjectID,
		DeviceID: deviceID,
		Session:  session,
	}, models.OutcomeAccessValid, nil
}

// handleExpiredAccess is the rotation path. The access token's signature no
// longer authorizes anything; its payload is decoded only to find which
// session to consult, and everything that matters is re-derived from the
// refresh token and the stored hash.
func (s *TokenService) handleExpiredAccess(ctx context.Context, accessToken, refreshToken string, deviceID uuid.UUID, now time.Time) (*models.RequestAuth, models.VerificationOutcome, error) {
	stale, err := s.codec.DecodeUnverified(accessToken)
	if err != nil {
		return nil, models.OutcomeRejected, err
	}
	if stale.Binding != deviceID.String() {
		return nil, models.OutcomeRejected, domainErrors.ErrDeviceMismatch
	}
	userID := stale.SubjectID

	device, err := s.devices.GetByID(ctx, deviceID)
	if err != nil && !errors.Is(err, domainErrors.ErrNotFound) {
		return nil, models.OutcomeRejected, err
	}
	if device != nil && device.Blocked {
		return nil, models.OutcomeRejected, domainErrors.ErrDeviceBlocked
	}

	session, err := s.sessions.GetByUserAndDevice(ctx, userID, deviceID)
	if err != nil {
		return nil, models.OutcomeRejected, err
	}
	if session.RefreshTokenHash == nil || session.RefreshIssuedAt == nil {
		return nil, models.OutcomeRejected, domainErrors.ErrSessionNotFound
	}

	age := now.Sub(*session.RefreshIssuedAt)
	if age <= s.cfg.AccessTTL {
		// An access token cannot have expired before the credential it was
		// issued alongside is one access lifetime old. Either the client
		// replayed an old pair or the token is forged.
		return nil, models.OutcomeRejected, domainErrors.ErrStaleOrForgedToken
	}
	if age >= s.cfg.RefreshTTL {
		return nil, models.OutcomeSessionExpired, domainErrors.ErrSessionExpired
	}

	refreshClaims, err := s.codec.Verify(refreshToken, models.PurposeRefresh)
	if err != nil {
		if errors.Is(err, domainErrors.ErrExpiredToken) {
			return nil, models.OutcomeSessionExpired, domainErrors.ErrSessionExpired
		}
		return nil, models.OutcomeRejected, err
	}
	if refreshClaims.SubjectID != userID {
		return nil, models.OutcomeRejected, fmt.Errorf("%w: token pair subjects differ", domainErrors.ErrInvalidToken)
	}
	if refreshClaims.Binding != deviceID.String() {
		return nil, models.OutcomeRejected, domainErrors.ErrDeviceMismatch
	}

	presentedHash := security.HashToken(refreshToken)
	if !security.ConstantTimeEquals(presentedHash, *session.RefreshTokenHash) {
		return nil, models.OutcomeReuseDetected, s.handleReuse(ctx, userID, deviceID, now)
	}

	return s.rotate(ctx, userID, deviceID, presentedHash, now)
}

// handleReuse revokes the session whose superseded credential was replayed.
// The presented refresh token carried a valid signature for a hash the store
// no longer holds, which means a previously rotated-out token is being used.
func (s *TokenService) handleReuse(ctx context.Context, userID, deviceID uuid.UUID, now time.Time) error {
	metrics.TokenReuseDetectedTotal.Inc()
	s.logger.Warn("Refresh token reuse detected, revoking session",
		zap.String("user_id", userID.String()),
		zap.String("device_id", deviceID.String()),
	)

	if err := s.sessions.Clear(ctx, userID, deviceID, now); err != nil &&
		!errors.Is(err, domainErrors.ErrSessionNotFound) {
		s.logger.Error("Failed to revoke session after reuse detection",
			zap.Error(err),
			zap.String("user_id", userID.String()),
			zap.String("device_id", deviceID.String()),
		)
	}
	s.invalidateCache(ctx, userID, deviceID)

	s.auditor.Dispatch(models.AuditEvent{
		Type:     models.AuditTokenReuseDetected,
		ActorID:  &userID,
		DeviceID: &deviceID,
		Detail:   map[string]interface{}{"severity": "critical"},
	})
	return domainErrors.ErrTokenReuseDetected
}

func (s *TokenService) rotate(ctx context.Context, userID, deviceID uuid.UUID, currentHash string, now time.Time) (*models.RequestAuth, models.VerificationOutcome, error) {
	pair, newHash, err := s.IssuePair(userID, deviceID)
	if err != nil {
		metrics.RotationsTotal.WithLabelValues("error").Inc()
		return nil, models.OutcomeRejected, err
	}

	session, err := s.sessions.Rotate(ctx, userID, deviceID, currentHash, newHash, now)
	if err != nil {
		if errors.Is(err, domainErrors.ErrSessionNotFound) {
			// Lost the compare-and-set: a concurrent request rotated first.
			// The presented token is no longer current, so the caller must
			// retry with whatever that winner received.
			metrics.RotationsTotal.WithLabelValues("lost_race").Inc()
			return nil, models.OutcomeRejected, domainErrors.ErrStaleOrForgedToken
		}
		metrics.RotationsTotal.WithLabelValues("error").Inc()
		return nil, models.OutcomeRejected, err
	}
	metrics.RotationsTotal.WithLabelValues("ok").Inc()

	if s.cache != nil {
		if err := s.cache.Rotate(ctx, userID, deviceID, newHash, now); err != nil {
			s.logger.Warn("Failed to mirror rotation into cache",
				zap.Error(err),
				zap.String("user_id", userID.String()),
			)
		}
	}

	s.auditor.Dispatch(models.AuditEvent{
		Type:     models.AuditTokenRotated,
		ActorID:  &userID,
		DeviceID: &deviceID,
	})

	return &models.RequestAuth{
		UserID:   userID,
		DeviceID: deviceID,
		Session:  session,
		Rotated:  pair,
	}, models.OutcomeNeedsRotation, nil
}

// loadSession prefers the cache mirror and falls through to the store on any
// miss or error. The fast path only needs existence and activity, both of
// which the mirror carries.
func (s *TokenService) loadSession(ctx context.Context, userID, deviceID uuid.UUID) (*models.Session, error) {
	if s.cache != nil {
		if entry, err := s.cache.Get(ctx, userID, deviceID); err == nil {
			return &models.Session{
				UserID:           userID,
				DeviceID:         deviceID,
				RefreshTokenHash: &entry.RefreshTokenHash,
				RefreshIssuedAt:  &entry.RefreshIssuedAt,
			}, nil
		}
	}
	return s.sessions.GetByUserAndDevice(ctx, userID, deviceID)
}

func (s *TokenService) invalidateCache(ctx context.Context, userID, deviceID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, userID, deviceID); err != nil {
		s.logger.Warn("Failed to invalidate session cache entry",
			zap.Error(err),
			zap.String("user_id", userID.String()),
		)
	}
}
