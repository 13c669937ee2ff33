package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadia-online/auth-service/internal/config"
	domainErrors "github.com/arcadia-online/auth-service/internal/domain/errors"
	"github.com/arcadia-online/auth-service/internal/domain/models"
	"github.com/arcadia-online/auth-service/internal/infrastructure/security"
)

const testTokenSecret = "test-secret-at-least-32-bytes-long"

func newTestTokenService(t *testing.T, sessions *MockSessionRepository, devices *MockDeviceRepository, cache SessionCache) (*TokenService, *security.JWTService) {
	t.Helper()
	codec, err := security.NewJWTService(testTokenSecret, "auth-service")
	require.NoError(t, err)

	cfg := config.TokenConfig{
		Secret:     testTokenSecret,
		Issuer:     "auth-service",
		AccessTTL:  15 * time.Minute,
		RefreshTTL: 720 * time.Hour,
	}
	auditor := NewAuditDispatcher(nil, "auth.audit", "audit", 16, zap.NewNop())
	t.Cleanup(auditor.Close)

	return NewTokenService(codec, sessions, devices, cache, auditor, cfg, zap.NewNop()), codec
}

func TestVerifyRequest_MissingCredential(t *testing.T) {
	sessions := new(MockSessionRepository)
	devices := new(MockDeviceRepository)
	svc, codec := newTestTokenService(t, sessions, devices, nil)

	access, err := codec.Issue(uuid.New(), uuid.New().String(), time.Minute, models.PurposeAccess)
	require.NoError(t, err)

	auth, outcome, err := svc.VerifyRequest(context.Background(), access, "", uuid.New())
	assert.Nil(t, auth)
	assert.Equal(t, models.OutcomeRejected, outcome)
	assert.ErrorIs(t, err, domainErrors.ErrMissingCredential)

	_, outcome, err = svc.VerifyRequest(context.Background(), "", "anything", uuid.New())
	assert.Equal(t, models.OutcomeRejected, outcome)
	assert.ErrorIs(t, err, domainErrors.ErrMissingCredential)
}

func TestVerifyRequest_AccessValid_NeverMutates(t *testing.T) {
	sessions := new(MockSessionRepository)
	devices := new(MockDeviceRepository)
	svc, codec := newTestTokenService(t, sessions, devices, nil)

	userID := uuid.New()
	deviceID := uuid.New()
	access, err := codec.Issue(userID, deviceID.String(), 15*time.Minute, models.PurposeAccess)
	require.NoError(t, err)
	refresh, err := codec.Issue(userID, deviceID.String(), 720*time.Hour, models.PurposeRefresh)
	require.NoError(t, err)

	hash := security.HashToken(refresh)
	issuedAt := time.Now().Add(-time.Hour)
	sessions.On("GetByUserAndDevice", mock.Anything, userID, deviceID).Return(&models.Session{
		UserID:           userID,
		DeviceID:         deviceID,
		RefreshTokenHash: &hash,
		RefreshIssuedAt:  &issuedAt,
	}, nil)

	auth, outcome, err := svc.VerifyRequest(context.Background(), access, refresh, deviceID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAccessValid, outcome)
	require.NotNil(t, auth)
	assert.Equal(t, userID, auth.UserID)
	assert.Nil(t, auth.Rotated)

	sessions.AssertNotCalled(t, "Rotate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	sessions.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	sessions.AssertNotCalled(t, "UpsertOnLogin", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyRequest_RejectsOveragedValidAccessToken(t *testing.T) {
	sessions := new(MockSessionRepository)
	devices := new(MockDeviceRepository)
	svc, codec := newTestTokenService(t, sessions, devices, nil)

	userID := uuid.New()
	deviceID := uuid.New()

	// Signed with the real secret but claiming a three-hour lifetime: issued
	// two hours ago, expiring one hour from now. The signature and expiry
	// both pass, so only the issue-time check can catch it.
	now := time.Now()
	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"bnd": deviceID.String(),
		"prp": string(models.PurposeAccess),
		"jti": uuid.NewString(),
		"sub": userID.String(),
		"iss": "auth-service",
		"iat": now.Add(-2 * time.Hour).Unix(),
		"nbf": now.Add(-2 * time.Hour).Unix(),
		"exp": now.Add(time.Hour).Unix(),
	})
	access, err := forged.SignedString([]byte(testTokenSecret))
	require.NoError(t, err)
	refresh, err := codec.Issue(userID, deviceID.String(), 720*time.Hour, models.PurposeRefresh)
	require.NoError(t, err)

	auth, outcome, err := svc.VerifyRequest(context.Background(), access, refresh, deviceID)
	assert.Nil(t, auth)
	assert.Equal(t, models.OutcomeRejected, outcome)
	assert.ErrorIs(t, err, domainErrors.ErrStaleOrForgedToken)
	sessions.AssertNotCalled(t, "GetByUserAndDevice", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyRequest_DeviceMismatch(t *testing.T) {
	sessions := new(MockSessionRepository)
	devices := new(MockDeviceRepository)
	svc, codec := newTestTokenService(t, sessions, devices, nil)

	userID := uuid.New()
	boundDevice := uuid.New()
	access, err := codec.Issue(userID, boundDevice.String(), 15*time.Minute, models.PurposeAccess)
	require.NoError(t, err)
	refresh, err := codec.Issue(userID, boundDevice.String(), 720*time.Hour, models.PurposeRefresh)
	require.NoError(t, err)

	_, outcome, err := svc.VerifyRequest(context.Background(), access, refresh, uuid.New())
	assert.Equal(t, models.OutcomeRejected, outcome)
	assert.ErrorIs(t, err, domainErrors.ErrDeviceMismatch)
}

func TestVerifyRequest_Rotation(t *testing.T) {
	sessions := new(MockSessionRepository)
	devices := new(MockDeviceRepository)
	cache := new(MockSessionCache)
	svc, codec := newTestTokenService(t, sessions, devices, cache)

	userID := uuid.New()
	deviceID := uuid.New()
	expiredAccess, err := codec.Issue(userID, deviceID.String(), -time.Minute, models.PurposeAccess)
	require.NoError(t, err)
	refresh, err := codec.Issue(userID, deviceID.String(), 720*time.Hour, models.PurposeRefresh)
	require.NoError(t, err)

	currentHash := security.HashToken(refresh)
	issuedAt := time.Now().Add(-time.Hour)
	devices.On("GetByID", mock.Anything, deviceID).Return(nil, domainErrors.ErrNotFound)
	sessions.On("GetByUserAndDevice", mock.Anything, userID, deviceID).Return(&models.Session{
		UserID:           userID,
		DeviceID:         deviceID,
		RefreshTokenHash: &currentHash,
		RefreshIssuedAt:  &issuedAt,
	}, nil)
	sessions.On("Rotate", mock.Anything, userID, deviceID, currentHash, mock.AnythingOfType("string"), mock.Anything).
		Return(&models.Session{UserID: userID, DeviceID: deviceID}, nil)
	cache.On("Rotate", mock.Anything, userID, deviceID, mock.AnythingOfType("string"), mock.Anything).Return(nil)

	auth, outcome, err := svc.VerifyRequest(context.Background(), expiredAccess, refresh, deviceID)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeNeedsRotation, outcome)
	require.NotNil(t, auth)
	require.NotNil(t, auth.Rotated)
	assert.NotEqual(t, refresh, auth.Rotated.RefreshToken)

	// The fresh pair verifies statelessly.
	claims, err := codec.Verify(auth.Rotated.AccessToken, models.PurposeAccess)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.SubjectID)
	assert.Equal(t, deviceID.String(), claims.Binding)

	sessions.AssertExpectations(t)
	cache.AssertExpectations(t)
}

func TestVerifyRequest_ReuseDetected(t *testing.T) {
	sessions := new(MockSessionRepository)
	devices := new(MockDeviceRepository)
	cache := new(MockSessionCache)
	svc, codec := newTestTokenService(t, sessions, devices, cache)

	userID := uuid.New()
	deviceID := uuid.New()
	expiredAccess, err := codec.Issue(userID, deviceID.String(), -time.Minute, models.PurposeAccess)
	require.NoError(t, err)
	// The replayed refresh token: validly signed, but its hash was rotated
	// out of the store.
	replayed, err := codec.Issue(userID, deviceID.String(), 720*time.Hour, models.PurposeRefresh)
	require.NoError(t, err)
	current, err := codec.Issue(userID, deviceID.String(), 720*time.Hour, models.PurposeRefresh)
	require.NoError(t, err)

	storedHash := security.HashToken(current)
	issuedAt := time.Now().Add(-time.Hour)
	devices.On("GetByID", mock.Anything, deviceID).Return(nil, domainErrors.ErrNotFound)
	sessions.On("GetByUserAndDevice", mock.Anything, userID, deviceID).Return(&models.Session{
		UserID:           userID,
		DeviceID:         deviceID,
		RefreshTokenHash: &storedHash,
		RefreshIssuedAt:  &issuedAt,
	}, nil)
	sessions.On("Clear", mock.Anything, userID, deviceID, mock.Anything).Return(nil)
	cache.On("Delete", mock.Anything, userID, deviceID).Return(nil)

	auth, outcome, err := svc.VerifyRequest(context.Background(), expiredAccess, replayed, deviceID)
	assert.Nil(t, auth)
	assert.Equal(t, models.OutcomeReuseDetected, outcome)
	assert.ErrorIs(t, err, domainErrors.ErrTokenReuseDetected)

	sessions.AssertCalled(t, "Clear", mock.Anything, userID, deviceID, mock.Anything)
	sessions.AssertNotCalled(t, "Rotate", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	cache.AssertExpectations(t)
}

func TestVerifyRequest_SessionExpired(t *testing.T) {
	sessions := new(MockSessionRepository)
	devices := new(MockDeviceRepository)
	svc, codec := newTestTokenService(t, sessions, devices, nil)

	userID := uuid.New()
	deviceID := uuid.New()
	expiredAccess, err := codec.Issue(userID, deviceID.String(), -time.Minute, models.PurposeAccess)
	require.NoError(t, err)
	refresh, err := codec.Issue(userID, deviceID.String(), 720*time.Hour, models.PurposeRefresh)
	require.NoError(t, err)

	hash := security.HashToken(refresh)
	issuedAt := time.Now().Add(-721 * time.Hour)
	devices.On("GetByID", mock.Anything, deviceID).Return(nil, domainErrors.ErrNotFound)
	sessions.On("GetByUserAndDevice", mock.Anything, userID, deviceID).Return(&models.Session{
		UserID:           userID,
		DeviceID:         deviceID,
		RefreshTokenHash: &hash,
		RefreshIssuedAt:  &issuedAt,
	}, nil)

	_, outcome, err := svc.VerifyRequest(context.Background(), expiredAccess, refresh, deviceID)
	assert.Equal(t, models.OutcomeSessionExpired, outcome)
	assert.ErrorIs(t, err, domainErrors.ErrSessionExpired)
}

func TestVerifyRequest_StaleOrForged(t *testing.T) {
	sessions := new(MockSessionRepository)
	devices := new(MockDeviceRepository)
	svc, codec := newTestTokenService(t, sessions, devices, nil)

	userID := uuid.New()
	deviceID := uuid.New()
	expiredAccess, err := codec.Issue(userID, deviceID.String(), -time.Minute, models.PurposeAccess)
	require.NoError(t, err)
	refresh, err := codec.Issue(userID, deviceID.String(), 720*time.Hour, models.PurposeRefresh)
	require.NoError(t, err)

	// Credential younger than one access lifetime: an honestly expired access
	// token cannot exist yet.
	hash := security.HashToken(refresh)
	issuedAt := time.Now().Add(-time.Minute)
	devices.On("GetByID", mock.Anything, deviceID).Return(nil, domainErrors.ErrNotFound)
	sessions.On("GetByUserAndDevice", mock.Anything, userID, deviceID).Return(&models.Session{
		UserID:           userID,
		DeviceID:         deviceID,
		RefreshTokenHash: &hash,
		RefreshIssuedAt:  &issuedAt,
	}, nil)

	_, outcome, err := svc.VerifyRequest(context.Background(), expiredAccess, refresh, deviceID)
	assert.Equal(t, models.OutcomeRejected, outcome)
	assert.ErrorIs(t, err, domainErrors.ErrStaleOrForgedToken)
	sessions.AssertNotCalled(t, "Clear", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyRequest_RotationLostRace(t *testing.T) {
	sessions := new(MockSessionRepository)
	devices := new(MockDeviceRepository)
	svc, codec := newTestTokenService(t, sessions, devices, nil)

	userID := uuid.New()
	deviceID := uuid.New()
	expiredAccess, err := codec.Issue(userID, deviceID.String(), -time.Minute, models.PurposeAccess)
	require.NoError(t, err)
	refresh, err := codec.Issue(userID, deviceID.String(), 720*time.Hour, models.PurposeRefresh)
	require.NoError(t, err)

	currentHash := security.HashToken(refresh)
	issuedAt := time.Now().Add(-time.Hour)
	devices.On("GetByID", mock.Anything, deviceID).Return(nil, domainErrors.ErrNotFound)
	sessions.On("GetByUserAndDevice", mock.Anything, userID, deviceID).Return(&models.Session{
		UserID:           userID,
		DeviceID:         deviceID,
		RefreshTokenHash: &currentHash,
		RefreshIssuedAt:  &issuedAt,
	}, nil)
	sessions.On("Rotate", mock.Anything, userID, deviceID, currentHash, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, domainErrors.ErrSessionNotFound)

	_, outcome, err := svc.VerifyRequest(context.Background(), expiredAccess, refresh, deviceID)
	assert.Equal(t, models.OutcomeRejected, outcome)
	assert.ErrorIs(t, err, domainErrors.ErrStaleOrForgedToken)
}

func TestVerifyRequest_BlockedDevice(t *testing.T) {
	sessions := new(MockSessionRepository)
	devices := new(MockDeviceRepository)
	svc, codec := newTestTokenService(t, sessions, devices, nil)

	userID := uuid.New()
	deviceID := uuid.New()
	expiredAccess, err := codec.Issue(userID, deviceID.String(), -time.Minute, models.PurposeAccess)
	require.NoError(t, err)
	refresh, err := codec.Issue(userID, deviceID.String(), 720*time.Hour, models.PurposeRefresh)
	require.NoError(t, err)

	devices.On("GetByID", mock.Anything, deviceID).Return(&models.Device{ID: deviceID, Blocked: true}, nil)

	_, outcome, err := svc.VerifyRequest(context.Background(), expiredAccess, refresh, deviceID)
	assert.Equal(t, models.OutcomeRejected, outcome)
	assert.ErrorIs(t, err, domainErrors.ErrDeviceBlocked)
	sessions.AssertNotCalled(t, "GetByUserAndDevice", mock.Anything, mock.Anything, mock.Anything)
}
