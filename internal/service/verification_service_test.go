package service

import (
	"context"
	"testing"
	"time"

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

func newTestVerificationService(t *testing.T, codes *MockVerificationCodeRepository, sessions *MockSessionRepository, users *MockUserRepository, publisher EventPublisher) *VerificationService {
	t.Helper()
	cfg := config.CodeConfig{
		OTPLength:   6,
		OTPTTL:      10 * time.Minute,
		LinkTTL:     24 * time.Hour,
		MaxAttempts: 3,
		LinkSecret:  "test-link-secret",
	}
	auditor := NewAuditDispatcher(nil, "auth.audit", "audit", 16, zap.NewNop())
	t.Cleanup(auditor.Close)
	return NewVerificationService(codes, sessions, users, publisher, auditor, cfg, "auth.notifications", zap.NewNop())
}

func strPtr(s string) *string { return &s }

func TestIssue_OTPForPhoneChannel(t *testing.T) {
	codes := new(MockVerificationCodeRepository)
	sessions := new(MockSessionRepository)
	users := new(MockUserRepository)
	publisher := new(MockPublisher)
	svc := newTestVerificationService(t, codes, sessions, users, publisher)

	user := &models.User{ID: uuid.New(), Phone: strPtr("+15550001111")}
	deviceID := uuid.New()

	codes.On("FindLive", mock.Anything, user.ID, &deviceID, models.PurposeDeviceTrust).Return(nil, domainErrors.ErrNotFound)
	codes.On("Create", mock.Anything, mock.AnythingOfType("*models.VerificationCode")).Return(nil)
	publisher.On("Publish", mock.Anything, "auth.notifications", mock.Anything, user.ID.String(), mock.Anything).Return(nil)

	issued, err := svc.Issue(context.Background(), user, &deviceID, models.PurposeDeviceTrust, models.ContactChannelPhone)
	require.NoError(t, err)
	require.NotNil(t, issued)

	assert.Equal(t, models.KindOTP, issued.Record.Kind)
	assert.Len(t, issued.Plaintext, 6)
	assert.NotEmpty(t, issued.Record.Salt)
	// Only the salted hash is persisted.
	assert.NotContains(t, issued.Record.CodeHash, issued.Plaintext)
	assert.Equal(t, security.HashOTP(issued.Plaintext, issued.Record.Salt), issued.Record.CodeHash)
	assert.Equal(t, 3, issued.Record.MaxAttempts)

	publisher.AssertExpectations(t)
}

func TestIssue_LinkForEmailChannel(t *testing.T) {
	codes := new(MockVerificationCodeRepository)
	sessions := new(MockSessionRepository)
	users := new(MockUserRepository)
	publisher := new(MockPublisher)
	svc := newTestVerificationService(t, codes, sessions, users, publisher)

	user := &models.User{ID: uuid.New(), Email: strPtr("user@example.com")}

	codes.On("FindLive", mock.Anything, user.ID, (*uuid.UUID)(nil), models.PurposeEmailVerify).Return(nil, domainErrors.ErrNotFound)
	codes.On("Create", mock.Anything, mock.AnythingOfType("*models.VerificationCode")).Return(nil)
	publisher.On("Publish", mock.Anything, "auth.notifications", mock.Anything, user.ID.String(), mock.Anything).Return(nil)

	issued, err := svc.Issue(context.Background(), user, nil, models.PurposeEmailVerify, models.ContactChannelEmail)
	require.NoError(t, err)

	assert.Equal(t, models.KindLink, issued.Record.Kind)
	assert.Equal(t, security.HMACLink(issued.Plaintext, []byte("test-link-secret")), issued.Record.CodeHash)
	assert.Empty(t, issued.Record.Salt)
}

func TestIssue_IdempotentResend(t *testing.T) {
	codes := new(MockVerificationCodeRepository)
	sessions := new(MockSessionRepository)
	users := new(MockUserRepository)
	svc := newTestVerificationService(t, codes, sessions, users, nil)

	user := &models.User{ID: uuid.New(), Email: strPtr("user@example.com")}
	existing := &models.VerificationCode{ID: uuid.New(), UserID: user.ID, ExpiresAt: time.Now().Add(5 * time.Minute)}
	codes.On("FindLive", mock.Anything, user.ID, (*uuid.UUID)(nil), models.PurposeEmailVerify).Return(existing, nil)

	issued, err := svc.Issue(context.Background(), user, nil, models.PurposeEmailVerify, models.ContactChannelEmail)
	assert.ErrorIs(t, err, domainErrors.ErrVerificationCodeAlreadyIssued)
	require.NotNil(t, issued)
	assert.True(t, issued.Reused)
	assert.Equal(t, existing, issued.Record)

	codes.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestValidate_NoLiveRecord(t *testing.T) {
	codes := new(MockVerificationCodeRepository)
	sessions := new(MockSessionRepository)
	users := new(MockUserRepository)
	svc := newTestVerificationService(t, codes, sessions, users, nil)

	userID := uuid.New()
	codes.On("FindLive", mock.Anything, userID, (*uuid.UUID)(nil), models.PurposeEmailVerify).Return(nil, domainErrors.ErrNotFound)

	err := svc.Validate(context.Background(), userID, nil, models.PurposeEmailVerify, "123456")
	assert.ErrorIs(t, err, domainErrors.ErrVerificationCodeExpired)
}

func TestValidate_CorrectOTP_ConsumesAndStampsDevice(t *testing.T) {
	codes := new(MockVerificationCodeRepository)
	sessions := new(MockSessionRepository)
	users := new(MockUserRepository)
	svc := newTestVerificationService(t, codes, sessions, users, nil)

	userID := uuid.New()
	deviceID := uuid.New()
	record := &models.VerificationCode{
		ID:          uuid.New(),
		UserID:      userID,
		DeviceID:    &deviceID,
		Purpose:     models.PurposeDeviceTrust,
		Kind:        models.KindOTP,
		Salt:        "salt",
		CodeHash:    security.HashOTP("123456", "salt"),
		ExpiresAt:   time.Now().Add(5 * time.Minute),
		MaxAttempts: 3,
	}
	codes.On("FindLive", mock.Anything, userID, &deviceID, models.PurposeDeviceTrust).Return(record, nil)
	codes.On("MarkUsed", mock.Anything, record.ID, mock.Anything).Return(nil)
	sessions.On("Stamp2FAVerified", mock.Anything, userID, deviceID, mock.Anything).Return(nil)

	err := svc.Validate(context.Background(), userID, &deviceID, models.PurposeDeviceTrust, "123456")
	require.NoError(t, err)
	codes.AssertExpectations(t)
	sessions.AssertExpectations(t)
}

func TestValidate_WrongOTP_IncrementsAttempts(t *testing.T) {
	codes := new(MockVerificationCodeRepository)
	sessions := new(MockSessionRepository)
	users := new(MockUserRepository)
	svc := newTestVerificationService(t, codes, sessions, users, nil)

	userID := uuid.New()
	record := &models.VerificationCode{
		ID:          uuid.New(),
		UserID:      userID,
		Purpose:     models.PurposeEmailVerify,
		Kind:        models.KindOTP,
		Salt:        "salt",
		CodeHash:    security.HashOTP("123456", "salt"),
		ExpiresAt:   time.Now().Add(5 * time.Minute),
		MaxAttempts: 3,
	}
	codes.On("FindLive", mock.Anything, userID, (*uuid.UUID)(nil), models.PurposeEmailVerify).Return(record, nil)
	codes.On("IncrementAttempts", mock.Anything, record.ID).Return(1, nil)

	err := svc.Validate(context.Background(), userID, nil, models.PurposeEmailVerify, "654321")
	assert.ErrorIs(t, err, domainErrors.ErrVerificationCodeInvalid)
	codes.AssertNotCalled(t, "MarkUsed", mock.Anything, mock.Anything, mock.Anything)
}

func TestValidate_AttemptsExhausted(t *testing.T) {
	codes := new(MockVerificationCodeRepository)
	sessions := new(MockSessionRepository)
	users := new(MockUserRepository)
	svc := newTestVerificationService(t, codes, sessions, users, nil)

	userID := uuid.New()
	record := &models.VerificationCode{
		ID:          uuid.New(),
		UserID:      userID,
		Purpose:     models.PurposeEmailVerify,
		Kind:        models.KindOTP,
		Salt:        "salt",
		CodeHash:    security.HashOTP("123456", "salt"),
		ExpiresAt:   time.Now().Add(5 * time.Minute),
		MaxAttempts: 3,
	}
	codes.On("FindLive", mock.Anything, userID, (*uuid.UUID)(nil), models.PurposeEmailVerify).Return(record, nil)
	codes.On("IncrementAttempts", mock.Anything, record.ID).Return(3, nil)

	err := svc.Validate(context.Background(), userID, nil, models.PurposeEmailVerify, "654321")
	assert.ErrorIs(t, err, domainErrors.ErrVerificationAttemptsExhausted)
}

func TestValidate_UsedFlagRaceLoss(t *testing.T) {
	codes := new(MockVerificationCodeRepository)
	sessions := new(MockSessionRepository)
	users := new(MockUserRepository)
	svc := newTestVerificationService(t, codes, sessions, users, nil)

	userID := uuid.New()
	record := &models.VerificationCode{
		ID:          uuid.New(),
		UserID:      userID,
		Purpose:     models.PurposeEmailVerify,
		Kind:        models.KindOTP,
		Salt:        "salt",
		CodeHash:    security.HashOTP("123456", "salt"),
		ExpiresAt:   time.Now().Add(5 * time.Minute),
		MaxAttempts: 3,
	}
	codes.On("FindLive", mock.Anything, userID, (*uuid.UUID)(nil), models.PurposeEmailVerify).Return(record, nil)
	codes.On("MarkUsed", mock.Anything, record.ID, mock.Anything).Return(domainErrors.ErrVerificationCodeInvalid)

	err := svc.Validate(context.Background(), userID, nil, models.PurposeEmailVerify, "123456")
	assert.ErrorIs(t, err, domainErrors.ErrVerificationCodeInvalid)
	users.AssertNotCalled(t, "MarkContactVerified", mock.Anything, mock.Anything, mock.Anything)
}

func TestValidate_EmailVerifyMarksContact(t *testing.T) {
	codes := new(MockVerificationCodeRepository)
	sessions := new(MockSessionRepository)
	users := new(MockUserRepository)
	svc := newTestVerificationService(t, codes, sessions, users, nil)

	userID := uuid.New()
	token := "sometokenvalue"
	record := &models.VerificationCode{
		ID:          uuid.New(),
		UserID:      userID,
		Purpose:     models.PurposeEmailVerify,
		Kind:        models.KindLink,
		CodeHash:    security.HMACLink(token, []byte("test-link-secret")),
		ExpiresAt:   time.Now().Add(5 * time.Minute),
		MaxAttempts: 3,
	}
	codes.On("FindLive", mock.Anything, userID, (*uuid.UUID)(nil), models.PurposeEmailVerify).Return(record, nil)
	codes.On("MarkUsed", mock.Anything, record.ID, mock.Anything).Return(nil)
	users.On("MarkContactVerified", mock.Anything, userID, models.ContactChannelEmail).Return(nil)

	err := svc.Validate(context.Background(), userID, nil, models.PurposeEmailVerify, token)
	require.NoError(t, err)
	users.AssertExpectations(t)
}
