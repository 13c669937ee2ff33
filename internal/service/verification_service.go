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

// VerificationService is the one-time-code subsystem: OTP and single-use
// link generation, idempotent resend and atomic single-use validation.
type VerificationService struct {
	codes      repository.VerificationCodeRepository
	sessions   repository.SessionRepository
	users      repository.UserRepository
	publisher  EventPublisher
	auditor    *AuditDispatcher
	cfg        config.CodeConfig
	notifTopic string
	logger     *zap.Logger
}

func NewVerificationService(
	codes repository.VerificationCodeRepository,
	sessions repository.SessionRepository,
	users repository.UserRepository,
	publisher EventPublisher,
	auditor *AuditDispatcher,
	cfg config.CodeConfig,
	notifTopic string,
	logger *zap.Logger,
) *VerificationService {
	return &VerificationService{
		codes:      codes,
		sessions:   sessions,
		users:      users,
		publisher:  publisher,
		auditor:    auditor,
		cfg:        cfg,
		notifTopic: notifTopic,
		logger:     logger,
	}
}

// Issue generates a one-time code for (user, device, purpose) and emits a
// delivery event. Link tokens are only valid for the email channel; every
// other channel gets a numeric OTP. An unexpired, unused record for the same
// triple is not duplicated: the caller gets ErrVerificationCodeAlreadyIssued
// and the existing record's expiry.
func (s *VerificationService) Issue(ctx context.Context, user *models.User, deviceID *uuid.UUID, purpose models.VerificationPurpose, channel models.ContactChannel) (*models.IssuedCode, error) {
	if existing, err := s.codes.FindLive(ctx, user.ID, deviceID, purpose); err == nil {
		return &models.IssuedCode{Record: existing, Reused: true}, domainErrors.ErrVerificationCodeAlreadyIssued
	} else if !errors.Is(err, domainErrors.ErrNotFound) {
		return nil, err
	}

	kind := models.KindOTP
	if channel == models.ContactChannelEmail {
		kind = models.KindLink
	}

	var plaintext, codeHash, salt string
	var ttl time.Duration
	switch kind {
	case models.KindLink:
		token, err := security.GenerateSecureToken(32)
		if err != nil {
			return nil, err
		}
		plaintext = token
		codeHash = security.HMACLink(token, []byte(s.cfg.LinkSecret))
		ttl = s.cfg.LinkTTL
	default:
		code, err := security.GenerateNumericOTP(s.cfg.OTPLength)
		if err != nil {
			return nil, err
		}
		otpSalt, err := security.GenerateSecureToken(16)
		if err != nil {
			return nil, err
		}
		plaintext = code
		salt = otpSalt
		codeHash = security.HashOTP(code, otpSalt)
		ttl = s.cfg.OTPTTL
	}

	record := &models.VerificationCode{
		ID:          uuid.New(),
		UserID:      user.ID,
		DeviceID:    deviceID,
		Purpose:     purpose,
		Kind:        kind,
		CodeHash:    codeHash,
		Salt:        salt,
		ExpiresAt:   time.Now().Add(ttl),
		MaxAttempts: s.cfg.MaxAttempts,
	}
	if err := s.codes.Create(ctx, record); err != nil {
		return nil, err
	}
	metrics.CodesIssuedTotal.WithLabelValues(string(purpose), string(kind)).Inc()

	if err := s.notifyDelivery(ctx, user, channel, record, plaintext); err != nil {
		// The record exists but nobody will receive the code; surface it so
		// the caller can retry after expiry rather than wait forever.
		s.logger.Error("Failed to publish code delivery event",
			zap.Error(err),
			zap.String("user_id", user.ID.String()),
			zap.String("purpose", string(purpose)),
		)
		return nil, fmt.Errorf("%w: notification dispatch failed", domainErrors.ErrInternal)
	}

	s.auditor.Dispatch(models.AuditEvent{
		Type:     models.AuditCodeIssued,
		ActorID:  &user.ID,
		DeviceID: deviceID,
		Detail:   map[string]interface{}{"purpose": purpose, "kind": kind},
	})

	return &models.IssuedCode{Record: record, Plaintext: plaintext}, nil
}

func (s *VerificationService) notifyDelivery(ctx context.Context, user *models.User, channel models.ContactChannel, record *models.VerificationCode, plaintext string) error {
	if s.publisher == nil {
		return nil
	}
	recipient := ""
	switch channel {
	case models.ContactChannelEmail:
		if user.Email != nil {
			recipient = *user.Email
		}
	case models.ContactChannelPhone:
		if user.Phone != nil {
			recipient = *user.Phone
		}
	}
	if recipient == "" {
		return fmt.Errorf("user %s has no %s contact", user.ID, channel)
	}

	event := models.NotificationEvent{
		UserID:    user.ID,
		Channel:   channel,
		Recipient: recipient,
		Purpose:   record.Purpose,
		Kind:      record.Kind,
		Payload:   plaintext,
		ExpiresAt: record.ExpiresAt,
	}
	return s.publisher.Publish(ctx, s.notifTopic, "com.arcadia.auth.notification.requested", user.ID.String(), event)
}

// Validate checks a supplied code or link token against the newest live
// record. Consumption is a compare-and-set on the used flag, so two
// concurrent validations of the same record yield exactly one success.
func (s *VerificationService) Validate(ctx context.Context, userID uuid.UUID, deviceID *uuid.UUID, purpose models.VerificationPurpose, supplied string) error {
	now := time.Now()

	record, err := s.codes.FindLive(ctx, userID, deviceID, purpose)
	if err != nil {
		if errors.Is(err, domainErrors.ErrNotFound) {
			metrics.CodeValidationsTotal.WithLabelValues("expired").Inc()
			return domainErrors.ErrVerificationCodeExpired
		}
		return err
	}

	var suppliedHash string
	switch record.Kind {
	case models.KindLink:
		suppliedHash = security.HMACLink(supplied, []byte(s.cfg.LinkSecret))
	default:
		suppliedHash = security.HashOTP(supplied, record.Salt)
	}

	if !security.ConstantTimeEquals(suppliedHash, record.CodeHash) {
		attempts, incErr := s.codes.IncrementAttempts(ctx, record.ID)
		if incErr != nil {
			s.logger.Error("Failed to increment verification attempts", zap.Error(incErr), zap.String("code_id", record.ID.String()))
		}
		if incErr == nil && attempts >= record.MaxAttempts {
			metrics.CodeValidationsTotal.WithLabelValues("exhausted").Inc()
			s.auditor.Dispatch(models.AuditEvent{
				Type:     models.AuditCodeExhausted,
				ActorID:  &userID,
				DeviceID: deviceID,
				Detail:   map[string]interface{}{"purpose": purpose},
			})
			return domainErrors.ErrVerificationAttemptsExhausted
		}
		metrics.CodeValidationsTotal.WithLabelValues("mismatch").Inc()
		return domainErrors.ErrVerificationCodeInvalid
	}

	// Hash matched; consume the record. Losing the used-flag race means a
	// concurrent validation already succeeded.
	if err := s.codes.MarkUsed(ctx, record.ID, now); err != nil {
		metrics.CodeValidationsTotal.WithLabelValues("already_used").Inc()
		return err
	}

	if purpose == models.PurposeDeviceTrust && deviceID != nil {
		if err := s.sessions.Stamp2FAVerified(ctx, userID, *deviceID, now); err != nil &&
			!errors.Is(err, domainErrors.ErrSessionNotFound) {
			s.logger.Error("Failed to stamp device trust on session",
				zap.Error(err),
				zap.String("user_id", userID.String()),
				zap.String("device_id", deviceID.String()),
			)
		}
	}

	switch purpose {
	case models.PurposeEmailVerify:
		if err := s.users.MarkContactVerified(ctx, userID, models.ContactChannelEmail); err != nil {
			s.logger.Error("Failed to mark email verified", zap.Error(err), zap.String("user_id", userID.String()))
		}
	case models.PurposePhoneVerify:
		if err := s.users.MarkContactVerified(ctx, userID, models.ContactChannelPhone); err != nil {
			s.logger.Error("Failed to mark phone verified", zap.Error(err), zap.String("user_id", userID.String()))
		}
	}

	metrics.CodeValidationsTotal.WithLabelValues("ok").Inc()
	s.auditor.Dispatch(models.AuditEvent{
		Type:     models.AuditCodeValidated,
		ActorID:  &userID,
		DeviceID: deviceID,
		Detail:   map[string]interface{}{"purpose": purpose},
	})
	return nil
}

// PurgeExpired removes expired records; called by the janitor.
func (s *VerificationService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.codes.DeleteExpired(ctx, time.Now())
}
