package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/arcadia-online/auth-service/internal/domain/models"
)

// MockSessionRepository is a mock implementation of repository.SessionRepository.
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) GetByUserAndDevice(ctx context.Context, userID, deviceID uuid.UUID) (*models.Session, error) {
	args := m.Called(ctx, userID, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionRepository) UpsertOnLogin(ctx context.Context, userID, deviceID uuid.UUID, refreshHash string, now time.Time) (*models.Session, error) {
	args := m.Called(ctx, userID, deviceID, refreshHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionRepository) Rotate(ctx context.Context, userID, deviceID uuid.UUID, currentHash, newHash string, now time.Time) (*models.Session, error) {
	args := m.Called(ctx, userID, deviceID, currentHash, newHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionRepository) Clear(ctx context.Context, userID, deviceID uuid.UUID, now time.Time) error {
	args := m.Called(ctx, userID, deviceID, now)
	return args.Error(0)
}

func (m *MockSessionRepository) ClearAllForUser(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	args := m.Called(ctx, userID, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSessionRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID, activeSince time.Time, excludeDevice *uuid.UUID) ([]*models.Session, error) {
	args := m.Called(ctx, userID, activeSince, excludeDevice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Session), args.Error(1)
}

func (m *MockSessionRepository) ListActiveByDevice(ctx context.Context, deviceID uuid.UUID, activeSince time.Time) ([]*models.Session, error) {
	args := m.Called(ctx, deviceID, activeSince)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Session), args.Error(1)
}

func (m *MockSessionRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Session, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Session), args.Error(1)
}

func (m *MockSessionRepository) Stamp2FAVerified(ctx context.Context, userID, deviceID uuid.UUID, now time.Time) error {
	args := m.Called(ctx, userID, deviceID, now)
	return args.Error(0)
}

func (m *MockSessionRepository) IncrementFailed2FA(ctx context.Context, userID, deviceID uuid.UUID) (int, error) {
	args := m.Called(ctx, userID, deviceID)
	return args.Int(0), args.Error(1)
}

// MockDeviceRepository is a mock implementation of repository.DeviceRepository.
type MockDeviceRepository struct {
	mock.Mock
}

func (m *MockDeviceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Device), args.Error(1)
}

func (m *MockDeviceRepository) Upsert(ctx context.Context, device *models.Device) error {
	args := m.Called(ctx, device)
	return args.Error(0)
}

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) FindByPhone(ctx context.Context, phone string) (*models.User, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) MarkContactVerified(ctx context.Context, id uuid.UUID, channel models.ContactChannel) error {
	args := m.Called(ctx, id, channel)
	return args.Error(0)
}

// MockVerificationCodeRepository is a mock implementation of
// repository.VerificationCodeRepository.
type MockVerificationCodeRepository struct {
	mock.Mock
}

func (m *MockVerificationCodeRepository) Create(ctx context.Context, vc *models.VerificationCode) error {
	args := m.Called(ctx, vc)
	return args.Error(0)
}

func (m *MockVerificationCodeRepository) FindLive(ctx context.Context, userID uuid.UUID, deviceID *uuid.UUID, purpose models.VerificationPurpose) (*models.VerificationCode, error) {
	args := m.Called(ctx, userID, deviceID, purpose)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VerificationCode), args.Error(1)
}

func (m *MockVerificationCodeRepository) MarkUsed(ctx context.Context, id uuid.UUID, now time.Time) error {
	args := m.Called(ctx, id, now)
	return args.Error(0)
}

func (m *MockVerificationCodeRepository) IncrementAttempts(ctx context.Context, id uuid.UUID) (int, error) {
	args := m.Called(ctx, id)
	return args.Int(0), args.Error(1)
}

func (m *MockVerificationCodeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockServiceTokenRepository is a mock implementation of
// repository.ServiceTokenRepository.
type MockServiceTokenRepository struct {
	mock.Mock
}

func (m *MockServiceTokenRepository) RotateIn(ctx context.Context, token *models.ServiceToken) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockServiceTokenRepository) FindActiveByHash(ctx context.Context, tokenHash string, now time.Time) (*models.ServiceToken, error) {
	args := m.Called(ctx, tokenHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ServiceToken), args.Error(1)
}

func (m *MockServiceTokenRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// MockSessionCache is a mock implementation of SessionCache.
type MockSessionCache struct {
	mock.Mock
}

func (m *MockSessionCache) Store(ctx context.Context, entry *models.CachedSession) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockSessionCache) Get(ctx context.Context, userID, deviceID uuid.UUID) (*models.CachedSession, error) {
	args := m.Called(ctx, userID, deviceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CachedSession), args.Error(1)
}

func (m *MockSessionCache) Rotate(ctx context.Context, userID, deviceID uuid.UUID, newHash string, issuedAt time.Time) error {
	args := m.Called(ctx, userID, deviceID, newHash, issuedAt)
	return args.Error(0)
}

func (m *MockSessionCache) Delete(ctx context.Context, userID, deviceID uuid.UUID) error {
	args := m.Called(ctx, userID, deviceID)
	return args.Error(0)
}

func (m *MockSessionCache) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// MockPublisher is a mock implementation of EventPublisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, eventType, subject string, payload interface{}) error {
	args := m.Called(ctx, topic, eventType, subject, payload)
	return args.Error(0)
}

// fakeTxManager runs the function directly; transactional semantics are the
// store's concern, not the unit under test.
type fakeTxManager struct{}

func (fakeTxManager) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
