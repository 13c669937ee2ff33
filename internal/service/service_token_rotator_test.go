package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arcadia-online/auth-service/internal/config"
	"github.com/arcadia-online/auth-service/internal/infrastructure/security"
)

func newTestRotator(t *testing.T, repo *MockServiceTokenRepository) *ServiceTokenRotator {
	t.Helper()
	codec, err := security.NewJWTService(testTokenSecret, "auth-service")
	require.NoError(t, err)

	cfg := config.TokenConfig{
		Secret:            testTokenSecret,
		Issuer:            "auth-service",
		AccessTTL:         15 * time.Minute,
		RefreshTTL:        720 * time.Hour,
		ServiceTTL:        time.Hour,
		ServiceRotateWhen: 10 * time.Minute,
	}
	cluster := config.ClusterConfig{
		MultiInstance: true,
		ServiceName:   "auth-service",
		InstanceID:    "instance-1",
	}
	auditor := NewAuditDispatcher(nil, "auth.audit", "audit", 16, zap.NewNop())
	t.Cleanup(auditor.Close)

	return NewServiceTokenRotator(codec, repo, auditor, cfg, cluster, zap.NewNop())
}

func TestCurrent_ReusesHeldToken(t *testing.T) {
	repo := new(MockServiceTokenRepository)
	repo.On("RotateIn", mock.Anything, mock.AnythingOfType("*models.ServiceToken")).Return(nil)
	rotator := newTestRotator(t, repo)

	first, err := rotator.Current(context.Background())
	require.NoError(t, err)
	second, err := rotator.Current(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	repo.AssertNumberOfCalls(t, "RotateIn", 1)
}

func TestInvalidate_ForcesRotation(t *testing.T) {
	repo := new(MockServiceTokenRepository)
	repo.On("RotateIn", mock.Anything, mock.AnythingOfType("*models.ServiceToken")).Return(nil)
	rotator := newTestRotator(t, repo)

	first, err := rotator.Current(context.Background())
	require.NoError(t, err)

	rotator.Invalidate()

	second, err := rotator.Current(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	repo.AssertNumberOfCalls(t, "RotateIn", 2)
}
