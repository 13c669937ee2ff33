package service

import (
	"context"
	"sync"
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

// ServiceTokenRotator holds this instance's outbound service credential and
// rotates it before expiry. Current blocks while a rotation is in flight, so
// concurrent callers never observe a half-rotated state and exactly one of
// them performs the rotation.
type ServiceTokenRotator struct {
	codec   *security.JWTService
	repo    repository.ServiceTokenRepository
	auditor *AuditDispatcher
	cfg     config.TokenConfig
	cluster config.ClusterConfig
	logger  *zap.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewServiceTokenRotator(
	codec *security.JWTService,
	repo repository.ServiceTokenRepository,
	auditor *AuditDispatcher,
	cfg config.TokenConfig,
	cluster config.ClusterConfig,
	logger *zap.Logger,
) *ServiceTokenRotator {
	return &ServiceTokenRotator{
		codec:   codec,
		repo:    repo,
		auditor: auditor,
		cfg:     cfg,
		cluster: cluster,
		logger:  logger,
	}
}

// Current returns a service token valid for at least the rotation margin,
// rotating first when the held one is absent or close to expiry.
func (r *ServiceTokenRotator) Current(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.token != "" && time.Until(r.expiresAt) >= r.cfg.ServiceRotateWhen {
		return r.token, nil
	}
	if err := r.rotateLocked(ctx); err != nil {
		metrics.ServiceTokenRotationsTotal.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.ServiceTokenRotationsTotal.WithLabelValues("ok").Inc()
	return r.token, nil
}

// Invalidate drops the held token so the next Current call rotates. Called
// when a sibling rejects the credential we are still caching, which happens
// when another code path rotated the store record out from under us.
func (r *ServiceTokenRotator) Invalidate() {
	r.mu.Lock()
	r.token = ""
	r.mu.Unlock()
}

// rotateLocked signs a fresh token and swaps it into the store. The previous
// token is deactivated in the same transaction, so siblings validating
// against the store never accept two credentials for one instance.
func (r *ServiceTokenRotator) rotateLocked(ctx context.Context) error {
	signed, err := r.codec.Issue(uuid.Nil, r.cluster.InstanceID, r.cfg.ServiceTTL, models.PurposeService)
	if err != nil {
		return err
	}

	now := time.Now()
	expiresAt := now.Add(r.cfg.ServiceTTL)
	record := &models.ServiceToken{
		ID:          uuid.New(),
		ServiceName: r.cluster.ServiceName,
		InstanceID:  r.cluster.InstanceID,
		TokenHash:   security.HashToken(signed),
		ExpiresAt:   expiresAt,
		Active:      true,
	}
	if err := r.repo.RotateIn(ctx, record); err != nil {
		return err
	}

	r.token = signed
	r.expiresAt = expiresAt

	r.logger.Info("Rotated service token",
		zap.String("instance_id", r.cluster.InstanceID),
		zap.Time("expires_at", expiresAt),
	)
	r.auditor.Dispatch(models.AuditEvent{
		Type:       models.AuditServiceTokenRotated,
		TargetType: "service_instance",
		TargetID:   r.cluster.InstanceID,
	})
	return nil
}

// ValidateIncoming checks a token presented by a sibling instance: the
// signature and purpose statelessly, then the hash against the active store
// record. Every failure collapses to ErrServiceTokenInvalid.
func (r *ServiceTokenRotator) ValidateIncoming(ctx context.Context, token string) (*models.ServiceToken, error) {
	if token == "" {
		return nil, domainErrors.ErrServiceTokenInvalid
	}
	if _, err := r.codec.Verify(token, models.PurposeService); err != nil {
		return nil, domainErrors.ErrServiceTokenInvalid
	}
	record, err := r.repo.FindActiveByHash(ctx, security.HashToken(token), time.Now())
	if err != nil {
		return nil, domainErrors.ErrServiceTokenInvalid
	}
	return record, nil
}

// PurgeExpired deactivates expired tokens; called by the janitor.
func (r *ServiceTokenRotator) PurgeExpired(ctx context.Context) (int64, error) {
	return r.repo.DeactivateExpired(ctx, time.Now())
}
