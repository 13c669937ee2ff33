package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically removes expired verification codes and deactivates
// expired service tokens. Both operations are safe to run on every instance
// concurrently.
type Janitor struct {
	verification *VerificationService
	rotator      *ServiceTokenRotator
	interval     time.Duration
	logger       *zap.Logger
}

func NewJanitor(verification *VerificationService, rotator *ServiceTokenRotator, interval time.Duration, logger *zap.Logger) *Janitor {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Janitor{
		verification: verification,
		rotator:      rotator,
		interval:     interval,
		logger:       logger,
	}
}

// Run sweeps on the configured interval until the context is canceled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *Janitor) sweep(ctx context.Context) {
	if codes, err := j.verification.PurgeExpired(ctx); err != nil {
		j.logger.Error("Failed to purge expired verification codes", zap.Error(err))
	} else if codes > 0 {
		j.logger.Info("Purged expired verification codes", zap.Int64("count", codes))
	}

	if tokens, err := j.rotator.PurgeExpired(ctx); err != nil {
		j.logger.Error("Failed to deactivate expired service tokens", zap.Error(err))
	} else if tokens > 0 {
		j.logger.Info("Deactivated expired service tokens", zap.Int64("count", tokens))
	}
}
