package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcadia-online/auth-service/internal/config"
	domainErrors "github.com/arcadia-online/auth-service/internal/domain/errors"
)

// ServiceTokenHeader carries the rotating credential on internal calls.
const ServiceTokenHeader = "X-Service-Token"

// SiblingClient fans security-relevant invalidations out to the other
// instances of this service. Calls are authenticated with the rotating
// service token and retried a bounded number of times; a sibling that stays
// unreachable is reported, never waited on forever.
type SiblingClient struct {
	httpClient *http.Client
	rotator    *ServiceTokenRotator
	cfg        config.ClusterConfig
	logger     *zap.Logger
}

func NewSiblingClient(rotator *ServiceTokenRotator, cfg config.ClusterConfig, logger *zap.Logger) *SiblingClient {
	return &SiblingClient{
		httpClient: &http.Client{Timeout: cfg.CallTimeout},
		rotator:    rotator,
		cfg:        cfg,
		logger:     logger,
	}
}

// BroadcastUserRevocation tells every sibling to drop its local state for the
// user. Errors from individual siblings are logged and collected; the last
// one is returned so the caller can surface partial failure.
func (c *SiblingClient) BroadcastUserRevocation(ctx context.Context, userID uuid.UUID) error {
	var lastErr error
	for _, base := range c.cfg.Siblings {
		if err := c.post(ctx, base+"/internal/v1/sessions/revoke", map[string]string{
			"user_id": userID.String(),
		}); err != nil {
			c.logger.Error("Failed to notify sibling of user revocation",
				zap.Error(err),
				zap.String("sibling", base),
				zap.String("user_id", userID.String()),
			)
			lastErr = err
		}
	}
	return lastErr
}

// post sends one authenticated request with bounded retry. Retries use a
// fixed delay; a 401 triggers exactly one token refresh since the sibling may
// have seen our rotation commit before we refreshed the local copy.
func (c *SiblingClient) post(ctx context.Context, url string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal sibling request: %w", err)
	}

	attempts := c.cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	var refreshed bool
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.RetryDelay):
			}
		}

		token, err := c.rotator.Current(ctx)
		if err != nil {
			lastErr = err
			continue
		}

		status, err := c.doPost(ctx, url, token, body)
		if err != nil {
			lastErr = err
			continue
		}
		switch {
		case status >= 200 && status < 300:
			return nil
		case status == http.StatusUnauthorized:
			lastErr = domainErrors.ErrServiceTokenInvalid
			if !refreshed {
				c.rotator.Invalidate()
				refreshed = true
			}
		default:
			lastErr = fmt.Errorf("sibling returned status %d", status)
		}
	}
	return fmt.Errorf("%w: %v", domainErrors.ErrInternalServiceUnreachable, lastErr)
}

func (c *SiblingClient) doPost(ctx context.Context, url, token string, body []byte) (int, error) {
	callCtx := ctx
	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(ServiceTokenHeader, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
