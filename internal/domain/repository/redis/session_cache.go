package redis

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/arcadia-online/auth-service/internal/domain/errors"
	"github.com/arcadia-online/auth-service/internal/domain/models"
	"github.com/arcadia-online/auth-service/internal/utils/metrics"
)

const (
	sessionKeyPrefix = "authsvc:session:"
	familyKeyPrefix  = "authsvc:family:"
)

// SessionCache mirrors session state in Redis for multi-instance
// deployments. It is never the source of truth: every write happens after
// the corresponding store commit, and misses simply fall through to the
// store. Keys are salted hashes, so a compromised cache cannot be correlated
// back to user or device identifiers.
type SessionCache struct {
	client *redis.Client
	logger *zap.Logger
	salt   []byte
	ttl    time.Duration
}

func NewSessionCache(client *redis.Client, logger *zap.Logger, serverSalt string, refreshTTL time.Duration) *SessionCache {
	return &SessionCache{
		client: client,
		logger: logger,
		salt:   []byte(serverSalt),
		ttl:    refreshTTL,
	}
}

// sessionKey derives the cache key for a (user, device) pair.
func (c *SessionCache) sessionKey(userID, deviceID uuid.UUID) string {
	h := sha256.New()
	h.Write([]byte(userID.String()))
	h.Write([]byte("|"))
	h.Write([]byte(deviceID.String()))
	h.Write([]byte("|"))
	h.Write(c.salt)
	return sessionKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// familyKey derives the per-user set key holding that user's session keys.
func (c *SessionCache) familyKey(userID uuid.UUID) string {
	h := sha256.New()
	h.Write([]byte(userID.String()))
	h.Write([]byte("|"))
	h.Write(c.salt)
	return familyKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// Store writes a session mirror with the refresh-lifetime TTL and registers
// it in the user's family set.
func (c *SessionCache) Store(ctx context.Context, entry *models.CachedSession) error {
	key := c.sessionKey(entry.UserID, entry.DeviceID)
	data, err := json.Marshal(entry)
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("store", "error").Inc()
		return fmt.Errorf("failed to marshal cached session: %w", err)
	}

	pipe := c.client.TxPipeline()
	pipe.Set(ctx, key, data, c.ttl)
	family := c.familyKey(entry.UserID)
	pipe.SAdd(ctx, family, key)
	pipe.Expire(ctx, family, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("store", "error").Inc()
		return fmt.Errorf("failed to store session in cache: %w", err)
	}
	metrics.CacheOperationsTotal.WithLabelValues("store", "ok").Inc()
	return nil
}

func (c *SessionCache) Get(ctx context.Context, userID, deviceID uuid.UUID) (*models.CachedSession, error) {
	data, err := c.client.Get(ctx, c.sessionKey(userID, deviceID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheOperationsTotal.WithLabelValues("get", "miss").Inc()
			return nil, domainErrors.ErrSessionNotFound
		}
		metrics.CacheOperationsTotal.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("failed to get session from cache: %w", err)
	}

	var entry models.CachedSession
	if err := json.Unmarshal(data, &entry); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("get", "error").Inc()
		return nil, fmt.Errorf("failed to unmarshal cached session: %w", err)
	}
	metrics.CacheOperationsTotal.WithLabelValues("get", "hit").Inc()
	return &entry, nil
}

// Rotate replaces the mirrored refresh hash and bumps the version counter.
// A missing entry is repopulated rather than treated as an error.
func (c *SessionCache) Rotate(ctx context.Context, userID, deviceID uuid.UUID, newHash string, issuedAt time.Time) error {
	entry, err := c.Get(ctx, userID, deviceID)
	if err != nil {
		if !errors.Is(err, domainErrors.ErrSessionNotFound) {
			return err
		}
		entry = &models.CachedSession{UserID: userID, DeviceID: deviceID}
	}
	entry.RefreshTokenHash = newHash
	entry.RefreshIssuedAt = issuedAt
	entry.Version++
	return c.Store(ctx, entry)
}

func (c *SessionCache) Delete(ctx context.Context, userID, deviceID uuid.UUID) error {
	key := c.sessionKey(userID, deviceID)
	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.SRem(ctx, c.familyKey(userID), key)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("delete", "error").Inc()
		return fmt.Errorf("failed to delete session from cache: %w", err)
	}
	metrics.CacheOperationsTotal.WithLabelValues("delete", "ok").Inc()
	return nil
}

// DeleteAllForUser drops every cached session in the user's family set,
// then the set itself.
func (c *SessionCache) DeleteAllForUser(ctx context.Context, userID uuid.UUID) error {
	family := c.familyKey(userID)
	keys, err := c.client.SMembers(ctx, family).Result()
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("delete_all", "error").Inc()
		return fmt.Errorf("failed to read session family from cache: %w", err)
	}

	pipe := c.client.TxPipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
	}
	pipe.Del(ctx, family)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.CacheOperationsTotal.WithLabelValues("delete_all", "error").Inc()
		return fmt.Errorf("failed to delete session family from cache: %w", err)
	}
	metrics.CacheOperationsTotal.WithLabelValues("delete_all", "ok").Inc()
	c.logger.Debug("Cleared session cache family",
		zap.String("user_id", userID.String()),
		zap.Int("keys", len(keys)),
	)
	return nil
}
