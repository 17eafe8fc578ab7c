package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/green-campus-api/internal/dto"
	"github.com/noah-isme/green-campus-api/internal/observability"
)

// WalletCache stores wallet summaries in Redis. A nil client disables caching.
type WalletCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewWalletCache builds the cache.
func NewWalletCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) *WalletCache {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &WalletCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "wallet_cache").Logger(),
	}
}

func walletCacheKey(studentID uint) string {
	return fmt.Sprintf("wallet:student:%d", studentID)
}

// Get returns the cached summary and whether it was found.
func (c *WalletCache) Get(ctx context.Context, studentID uint) (dto.WalletResponse, bool) {
	if c == nil || c.client == nil {
		return dto.WalletResponse{}, false
	}

	cached, err := c.client.Get(ctx, walletCacheKey(studentID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Msg("failed to read wallet cache")
		}
		observability.WalletCache().WithLabelValues("miss").Inc()
		return dto.WalletResponse{}, false
	}

	var response dto.WalletResponse
	if err := json.Unmarshal([]byte(cached), &response); err != nil {
		observability.WalletCache().WithLabelValues("miss").Inc()
		return dto.WalletResponse{}, false
	}

	observability.WalletCache().WithLabelValues("hit").Inc()
	return response, true
}

func (c *WalletCache) Set(ctx context.Context, wallet dto.WalletResponse) {
	if c == nil || c.client == nil {
		return
	}

	payload, err := json.Marshal(wallet)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, walletCacheKey(wallet.StudentID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to store wallet cache")
	}
}

func (c *WalletCache) Invalidate(ctx context.Context, studentID uint) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, walletCacheKey(studentID)).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate wallet cache")
	}
}
