package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/expensetrack/expensetrack/application/port/inbound"
	"github.com/expensetrack/expensetrack/infrastructure/service/logger"
)

const keyPrefix = "ratelimit:"

// rateLimitService counts attempts in Redis with fixed windows.
type rateLimitService struct {
	redisClient *redis.Client
	logger      logger.Logger
}

type RateLimitConfig struct {
	Enabled       bool
	IPAttempts    int
	IPWindow      time.Duration
	UserAttempts  int
	UserWindow    time.Duration
	BlockDuration time.Duration
}

// NewRateLimitService returns a Redis backed limiter, or a no-op one when
// limiting is disabled or no client is available.
func NewRateLimitService(config RateLimitConfig, client *redis.Client, log logger.Logger) inbound.RateLimitService {
	if !config.Enabled || client == nil {
		log.Info(context.Background(), "Rate limiting disabled", nil)
		return NewNoopRateLimitService()
	}

	log.Info(context.Background(), "Rate limiting service initialized", map[string]interface{}{
		"ip_attempts":    config.IPAttempts,
		"ip_window":      config.IPWindow.String(),
		"user_attempts":  config.UserAttempts,
		"user_window":    config.UserWindow.String(),
		"block_duration": config.BlockDuration.String(),
	})

	return &rateLimitService{
		redisClient: client,
		logger:      log,
	}
}

func (s *rateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	currentCount, err := s.GetAttempts(ctx, key)
	if err != nil {
		return false, err
	}

	underLimit := currentCount < limit
	s.logger.Debug(ctx, "Rate limit check", map[string]interface{}{
		"key":         key,
		"current":     currentCount,
		"limit":       limit,
		"under_limit": underLimit,
	})

	return underLimit, nil
}

// Increment bumps the counter. The window starts with the first attempt.
func (s *rateLimitService) Increment(ctx context.Context, key string, window time.Duration) error {
	counterKey := keyPrefix + key

	count, err := s.redisClient.Incr(ctx, counterKey).Result()
	if err != nil {
		s.logger.Error(ctx, "Failed to increment rate limit counter", err, map[string]interface{}{"key": key})
		return fmt.Errorf("failed to increment rate limit: %w", err)
	}
	if count == 1 {
		if err := s.redisClient.Expire(ctx, counterKey, window).Err(); err != nil {
			return fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}

	s.logger.Debug(ctx, "Rate limit incremented", map[string]interface{}{
		"key":    key,
		"count":  count,
		"window": window.String(),
	})
	return nil
}

func (s *rateLimitService) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	blockKey := blockKey(key)

	pipeline := s.redisClient.TxPipeline()
	pipeline.HSet(ctx, blockKey, map[string]interface{}{
		"reason":         reason,
		"blocked_at":     time.Now().Unix(),
		"duration":       int64(duration.Seconds()),
		"correlation_id": logger.CorrelationID(ctx),
	})
	pipeline.Expire(ctx, blockKey, duration)
	if _, err := pipeline.Exec(ctx); err != nil {
		s.logger.Error(ctx, "Failed to block key", err, map[string]interface{}{"key": key})
		return fmt.Errorf("failed to block key: %w", err)
	}

	s.logger.Warn(ctx, "Key blocked due to rate limit exceeded", map[string]interface{}{
		"key":      key,
		"duration": duration.String(),
		"reason":   reason,
	})
	return nil
}

func (s *rateLimitService) IsBlocked(ctx context.Context, key string) (bool, error) {
	exists, err := s.redisClient.Exists(ctx, blockKey(key)).Result()
	if err != nil {
		s.logger.Error(ctx, "Failed to check block status", err, map[string]interface{}{"key": key})
		return false, fmt.Errorf("failed to check block status: %w", err)
	}
	return exists > 0, nil
}

func (s *rateLimitService) GetAttempts(ctx context.Context, key string) (int, error) {
	count, err := s.redisClient.Get(ctx, keyPrefix+key).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		s.logger.Error(ctx, "Failed to get attempts count", err, map[string]interface{}{"key": key})
		return 0, fmt.Errorf("failed to get attempts: %w", err)
	}
	return count, nil
}

// Reset clears the counter after a successful attempt. Blocks stay in place.
func (s *rateLimitService) Reset(ctx context.Context, key string) error {
	if err := s.redisClient.Del(ctx, keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to reset rate limit: %w", err)
	}
	return nil
}

func blockKey(key string) string {
	return keyPrefix + "blocked:" + key
}

type noopRateLimitService struct{}

func NewNoopRateLimitService() inbound.RateLimitService {
	return noopRateLimitService{}
}

func (noopRateLimitService) CheckLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

func (noopRateLimitService) Increment(ctx context.Context, key string, window time.Duration) error {
	return nil
}

func (noopRateLimitService) Block(ctx context.Context, key string, duration time.Duration, reason string) error {
	return nil
}

func (noopRateLimitService) IsBlocked(ctx context.Context, key string) (bool, error) {
	return false, nil
}

func (noopRateLimitService) GetAttempts(ctx context.Context, key string) (int, error) {
	return 0, nil
}

func (noopRateLimitService) Reset(ctx context.Context, key string) error {
	return nil
}
