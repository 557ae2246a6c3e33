package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/idcard/backend/internal/models"
)

// CardCache holds each user's card list for the public by-username endpoint.
// Every method is best-effort: a cache failure never fails the request.
type CardCache interface {
	GetUserCards(ctx context.Context, userID string) ([]models.Card, bool)
	SetUserCards(ctx context.Context, userID string, cards []models.Card)
	InvalidateUser(ctx context.Context, userID string)
}

// NoopCardCache is used when Redis is not configured.
type NoopCardCache struct{}

func (NoopCardCache) GetUserCards(context.Context, string) ([]models.Card, bool) { return nil, false }
func (NoopCardCache) SetUserCards(context.Context, string, []models.Card)        {}
func (NoopCardCache) InvalidateUser(context.Context, string)                      {}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	TTL      time.Duration
}

const cardCacheKeyPrefix = "idcard:cards:user:"

type RedisCardCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

var _ CardCache = (*RedisCardCache)(nil)

func NewRedisCardCache(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (*RedisCardCache, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}

	logger.Info("Redis connected", zap.String("addr", addr), zap.Int("db", cfg.DB))
	return &RedisCardCache{client: client, ttl: cfg.TTL, logger: logger}, nil
}

func (c *RedisCardCache) Close() error {
	return c.client.Close()
}

func cardCacheKey(userID string) string {
	return cardCacheKeyPrefix + userID
}

func (c *RedisCardCache) GetUserCards(ctx context.Context, userID string) ([]models.Card, bool) {
	key := cardCacheKey(userID)
	value, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("Card cache get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var cards []models.Card
	if err := json.Unmarshal(value, &cards); err != nil {
		c.logger.Warn("Card cache unmarshal failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return cards, true
}

func (c *RedisCardCache) SetUserCards(ctx context.Context, userID string, cards []models.Card) {
	key := cardCacheKey(userID)
	data, err := json.Marshal(cards)
	if err != nil {
		c.logger.Warn("Card cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Card cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCardCache) InvalidateUser(ctx context.Context, userID string) {
	key := cardCacheKey(userID)
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("Card cache delete failed", zap.String("key", key), zap.Error(err))
	}
}
