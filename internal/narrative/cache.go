package narrative

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"invoice-reconciliation-service/internal/metrics"
	"invoice-reconciliation-service/internal/models"
	"invoice-reconciliation-service/pkg/logger"
)

const defaultKeyPrefix = "narrative:"

// Cache stores encoded narratives by key
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RedisCache implements Cache on a Redis client
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// NewRedisCacheWithClient wraps an existing client
func NewRedisCacheWithClient(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

var _ Cache = (*RedisCache)(nil)

// Get implements Cache. A missing key is a miss, not an error.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

// Set implements Cache
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Ping checks the Redis connection
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// CachedNarrator serves repeated narrative requests from a cache. Cache
// failures fall through to the wrapped Summarizer.
type CachedNarrator struct {
	next    Summarizer
	cache   Cache
	ttl     time.Duration
	prefix  string
	metrics *metrics.Metrics
	logger  logger.Logger
}

// NewCachedNarrator wraps next with cache
func NewCachedNarrator(next Summarizer, cache Cache, ttl time.Duration) *CachedNarrator {
	return &CachedNarrator{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		prefix: defaultKeyPrefix,
		logger: logger.GetGlobalLogger().WithComponent("narrative_cache"),
	}
}

// SetMetrics attaches a metrics sink
func (c *CachedNarrator) SetMetrics(m *metrics.Metrics) {
	c.metrics = m
}

var _ Summarizer = (*CachedNarrator)(nil)

// Summarize implements Summarizer
func (c *CachedNarrator) Summarize(ctx context.Context, req *models.NarrativeRequest) (*models.NarrativeSummary, error) {
	key, err := c.Key(req)
	if err != nil {
		return c.next.Summarize(ctx, req)
	}
	log := c.logger.WithField("key", key)

	data, found, err := c.cache.Get(ctx, key)
	switch {
	case err != nil:
		c.metrics.NarrativeCacheLookup("error")
		log.WithError(err).Warn("Narrative cache unavailable; calling service directly")
	case found:
		var summary models.NarrativeSummary
		if jsonErr := json.Unmarshal(data, &summary); jsonErr == nil {
			c.metrics.NarrativeCacheLookup("hit")
			log.Debug("Narrative cache hit")
			return &summary, nil
		}
		c.metrics.NarrativeCacheLookup("error")
		log.Warn("Discarding undecodable cached narrative")
	default:
		c.metrics.NarrativeCacheLookup("miss")
	}

	summary, err := c.next.Summarize(ctx, req)
	if err != nil || summary == nil {
		return summary, err
	}

	if encoded, jsonErr := json.Marshal(summary); jsonErr == nil {
		if setErr := c.cache.Set(ctx, key, encoded, c.ttl); setErr != nil {
			log.WithError(setErr).Warn("Failed to cache narrative")
		}
	}
	return summary, nil
}

// Key returns the cache key for req: the prefix plus the SHA-256 of its JSON encoding
func (c *CachedNarrator) Key(req *models.NarrativeRequest) (string, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return c.prefix + hex.EncodeToString(sum[:]), nil
}
