package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"surfscale-engine/internal/campaign"
)

// RedisConfig controls redis client behavior.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	PingTimeout  time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 10
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

const redisKeyPrefix = "surfscale:campaigns:"

// RedisCache is a CampaignCache shared between replicas. Freshness is the
// key TTL, so expired entries simply vanish.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ CampaignCache = (*RedisCache)(nil)

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func redisKey(accountID string, period campaign.Period) string {
	return redisKeyPrefix + accountID + ":" + string(period)
}

// Get treats any redis failure as a miss so polling falls through to the providers.
func (c *RedisCache) Get(ctx context.Context, accountID string, period campaign.Period) ([]campaign.Campaign, bool) {
	b, err := c.rdb.Get(ctx, redisKey(accountID, period)).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		log.Warn().Err(err).Str("account", accountID).Msg("redis cache read failed")
		return nil, false
	}
	var cs []campaign.Campaign
	if err := json.Unmarshal(b, &cs); err != nil {
		log.Warn().Err(err).Str("account", accountID).Msg("redis cache entry corrupt")
		return nil, false
	}
	return cs, true
}

func (c *RedisCache) Put(ctx context.Context, accountID string, period campaign.Period, cs []campaign.Campaign) error {
	b, err := json.Marshal(cs)
	if err != nil {
		return fmt.Errorf("encode campaigns: %w", err)
	}
	if err := c.rdb.Set(ctx, redisKey(accountID, period), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, accountID string) error {
	keys := make([]string, 0, len(campaign.Periods))
	for _, p := range campaign.Periods {
		keys = append(keys, redisKey(accountID, p))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
