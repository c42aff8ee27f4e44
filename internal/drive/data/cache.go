package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lk2023060901/cloud-drive-backend/internal/drive/biz"
	"github.com/redis/go-redis/v9"
)

// statsCacheKey 存储总览的缓存键
const statsCacheKey = "drive:stats"

type statsCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStatsCache 创建基于 Redis 的总览缓存
func NewStatsCache(client *redis.Client, ttl time.Duration) biz.StatsCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &statsCache{client: client, ttl: ttl}
}

// Get 读取缓存，未命中返回 (nil, nil)
func (c *statsCache) Get(ctx context.Context) (*biz.StorageStats, error) {
	raw, err := c.client.Get(ctx, statsCacheKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stats cache get: %w", err)
	}

	var stats biz.StorageStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("stats cache decode: %w", err)
	}
	return &stats, nil
}

func (c *statsCache) Set(ctx context.Context, stats *biz.StorageStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("stats cache encode: %w", err)
	}
	if err := c.client.Set(ctx, statsCacheKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("stats cache set: %w", err)
	}
	return nil
}

func (c *statsCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, statsCacheKey).Err(); err != nil {
		return fmt.Errorf("stats cache invalidate: %w", err)
	}
	return nil
}
