package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/FayceMOTIV/fastgross-pro-sub006/internal/sequence"
)

const sweepSummaryKey = "sweep:last"

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func batchKey(campaignID string) string {
	return fmt.Sprintf("campaign:%s:lastrun", campaignID)
}

func (c *RedisCache) StoreBatchResult(ctx context.Context, res *sequence.BatchResult) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, batchKey(res.CampaignID), b, c.ttl).Err()
}

// LastBatchResult returns nil without error when no run has been cached
// for the campaign.
func (c *RedisCache) LastBatchResult(ctx context.Context, campaignID string) (*sequence.BatchResult, error) {
	raw, err := c.rdb.Get(ctx, batchKey(campaignID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var res sequence.BatchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode cached batch result: %w", err)
	}
	return &res, nil
}

func (c *RedisCache) StoreSweepSummary(ctx context.Context, sum *sequence.SweepSummary) error {
	b, err := json.Marshal(sum)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, sweepSummaryKey, b, c.ttl).Err()
}

func (c *RedisCache) LastSweepSummary(ctx context.Context) (*sequence.SweepSummary, error) {
	raw, err := c.rdb.Get(ctx, sweepSummaryKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var sum sequence.SweepSummary
	if err := json.Unmarshal(raw, &sum); err != nil {
		return nil, fmt.Errorf("decode cached sweep summary: %w", err)
	}
	return &sum, nil
}
