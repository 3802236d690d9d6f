package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridianfin/meridian/internal/consol"
)

// ErrMiss is returned when the cache has no entry for the key.
var ErrMiss = errors.New("cache: miss")

// TrialBalanceCache caches generated trial balances keyed by run id. The
// store remains the source of truth; a miss or decode failure just falls
// through to it.
type TrialBalanceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTrialBalanceCache constructs the cache with the given entry TTL.
func NewTrialBalanceCache(client *redis.Client, ttl time.Duration) *TrialBalanceCache {
	return &TrialBalanceCache{client: client, ttl: ttl}
}

func tbKey(runID string) string {
	return "consol:tb:" + runID
}

// Get returns the cached trial balance for a run, or ErrMiss.
func (c *TrialBalanceCache) Get(ctx context.Context, runID string) (*consol.ConsolidatedTrialBalance, error) {
	if c == nil || c.client == nil {
		return nil, ErrMiss
	}
	raw, err := c.client.Get(ctx, tbKey(runID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, err
	}
	var tb consol.ConsolidatedTrialBalance
	if err := json.Unmarshal(raw, &tb); err != nil {
		return nil, ErrMiss
	}
	return &tb, nil
}

// Put stores a trial balance. Errors are returned for the caller to log;
// caching is best effort.
func (c *TrialBalanceCache) Put(ctx context.Context, tb *consol.ConsolidatedTrialBalance) error {
	if c == nil || c.client == nil || tb == nil {
		return nil
	}
	raw, err := json.Marshal(tb)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, tbKey(tb.RunID), raw, c.ttl).Err()
}

// Invalidate drops the entry for a run, used when a period is regenerated.
func (c *TrialBalanceCache) Invalidate(ctx context.Context, runID string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, tbKey(runID)).Err()
}
