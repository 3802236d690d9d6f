package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/meridianfin/meridian/internal/consol"
)

func newTestCache(t *testing.T) *TrialBalanceCache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewTrialBalanceCache(client, time.Minute)
}

func sampleTB(runID string) *consol.ConsolidatedTrialBalance {
	return &consol.ConsolidatedTrialBalance{
		RunID:    runID,
		GroupID:  "grp-1",
		Period:   consol.Period{Year: 2026, Period: 3},
		Currency: "USD",
		Lines: []consol.TrialBalanceLine{
			{
				AccountNumber:       "1000",
				AccountName:         "Cash",
				AggregatedBalance:   decimal.RequireFromString("1500.00"),
				ConsolidatedBalance: decimal.RequireFromString("1500.00"),
			},
		},
		Totals: consol.TrialBalanceTotals{
			TotalDebits:  decimal.RequireFromString("1500.00"),
			TotalCredits: decimal.RequireFromString("1500.00"),
		},
	}
}

func TestTrialBalanceCacheRoundTrip(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, sampleTB("run-1")))

	got, err := c.Get(ctx, "run-1")
	require.NoError(t, err)
	require.Equal(t, "grp-1", got.GroupID)
	require.Len(t, got.Lines, 1)
	require.True(t, got.Totals.TotalDebits.Equal(decimal.RequireFromString("1500.00")))
}

func TestTrialBalanceCacheMiss(t *testing.T) {
	c := newTestCache(t)
	_, err := c.Get(context.Background(), "absent")
	require.True(t, errors.Is(err, ErrMiss))
}

func TestTrialBalanceCacheInvalidate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, sampleTB("run-2")))
	require.NoError(t, c.Invalidate(ctx, "run-2"))

	_, err := c.Get(ctx, "run-2")
	require.True(t, errors.Is(err, ErrMiss))
}
