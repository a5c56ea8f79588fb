package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/triarb-bot/business/history/domain"
	"github.com/fd1az/triarb-bot/internal/config"
)

// newTestStore connects to ARB_TEST_POSTGRES_DSN and truncates the tables.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("ARB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("ARB_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, config.PostgresConfig{DSN: dsn, MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, Migrate(ctx, pool))
	// Running twice must be a no-op.
	require.NoError(t, Migrate(ctx, pool))

	_, err = pool.Exec(ctx, "TRUNCATE trades, opportunities, metrics")
	require.NoError(t, err)
	return NewStore(pool)
}

func TestStore_TradeRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	ts := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	in := domain.TradeRecord{
		ID:             uuid.NewString(),
		OpportunityID:  "opp-1",
		TrianglePath:   "USDT->BTC->ETH->USDT",
		Pairs:          []string{"BTCUSDT", "ETHBTC", "ETHUSDT"},
		State:          "SUCCEEDED",
		Success:        true,
		Executed:       true,
		InitialAmount:  decimal.RequireFromString("100"),
		FinalAmount:    decimal.RequireFromString("100.123456789"),
		ExpectedProfit: decimal.RequireFromString("0.2"),
		Profit:         decimal.RequireFromString("0.123456789"),
		ProfitPct:      decimal.RequireFromString("0.123456789"),
		Legs: []domain.LegRecord{
			{Pair: "BTCUSDT", Side: "BUY", OrderID: 7, RequestedQty: decimal.RequireFromString("0.001"), ExecutedQty: decimal.RequireFromString("0.001"), AvgPrice: decimal.RequireFromString("50000")},
		},
		Elapsed:   850 * time.Millisecond,
		Timestamp: ts,
	}
	require.NoError(t, s.SaveTrade(ctx, in))

	got, err := s.RecentTrades(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, in.ID, got[0].ID)
	assert.Equal(t, in.Pairs, got[0].Pairs)
	assert.True(t, got[0].Profit.Equal(in.Profit), "profit %s", got[0].Profit)
	assert.True(t, got[0].Timestamp.Equal(ts))
	require.Len(t, got[0].Legs, 1)
	assert.Equal(t, int64(7), got[0].Legs[0].OrderID)
	assert.Equal(t, 850*time.Millisecond, got[0].Elapsed)
}

func TestStore_PnLAndCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for _, tr := range []domain.TradeRecord{
		{Executed: true, Profit: decimal.RequireFromString("1.5"), Timestamp: day.Add(time.Hour)},
		{Executed: true, Profit: decimal.RequireFromString("-4"), Timestamp: day.Add(2 * time.Hour)},
		{Executed: false, Profit: decimal.RequireFromString("-100"), Timestamp: day.Add(3 * time.Hour)},
		{Executed: true, Profit: decimal.RequireFromString("9"), Timestamp: day.Add(24 * time.Hour)},
	} {
		tr.TrianglePath = "USDT->BTC->ETH->USDT"
		tr.State = "SUCCEEDED"
		require.NoError(t, s.SaveTrade(ctx, tr))
	}

	pnl, err := s.PnLBetween(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.True(t, pnl.Equal(decimal.RequireFromString("-2.5")), "pnl %s", pnl)

	n, err := s.TradeCountBetween(ctx, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st, err := s.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, st.TotalTrades)
	assert.Equal(t, 2, st.ProfitableTrades)
	assert.True(t, st.BestTrade.Equal(decimal.NewFromInt(9)))
	assert.True(t, st.WorstTrade.Equal(decimal.NewFromInt(-4)))
}

func TestStore_Opportunities(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	id := uuid.NewString()
	require.NoError(t, s.SaveOpportunity(ctx, domain.OpportunityRecord{
		ID: id, TrianglePath: "USDT->BTC->ETH->USDT",
		ExpectedProfit: decimal.RequireFromString("0.3"), ProfitPct: decimal.RequireFromString("0.3"),
		InitialAmount: decimal.NewFromInt(100), Timestamp: now,
	}))
	require.NoError(t, s.SaveOpportunity(ctx, domain.OpportunityRecord{
		ID: id, TrianglePath: "USDT->BTC->ETH->USDT", Reason: "risk: paused", Timestamp: now,
	}))
	require.NoError(t, s.SaveMetrics(ctx, domain.MetricsRecord{TotalTrades: 1, Timestamp: now}))

	got, err := s.RecentOpportunities(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "risk: paused", got[0].Reason)

	n, err := s.PruneBefore(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
	got, err = s.RecentOpportunities(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
