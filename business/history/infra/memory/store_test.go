package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/history/domain"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestStore_PnLAndCountOnlyExecutedInRange(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	day := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	trades := []domain.TradeRecord{
		{ID: "a", Executed: true, Profit: d("1.5"), Timestamp: day.Add(time.Hour)},
		{ID: "b", Executed: true, Profit: d("-4"), Timestamp: day.Add(2 * time.Hour)},
		{ID: "c", Executed: false, Profit: d("-100"), Timestamp: day.Add(3 * time.Hour)},
		{ID: "d", Executed: true, Profit: d("10"), Timestamp: day.Add(-time.Second)},
		{ID: "e", Executed: true, Profit: d("10"), Timestamp: day.Add(24 * time.Hour)},
	}
	for _, tr := range trades {
		if err := s.SaveTrade(ctx, tr); err != nil {
			t.Fatalf("SaveTrade: %v", err)
		}
	}

	pnl, err := s.PnLBetween(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("PnLBetween: %v", err)
	}
	if !pnl.Equal(d("-2.5")) {
		t.Errorf("pnl = %s, want -2.5", pnl)
	}

	n, err := s.TradeCountBetween(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("TradeCountBetween: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestStore_Statistics(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	now := time.Now()

	for _, p := range []string{"2", "-1", "3", "0"} {
		_ = s.SaveTrade(ctx, domain.TradeRecord{Executed: true, Profit: d(p), Timestamp: now})
	}
	_ = s.SaveTrade(ctx, domain.TradeRecord{Executed: false, Profit: d("-50"), Timestamp: now})
	_ = s.SaveOpportunity(ctx, domain.OpportunityRecord{ID: "o1", Timestamp: now})

	st, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if st.TotalTrades != 4 || st.ProfitableTrades != 2 || st.TotalOpportunities != 1 {
		t.Errorf("counts = %+v", st)
	}
	if !st.TotalProfit.Equal(d("4")) || !st.AvgProfit.Equal(d("1")) {
		t.Errorf("total %s avg %s", st.TotalProfit, st.AvgProfit)
	}
	if !st.BestTrade.Equal(d("3")) || !st.WorstTrade.Equal(d("-1")) {
		t.Errorf("best %s worst %s", st.BestTrade, st.WorstTrade)
	}
	if !st.SuccessRate.Equal(d("50")) {
		t.Errorf("success rate %s", st.SuccessRate)
	}
}

func TestStore_StatisticsSetStrandedTradesApart(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	now := time.Now()

	_ = s.SaveTrade(ctx, domain.TradeRecord{Executed: true, Profit: d("2"), Timestamp: now})
	_ = s.SaveTrade(ctx, domain.TradeRecord{Executed: true, Profit: d("-1"), Timestamp: now})
	// reversal of the ETHBTC leg failed: the ETH is valued at zero in Profit
	_ = s.SaveTrade(ctx, domain.TradeRecord{
		Executed:  true,
		Profit:    d("-1000"),
		Stranded:  map[string]decimal.Decimal{"ETH": d("0.332667")},
		Timestamp: now,
	})

	st, err := s.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics: %v", err)
	}
	if st.TotalTrades != 3 || st.StrandedTrades != 1 || st.ProfitableTrades != 1 {
		t.Errorf("counts = %+v", st)
	}
	if !st.TotalProfit.Equal(d("1")) || !st.AvgProfit.Equal(d("0.5")) {
		t.Errorf("total %s avg %s", st.TotalProfit, st.AvgProfit)
	}
	if !st.WorstTrade.Equal(d("-1")) || !st.BestTrade.Equal(d("2")) {
		t.Errorf("best %s worst %s", st.BestTrade, st.WorstTrade)
	}

	// daily risk limits still see the full loss
	pnl, err := s.PnLBetween(ctx, now.Add(-time.Minute), now.Add(time.Minute))
	if err != nil {
		t.Fatalf("PnLBetween: %v", err)
	}
	if !pnl.Equal(d("-999")) {
		t.Errorf("pnl = %s, want -999", pnl)
	}
}

func TestStore_RecentNewestFirstAndBounded(t *testing.T) {
	ctx := context.Background()
	s := New(3)

	for _, id := range []string{"1", "2", "3", "4"} {
		_ = s.SaveOpportunity(ctx, domain.OpportunityRecord{ID: id})
	}

	got, _ := s.RecentOpportunities(ctx, 2)
	if len(got) != 2 || got[0].ID != "4" || got[1].ID != "3" {
		t.Fatalf("recent = %+v", got)
	}

	all, _ := s.RecentOpportunities(ctx, 0)
	if len(all) != 3 || all[2].ID != "2" {
		t.Fatalf("bounded = %+v", all)
	}
}

func TestStore_PruneBefore(t *testing.T) {
	ctx := context.Background()
	s := New(0)
	now := time.Now()

	_ = s.SaveTrade(ctx, domain.TradeRecord{ID: "old", Timestamp: now.Add(-48 * time.Hour)})
	_ = s.SaveTrade(ctx, domain.TradeRecord{ID: "new", Timestamp: now})

	n, err := s.PruneBefore(ctx, now.Add(-24*time.Hour))
	if err != nil || n != 1 {
		t.Fatalf("PruneBefore = %d, %v", n, err)
	}
	recent, _ := s.RecentTrades(ctx, 10)
	if len(recent) != 1 || recent[0].ID != "new" {
		t.Fatalf("remaining = %+v", recent)
	}
}
