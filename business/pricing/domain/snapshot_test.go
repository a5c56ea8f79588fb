package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestFilter(t *testing.T) {
	prices := map[string]decimal.Decimal{
		"BTCUSDT": decimal.NewFromInt(50000),
		"ETHBTC":  decimal.RequireFromString("0.06"),
		"XRPUSDT": decimal.Zero,
	}

	got := Filter(prices, []string{"BTCUSDT", "XRPUSDT", "SOLUSDT"})
	if len(got) != 1 {
		t.Fatalf("got %d prices, want 1", len(got))
	}
	if _, ok := got["BTCUSDT"]; !ok {
		t.Error("BTCUSDT missing")
	}

	all := Filter(prices, nil)
	if len(all) != 3 {
		t.Errorf("nil symbols should keep all, got %d", len(all))
	}
}

func TestSnapshot_Missing(t *testing.T) {
	s := Snapshot{Prices: map[string]decimal.Decimal{"BTCUSDT": decimal.NewFromInt(1)}}
	missing := s.Missing([]string{"ETHUSDT", "BTCUSDT", "ETHBTC"})
	if len(missing) != 2 || missing[0] != "ETHBTC" || missing[1] != "ETHUSDT" {
		t.Errorf("Missing() = %v", missing)
	}
}

func TestQuote_Mid(t *testing.T) {
	tests := []struct {
		name string
		q    Quote
		want string
	}{
		{"both sides", Quote{Bid: decimal.NewFromInt(99), Ask: decimal.NewFromInt(101)}, "100"},
		{"bid only", Quote{Bid: decimal.NewFromInt(99)}, "99"},
		{"ask only", Quote{Ask: decimal.NewFromInt(101)}, "101"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.q.Mid().Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Mid() = %s, want %s", tt.q.Mid(), tt.want)
			}
		})
	}
}
