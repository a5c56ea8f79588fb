package domain

import (
	"testing"

	"github.com/shopspring/decimal"

	exdomain "github.com/fd1az/triarb-bot/business/exchange/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func lvl(price, qty string) exdomain.Level {
	return exdomain.Level{Price: d(price), Quantity: d(qty)}
}

func TestWalkBook(t *testing.T) {
	asks := []exdomain.Level{lvl("100", "1"), lvl("101", "1"), lvl("102", "5")}

	w := WalkBook(asks, exdomain.SideBuy, d("1.5"), d("100"))
	if !w.Filled.Equal(d("1.5")) || !w.Remaining.IsZero() {
		t.Fatalf("filled %s remaining %s", w.Filled, w.Remaining)
	}
	// cost = 100 + 50.5 = 150.5, avg = 100.333...
	if !w.Cost.Equal(d("150.5")) {
		t.Errorf("cost = %s", w.Cost)
	}
	// adverse = 0*1 + 1*0.5 = 0.5 -> 0.5/1.5/100*100 = 0.333...%
	if w.SlippagePct.StringFixed(4) != "0.3333" {
		t.Errorf("slippage = %s", w.SlippagePct)
	}
	if w.LevelsUsed != 2 {
		t.Errorf("levels used = %d", w.LevelsUsed)
	}
	// every fetched level counts: 100 + 101 + 510
	if !w.AvailableNotional.Equal(d("711")) {
		t.Errorf("available = %s", w.AvailableNotional)
	}
}

func TestWalkBook_SellSlippageSign(t *testing.T) {
	bids := []exdomain.Level{lvl("99", "1"), lvl("98", "1")}

	w := WalkBook(bids, exdomain.SideSell, d("2"), d("99"))
	// received below ref on the second level: (0 + 1)/2/99*100
	if !w.SlippagePct.IsPositive() {
		t.Errorf("selling below ref must be adverse, got %s", w.SlippagePct)
	}

	better := WalkBook([]exdomain.Level{lvl("100", "1")}, exdomain.SideSell, d("1"), d("99"))
	if !better.SlippagePct.IsNegative() {
		t.Errorf("price improvement must be negative, got %s", better.SlippagePct)
	}
}

func TestEvaluate_Boundaries(t *testing.T) {
	maxSlip := d("0.2")

	tests := []struct {
		name       string
		levels     []exdomain.Level
		qty        string
		multiplier string
		want       bool
	}{
		{"depth exactly equal", []exdomain.Level{lvl("100", "2")}, "2", "1", true},
		{"depth one unit short", []exdomain.Level{lvl("100", "1.9999")}, "2", "1", false},
		{"notional exactly at multiplier", []exdomain.Level{lvl("100", "10")}, "1", "10", true},
		{"notional one unit below multiplier", []exdomain.Level{lvl("100", "9.9999")}, "1", "10", false},
		{"slippage exactly at max", []exdomain.Level{lvl("100.2", "20")}, "1", "1", true},
		{"slippage just above max", []exdomain.Level{lvl("100.2001", "20")}, "1", "1", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := WalkBook(tt.levels, exdomain.SideBuy, d(tt.qty), d("100"))
			r := Evaluate("BTCUSDT", exdomain.SideBuy, d(tt.qty), d("100"), w, maxSlip, d(tt.multiplier))
			if r.Sufficient != tt.want {
				t.Errorf("Sufficient = %v, want %v (reason %q)", r.Sufficient, tt.want, r.Reason)
			}
			if !r.Sufficient && r.Reason == "" {
				t.Error("insufficient result without reason")
			}
		})
	}
}
