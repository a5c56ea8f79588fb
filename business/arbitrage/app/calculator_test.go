package app

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/arbitrage/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
	"github.com/fd1az/triarb-bot/internal/config"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func mustTriangle(t *testing.T, path, pairs []string) *domain.Triangle {
	t.Helper()
	tri, err := domain.NewTriangle(path, pairs)
	if err != nil {
		t.Fatalf("NewTriangle: %v", err)
	}
	return tri
}

func usdtBtcEth(t *testing.T) *domain.Triangle {
	return mustTriangle(t, []string{"USDT", "BTC", "ETH", "USDT"}, []string{"BTCUSDT", "ETHBTC", "ETHUSDT"})
}

func defaultCalcConfig() CalculatorConfig {
	return CalculatorConfig{
		TakerFee:     d("0.001"),
		Slippage:     d("0.002"),
		MinProfitPct: d("0.5"),
		MaxTradeSize: d("5000"),
	}
}

func TestCalculator_Evaluate_Scenario(t *testing.T) {
	calc := NewCalculator(defaultCalcConfig())
	prices := map[string]decimal.Decimal{
		"BTCUSDT": d("50000"),
		"ETHBTC":  d("0.06"),
		"ETHUSDT": d("3100"),
	}

	opp, err := calc.Evaluate(usdtBtcEth(t), prices, d("1000"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// 1000/50000*0.999 = 0.01998 BTC; /0.06*0.999 = 0.332667 ETH;
	// *3100*0.999 = 1030.2364323 USDT; *0.998 cushion.
	if !opp.FinalAmount.Equal(d("1028.1759594354")) {
		t.Errorf("final = %s", opp.FinalAmount)
	}
	if !opp.Profit.Equal(d("28.1759594354")) {
		t.Errorf("profit = %s", opp.Profit)
	}
	if !opp.ProfitPct.Equal(d("2.81759594354")) {
		t.Errorf("profit pct = %s", opp.ProfitPct)
	}
	if !opp.Profitable {
		t.Error("expected profitable")
	}

	wantSteps := []struct {
		dir      domain.Direction
		in, out  string
		afterFee string
	}{
		{domain.DirectionBuy, "1000", "0.02", "0.01998"},
		{domain.DirectionBuy, "0.01998", "0.333", "0.332667"},
		{domain.DirectionSell, "0.332667", "1031.2677", "1030.2364323"},
	}
	for i, s := range opp.Steps {
		w := wantSteps[i]
		if s.Direction != w.dir || !s.AmountIn.Equal(d(w.in)) || !s.AmountOut.Equal(d(w.out)) || !s.AmountAfterFee.Equal(d(w.afterFee)) {
			t.Errorf("step %d = %+v, want %+v", i, s, w)
		}
		if !s.Fee.Equal(s.AmountOut.Sub(s.AmountAfterFee)) {
			t.Errorf("step %d fee = %s", i, s.Fee)
		}
	}
}

func TestCalculator_Evaluate_Errors(t *testing.T) {
	calc := NewCalculator(defaultCalcConfig())
	tri := usdtBtcEth(t)

	tests := []struct {
		name     string
		prices   map[string]decimal.Decimal
		initial  string
		wantCode apperror.Code
	}{
		{
			name:     "missing pair",
			prices:   map[string]decimal.Decimal{"BTCUSDT": d("50000"), "ETHUSDT": d("3100")},
			initial:  "1000",
			wantCode: apperror.CodeMissingPrice,
		},
		{
			name:     "zero price",
			prices:   map[string]decimal.Decimal{"BTCUSDT": d("50000"), "ETHBTC": d("0"), "ETHUSDT": d("3100")},
			initial:  "1000",
			wantCode: apperror.CodeInvalidPrice,
		},
		{
			name:     "non-positive amount",
			prices:   map[string]decimal.Decimal{"BTCUSDT": d("50000"), "ETHBTC": d("0.06"), "ETHUSDT": d("3100")},
			initial:  "0",
			wantCode: apperror.CodeInvalidTradeSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Evaluate(tri, tt.prices, d(tt.initial))
			if apperror.GetCode(err) != tt.wantCode {
				t.Errorf("code = %s, want %s (err=%v)", apperror.GetCode(err), tt.wantCode, err)
			}
		})
	}
}

func TestCalculator_FeeMonotonicity(t *testing.T) {
	prices := map[string]decimal.Decimal{
		"BTCUSDT": d("50000"),
		"ETHBTC":  d("0.06"),
		"ETHUSDT": d("3100"),
	}
	tri := usdtBtcEth(t)

	fees := []string{"0", "0.0005", "0.001", "0.002", "0.01"}
	var prev *decimal.Decimal
	for _, fee := range fees {
		cfg := defaultCalcConfig()
		cfg.TakerFee = d(fee)

		opp, err := NewCalculator(cfg).Evaluate(tri, prices, d("1000"))
		if err != nil {
			t.Fatalf("fee %s: %v", fee, err)
		}
		if prev != nil && !opp.Profit.LessThan(*prev) {
			t.Errorf("fee %s: profit %s not below previous %s", fee, opp.Profit, prev)
		}
		p := opp.Profit
		prev = &p
	}
}

func TestCalculator_Scan(t *testing.T) {
	calc := NewCalculator(defaultCalcConfig())

	best := usdtBtcEth(t)
	viaBNB := mustTriangle(t, []string{"USDT", "BTC", "BNB", "USDT"}, []string{"BTCUSDT", "BNBBTC", "BNBUSDT"})
	unpriced := mustTriangle(t, []string{"USDT", "ETH", "BNB", "USDT"}, []string{"ETHUSDT", "BNBETH", "BNBUSDT"})
	flat := mustTriangle(t, []string{"BTC", "ETH", "BNB", "BTC"}, []string{"ETHBTC", "BNBETH", "BNBBTC"})

	prices := map[string]decimal.Decimal{
		"BTCUSDT": d("50000"),
		"ETHBTC":  d("0.06"),
		"ETHUSDT": d("3100"),
		"BNBBTC":  d("0.01"),
		"BNBUSDT": d("510"),
		// BNBETH missing: unpriced is skipped
	}

	opps := calc.Scan([]*domain.Triangle{flat, viaBNB, unpriced, best}, prices, d("1000"))

	if len(opps) != 2 {
		t.Fatalf("expected 2 profitable opportunities, got %d", len(opps))
	}
	if opps[0].Triangle != best || opps[1].Triangle != viaBNB {
		t.Errorf("order = %s, %s", opps[0].Key(), opps[1].Key())
	}
	if !opps[0].ProfitPct.GreaterThan(opps[1].ProfitPct) {
		t.Error("not sorted descending")
	}
}

func TestCalculator_Scan_TiesKeepInputOrder(t *testing.T) {
	calc := NewCalculator(defaultCalcConfig())

	a := usdtBtcEth(t)
	b := usdtBtcEth(t)
	prices := map[string]decimal.Decimal{"BTCUSDT": d("50000"), "ETHBTC": d("0.06"), "ETHUSDT": d("3100")}

	opps := calc.Scan([]*domain.Triangle{a, b}, prices, d("1000"))
	if len(opps) != 2 || opps[0].Triangle != a || opps[1].Triangle != b {
		t.Fatal("stable order not preserved")
	}
}

func TestCalculator_OptimalTradeSize(t *testing.T) {
	calc := NewCalculator(defaultCalcConfig())

	tests := []struct {
		capital, max, want string
	}{
		{"1000", "2000", "1000"},
		{"10000", "7000", "5000"},
		{"10000", "300", "300"},
	}
	for _, tt := range tests {
		if got := calc.OptimalTradeSize(d(tt.capital), d(tt.max)); !got.Equal(d(tt.want)) {
			t.Errorf("OptimalTradeSize(%s, %s) = %s, want %s", tt.capital, tt.max, got, tt.want)
		}
	}
}

func TestLoadTriangles_DropsInvalid(t *testing.T) {
	cfgs := []config.TriangleConfig{
		{Path: []string{"USDT", "BTC", "ETH", "USDT"}, Pairs: []string{"BTCUSDT", "ETHBTC", "ETHUSDT"}},
		{Path: []string{"USDT", "BTC", "ETH", "USDT"}, Pairs: []string{"BTCUSDT", "XRPBTC", "ETHUSDT"}},
	}

	tris, err := LoadTriangles(context.Background(), cfgs, &mockLogger{})
	if err != nil {
		t.Fatalf("LoadTriangles: %v", err)
	}
	if len(tris) != 1 {
		t.Errorf("expected 1 valid triangle, got %d", len(tris))
	}

	if _, err := LoadTriangles(context.Background(), cfgs[1:], &mockLogger{}); err == nil {
		t.Error("expected error when no triangle is valid")
	}
}
