package domain

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/internal/apperror"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNewOrderResult_AveragePrice(t *testing.T) {
	tests := []struct {
		name    string
		params  OrderResultParams
		wantAvg string
	}{
		{
			name: "cumulative quote",
			params: OrderResultParams{
				OrderID: 1, Symbol: "BTCUSDT", Side: SideBuy,
				RequestedQty: d("0.02"), ExecutedQty: d("0.02"), CumulativeQuoteQty: d("1000.4"),
			},
			wantAvg: "50020",
		},
		{
			name: "fills weighted fallback",
			params: OrderResultParams{
				OrderID: 2, Symbol: "ETHBTC", Side: SideBuy,
				RequestedQty: d("0.4"), ExecutedQty: d("0.4"),
				Fills: []Fill{
					{Price: d("0.06"), Quantity: d("0.3")},
					{Price: d("0.0604"), Quantity: d("0.1")},
				},
			},
			wantAvg: "0.0601",
		},
		{
			name: "nothing executed",
			params: OrderResultParams{
				OrderID: 3, Symbol: "ETHUSDT", Side: SideSell, Status: "EXPIRED",
				RequestedQty: d("1"), ExecutedQty: d("0"),
			},
			wantAvg: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewOrderResult(tt.params)
			if err != nil {
				t.Fatalf("NewOrderResult: %v", err)
			}
			if !r.AvgPrice.Equal(d(tt.wantAvg)) {
				t.Errorf("avg = %s, want %s", r.AvgPrice, tt.wantAvg)
			}
		})
	}
}

func TestNewOrderResult_FailsClosed(t *testing.T) {
	base := func() OrderResultParams {
		return OrderResultParams{OrderID: 9, Symbol: "BTCUSDT", Side: SideBuy, RequestedQty: d("1"), ExecutedQty: d("1"), CumulativeQuoteQty: d("50000")}
	}

	tests := []struct {
		name   string
		mutate func(*OrderResultParams)
	}{
		{"missing order id", func(p *OrderResultParams) { p.OrderID = 0 }},
		{"missing symbol", func(p *OrderResultParams) { p.Symbol = "" }},
		{"unknown side", func(p *OrderResultParams) { p.Side = "HOLD" }},
		{"negative executed", func(p *OrderResultParams) { p.ExecutedQty = d("-1") }},
		{"overfilled", func(p *OrderResultParams) { p.ExecutedQty = d("1.5") }},
		{"no price information", func(p *OrderResultParams) { p.CumulativeQuoteQty = decimal.Zero }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base()
			tt.mutate(&p)
			_, err := NewOrderResult(p)
			if apperror.GetCode(err) != apperror.CodeMalformedOrderResponse {
				t.Errorf("expected MALFORMED_ORDER_RESPONSE, got %v", err)
			}
		})
	}
}

func TestOrderResult_FillRatio(t *testing.T) {
	r := &OrderResult{RequestedQty: d("0.5"), ExecutedQty: d("0.4")}
	if !r.FillRatio().Equal(d("0.8")) {
		t.Errorf("FillRatio() = %s", r.FillRatio())
	}
}

func TestSymbolFilters_FormatQuantity(t *testing.T) {
	f := SymbolFilters{Symbol: "ETHBTC", StepSize: d("0.0001"), MinQty: d("0.0001"), MinNotional: d("0.0001")}

	tests := []struct {
		name    string
		qty     string
		price   string
		want    string
		wantErr bool
	}{
		{"floors to step", "0.33299999", "0.06", "0.3329", false},
		{"already on step", "0.3329", "0.06", "0.3329", false},
		{"rounds to zero", "0.00009", "0.06", "0", true},
		{"below min notional", "0.001", "0.06", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.FormatQuantity(d(tt.qty), d(tt.price))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !got.Equal(d(tt.want)) {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestOrderBook_LevelsFor(t *testing.T) {
	ob := &OrderBook{
		Bids: []Level{{Price: d("99"), Quantity: d("1")}},
		Asks: []Level{{Price: d("101"), Quantity: d("2")}},
	}
	if ob.LevelsFor(SideBuy)[0].Price.String() != "101" || ob.LevelsFor(SideSell)[0].Price.String() != "99" {
		t.Error("wrong book side")
	}
	if !ob.MidPrice().Equal(d("100")) {
		t.Errorf("mid = %s", ob.MidPrice())
	}
}
