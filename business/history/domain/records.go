// Package domain contains the persisted records of the history context.
package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// LegRecord is one order of an execution, forward leg or reversal.
type LegRecord struct {
	Pair         string          `json:"pair"`
	Side         string          `json:"side"`
	Reversal     bool            `json:"reversal,omitempty"`
	OrderID      int64           `json:"order_id,omitempty"`
	RequestedQty decimal.Decimal `json:"requested_qty"`
	ExecutedQty  decimal.Decimal `json:"executed_qty"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	Error        string          `json:"error,omitempty"`
}

// TradeRecord is one execution attempt. Executed is set when at least one
// order was placed, or when a simulated execution succeeded; only executed
// trades count towards daily P&L and trade limits. Stranded lists assets a
// failed reversal left behind; Profit values them at zero.
type TradeRecord struct {
	ID             string                     `json:"id"`
	OpportunityID  string                     `json:"opportunity_id"`
	TrianglePath   string                     `json:"triangle_path"`
	Pairs          []string                   `json:"pairs"`
	State          string                     `json:"state"`
	Success        bool                       `json:"success"`
	Executed       bool                       `json:"executed"`
	Simulated      bool                       `json:"simulated"`
	InitialAmount  decimal.Decimal            `json:"initial_amount"`
	FinalAmount    decimal.Decimal            `json:"final_amount"`
	ExpectedProfit decimal.Decimal            `json:"expected_profit"`
	Profit         decimal.Decimal            `json:"profit"`
	ProfitPct      decimal.Decimal            `json:"profit_pct"`
	FailureKind    string                     `json:"failure_kind,omitempty"`
	Error          string                     `json:"error,omitempty"`
	Legs           []LegRecord                `json:"legs"`
	Stranded       map[string]decimal.Decimal `json:"stranded,omitempty"`
	Elapsed        time.Duration              `json:"elapsed_ns"`
	Timestamp      time.Time                  `json:"timestamp"`
}

// LegsJSON encodes the legs for storage.
func (t TradeRecord) LegsJSON() ([]byte, error) {
	if t.Legs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.Legs)
}

// StrandedJSON encodes the stranded balances for storage.
func (t TradeRecord) StrandedJSON() ([]byte, error) {
	if len(t.Stranded) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(t.Stranded)
}

// HasStranded reports whether the trade left inventory outside the start asset.
func (t TradeRecord) HasStranded() bool {
	return len(t.Stranded) > 0
}

// OpportunityRecord is a detected opportunity and, when it was not traded,
// the reason why.
type OpportunityRecord struct {
	ID             string          `json:"id"`
	TrianglePath   string          `json:"triangle_path"`
	ExpectedProfit decimal.Decimal `json:"expected_profit"`
	ProfitPct      decimal.Decimal `json:"profit_pct"`
	InitialAmount  decimal.Decimal `json:"initial_amount"`
	Reason         string          `json:"reason_not_executed,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// MetricsRecord is a periodic performance snapshot.
type MetricsRecord struct {
	TotalTrades      int             `json:"total_trades"`
	SuccessfulTrades int             `json:"successful_trades"`
	FailedTrades     int             `json:"failed_trades"`
	TotalProfit      decimal.Decimal `json:"total_profit"`
	AvgProfit        decimal.Decimal `json:"avg_profit_per_trade"`
	Uptime           time.Duration   `json:"uptime_ns"`
	Timestamp        time.Time       `json:"timestamp"`
}

// Statistics aggregates executed trades. Trades with stranded inventory are
// counted in TotalTrades and StrandedTrades only; their zero-valued holdings
// would distort the profit figures.
type Statistics struct {
	TotalTrades        int             `json:"total_trades"`
	StrandedTrades     int             `json:"stranded_trades"`
	ProfitableTrades   int             `json:"profitable_trades"`
	SuccessRate        decimal.Decimal `json:"success_rate"`
	TotalProfit        decimal.Decimal `json:"total_profit"`
	AvgProfit          decimal.Decimal `json:"avg_profit"`
	BestTrade          decimal.Decimal `json:"best_trade"`
	WorstTrade         decimal.Decimal `json:"worst_trade"`
	TotalOpportunities int             `json:"total_opportunities"`
}

// Finish derives the success rate and average from the counters.
func (s *Statistics) Finish() {
	valued := s.TotalTrades - s.StrandedTrades
	if s.TotalTrades == 0 {
		s.SuccessRate = decimal.Zero
	} else {
		n := decimal.NewFromInt(int64(s.TotalTrades))
		s.SuccessRate = decimal.NewFromInt(int64(s.ProfitableTrades)).Div(n).Mul(decimal.NewFromInt(100))
	}
	if valued <= 0 {
		s.AvgProfit = decimal.Zero
		return
	}
	s.AvgProfit = s.TotalProfit.Div(decimal.NewFromInt(int64(valued)))
}
