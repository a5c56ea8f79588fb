package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Step is one leg's computed conversion.
type Step struct {
	Pair      string
	From      string
	To        string
	Direction Direction
	Price     decimal.Decimal
	// AmountIn is the amount of From held before the leg.
	AmountIn decimal.Decimal
	// AmountOut is the amount of To received before fees.
	AmountOut decimal.Decimal
	Fee       decimal.Decimal
	// AmountAfterFee is what the next leg starts with.
	AmountAfterFee decimal.Decimal
}

// BaseQuantity is the order quantity in base units: the bought amount for a
// BUY, the sold amount for a SELL.
func (s Step) BaseQuantity() decimal.Decimal {
	if s.Direction == DirectionBuy {
		return s.AmountOut
	}
	return s.AmountIn
}

// Opportunity is a triangle evaluated against one price snapshot.
type Opportunity struct {
	ID            string
	Triangle      *Triangle
	Timestamp     time.Time
	InitialAmount decimal.Decimal
	FinalAmount   decimal.Decimal
	Profit        decimal.Decimal
	ProfitPct     decimal.Decimal
	Steps         []Step
	Profitable    bool
}

// Key returns the triangle key of the opportunity.
func (o *Opportunity) Key() string {
	if o.Triangle == nil {
		return ""
	}
	return o.Triangle.Key()
}

// IsProfitable reports whether the profit percent met the threshold.
func (o *Opportunity) IsProfitable() bool {
	return o.Profitable
}
