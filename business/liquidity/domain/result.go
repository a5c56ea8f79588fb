// Package domain contains the depth-walk math and results of the liquidity
// context.
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	exdomain "github.com/fd1az/triarb-bot/business/exchange/domain"
)

var hundred = decimal.NewFromInt(100)

// Result is the outcome of checking one leg against the order book.
type Result struct {
	Pair     string          `json:"pair"`
	Side     exdomain.Side   `json:"side"`
	Quantity decimal.Decimal `json:"quantity"`
	RefPrice decimal.Decimal `json:"ref_price"`

	Sufficient bool `json:"sufficient"`

	// Fillable is true when the fetched levels cover Quantity.
	Fillable  bool            `json:"fillable"`
	FilledQty decimal.Decimal `json:"filled_qty"`
	AvgPrice  decimal.Decimal `json:"avg_price"`
	// SlippagePct is the quantity-weighted adverse deviation from RefPrice
	// in percent. Price improvement is negative.
	SlippagePct       decimal.Decimal `json:"slippage_pct"`
	AvailableNotional decimal.Decimal `json:"available_notional"`
	RequiredNotional  decimal.Decimal `json:"required_notional"`
	LevelsUsed        int             `json:"levels_used"`

	Reason string `json:"reason,omitempty"`
}

// Walk is the fill estimate for a quantity against one book side.
type Walk struct {
	Filled            decimal.Decimal
	Remaining         decimal.Decimal
	Cost              decimal.Decimal
	AvgPrice          decimal.Decimal
	SlippagePct       decimal.Decimal
	AvailableNotional decimal.Decimal
	LevelsUsed        int
}

// WalkBook consumes levels best to worst until qty is filled. Slippage is
// measured against refPrice: paying above it on a buy or receiving below it
// on a sell is positive. AvailableNotional covers every fetched level, not
// just the consumed ones.
func WalkBook(levels []exdomain.Level, side exdomain.Side, qty, refPrice decimal.Decimal) Walk {
	w := Walk{Remaining: qty}

	var adverse decimal.Decimal
	for _, lvl := range levels {
		w.AvailableNotional = w.AvailableNotional.Add(lvl.Notional())

		if !w.Remaining.IsPositive() {
			continue
		}

		take := decimal.Min(w.Remaining, lvl.Quantity)
		if !take.IsPositive() {
			continue
		}
		w.Cost = w.Cost.Add(take.Mul(lvl.Price))
		w.Filled = w.Filled.Add(take)
		w.Remaining = w.Remaining.Sub(take)
		w.LevelsUsed++

		diff := lvl.Price.Sub(refPrice)
		if side == exdomain.SideSell {
			diff = diff.Neg()
		}
		adverse = adverse.Add(diff.Mul(take))
	}

	if w.Filled.IsPositive() {
		w.AvgPrice = w.Cost.Div(w.Filled)
		if refPrice.IsPositive() {
			w.SlippagePct = adverse.Div(w.Filled).Div(refPrice).Mul(hundred)
		}
	}
	return w
}

// Evaluate builds a Result from a walk. A leg is sufficient when the whole
// quantity fills, slippage stays within maxSlippagePct and the book side
// holds at least multiplier × the required notional.
func Evaluate(pair string, side exdomain.Side, qty, refPrice decimal.Decimal, w Walk, maxSlippagePct, multiplier decimal.Decimal) Result {
	r := Result{
		Pair:              pair,
		Side:              side,
		Quantity:          qty,
		RefPrice:          refPrice,
		Fillable:          !w.Remaining.IsPositive(),
		FilledQty:         w.Filled,
		AvgPrice:          w.AvgPrice,
		SlippagePct:       w.SlippagePct,
		AvailableNotional: w.AvailableNotional,
		RequiredNotional:  qty.Mul(refPrice),
		LevelsUsed:        w.LevelsUsed,
	}

	minNotional := r.RequiredNotional.Mul(multiplier)
	switch {
	case !r.Fillable:
		r.Reason = fmt.Sprintf("insufficient depth: missing %s of %s", w.Remaining.String(), qty.String())
	case r.SlippagePct.GreaterThan(maxSlippagePct):
		r.Reason = fmt.Sprintf("slippage %s%% exceeds max %s%%", r.SlippagePct.StringFixed(4), maxSlippagePct.String())
	case r.AvailableNotional.LessThan(minNotional):
		r.Reason = fmt.Sprintf("available notional %s below %s (%sx required)",
			r.AvailableNotional.StringFixed(2), minNotional.StringFixed(2), multiplier.String())
	default:
		r.Sufficient = true
	}
	return r
}

// Failed returns an insufficient result carrying reason.
func Failed(pair string, side exdomain.Side, qty, refPrice decimal.Decimal, reason string) Result {
	return Result{
		Pair:             pair,
		Side:             side,
		Quantity:         qty,
		RefPrice:         refPrice,
		RequiredNotional: qty.Mul(refPrice),
		Reason:           reason,
	}
}
