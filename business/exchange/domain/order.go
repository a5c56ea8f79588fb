package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/internal/apperror"
)

// Fill is one trade that contributed to an order.
type Fill struct {
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	Commission      decimal.Decimal
	CommissionAsset string
}

// OrderResult is the validated outcome of a market order.
type OrderResult struct {
	OrderID            int64
	ClientOrderID      string
	Symbol             string
	Side               Side
	Status             string
	RequestedQty       decimal.Decimal
	ExecutedQty        decimal.Decimal
	CumulativeQuoteQty decimal.Decimal
	AvgPrice           decimal.Decimal
	Fills              []Fill
	TransactTime       time.Time
}

// FillRatio returns executed / requested quantity.
func (r *OrderResult) FillRatio() decimal.Decimal {
	if !r.RequestedQty.IsPositive() {
		return decimal.Zero
	}
	return r.ExecutedQty.Div(r.RequestedQty)
}

// Filled reports whether any quantity executed.
func (r *OrderResult) Filled() bool {
	return r.ExecutedQty.IsPositive()
}

// OrderResultParams are the decoded, still unvalidated response fields.
type OrderResultParams struct {
	OrderID            int64
	ClientOrderID      string
	Symbol             string
	Side               Side
	Status             string
	RequestedQty       decimal.Decimal
	ExecutedQty        decimal.Decimal
	CumulativeQuoteQty decimal.Decimal
	Fills              []Fill
	TransactTime       time.Time
}

// NewOrderResult validates p and derives the average fill price: cumulative
// quote / executed quantity when available, else the fills-weighted average.
// Anything inconsistent is rejected.
func NewOrderResult(p OrderResultParams) (*OrderResult, error) {
	malformed := func(reason string) error {
		return apperror.New(apperror.CodeMalformedOrderResponse,
			apperror.WithContext(fmt.Sprintf("%s order %d: %s", p.Symbol, p.OrderID, reason)))
	}

	switch {
	case p.OrderID <= 0:
		return nil, malformed("missing order id")
	case p.Symbol == "":
		return nil, malformed("missing symbol")
	case p.Side != SideBuy && p.Side != SideSell:
		return nil, malformed(fmt.Sprintf("unknown side %q", p.Side))
	case p.ExecutedQty.IsNegative() || p.CumulativeQuoteQty.IsNegative():
		return nil, malformed("negative quantity")
	case p.RequestedQty.IsPositive() && p.ExecutedQty.GreaterThan(p.RequestedQty):
		return nil, malformed(fmt.Sprintf("executed %s exceeds requested %s", p.ExecutedQty, p.RequestedQty))
	}

	avg := decimal.Zero
	if p.ExecutedQty.IsPositive() {
		switch {
		case p.CumulativeQuoteQty.IsPositive():
			avg = p.CumulativeQuoteQty.Div(p.ExecutedQty)
		default:
			var qty, notional decimal.Decimal
			for _, f := range p.Fills {
				if !f.Price.IsPositive() || f.Quantity.IsNegative() {
					return nil, malformed("invalid fill")
				}
				qty = qty.Add(f.Quantity)
				notional = notional.Add(f.Price.Mul(f.Quantity))
			}
			if !qty.IsPositive() {
				return nil, malformed("executed quantity without price information")
			}
			avg = notional.Div(qty)
		}
	}

	return &OrderResult{
		OrderID:            p.OrderID,
		ClientOrderID:      p.ClientOrderID,
		Symbol:             p.Symbol,
		Side:               p.Side,
		Status:             p.Status,
		RequestedQty:       p.RequestedQty,
		ExecutedQty:        p.ExecutedQty,
		CumulativeQuoteQty: p.CumulativeQuoteQty,
		AvgPrice:           avg,
		Fills:              p.Fills,
		TransactTime:       p.TransactTime,
	}, nil
}
