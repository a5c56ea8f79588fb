package domain

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/internal/apperror"
)

// SymbolFilters is the trading metadata of a pair needed to size orders.
type SymbolFilters struct {
	Symbol      string
	Status      string
	BaseAsset   string
	QuoteAsset  string
	StepSize    decimal.Decimal
	MinQty      decimal.Decimal
	MaxQty      decimal.Decimal
	MinNotional decimal.Decimal
}

// RoundQuantity floors qty to the lot step.
func (f SymbolFilters) RoundQuantity(qty decimal.Decimal) decimal.Decimal {
	if !f.StepSize.IsPositive() {
		return qty
	}
	return qty.Div(f.StepSize).Floor().Mul(f.StepSize)
}

// FormatQuantity floors qty to the lot step and checks it against the
// minimum quantity and, at price, the minimum notional. A quantity that
// rounds below either minimum is rejected.
func (f SymbolFilters) FormatQuantity(qty, price decimal.Decimal) (decimal.Decimal, error) {
	rounded := f.RoundQuantity(qty)

	if f.MaxQty.IsPositive() && rounded.GreaterThan(f.MaxQty) {
		rounded = f.RoundQuantity(f.MaxQty)
	}

	switch {
	case !rounded.IsPositive():
		return decimal.Zero, f.sizeError(fmt.Sprintf("quantity %s rounds to zero at step %s", qty, f.StepSize))
	case f.MinQty.IsPositive() && rounded.LessThan(f.MinQty):
		return decimal.Zero, f.sizeError(fmt.Sprintf("quantity %s below min %s", rounded, f.MinQty))
	case f.MinNotional.IsPositive() && rounded.Mul(price).LessThan(f.MinNotional):
		return decimal.Zero, f.sizeError(fmt.Sprintf("notional %s below min %s", rounded.Mul(price), f.MinNotional))
	}
	return rounded, nil
}

func (f SymbolFilters) sizeError(reason string) error {
	return apperror.New(apperror.CodeInvalidTradeSize,
		apperror.WithContext(f.Symbol+": "+reason))
}
