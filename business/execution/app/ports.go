// Package app contains the trade executor and its ports.
package app

import (
	"context"

	"github.com/shopspring/decimal"

	arbdomain "github.com/fd1az/triarb-bot/business/arbitrage/domain"
	exdomain "github.com/fd1az/triarb-bot/business/exchange/domain"
	liqdomain "github.com/fd1az/triarb-bot/business/liquidity/domain"
)

// Exchange places orders and provides the lot metadata to size them.
type Exchange interface {
	PlaceMarketOrder(ctx context.Context, symbol string, side exdomain.Side, qty decimal.Decimal) (*exdomain.OrderResult, error)
	SymbolFilters(ctx context.Context, symbol string) (exdomain.SymbolFilters, error)
}

// LiquidityGate validates an opportunity against order-book depth.
type LiquidityGate interface {
	CheckTriangle(ctx context.Context, opp *arbdomain.Opportunity) (bool, []liqdomain.Result)
}
