// Package app defines what the exchange context offers to the rest of the bot.
package app

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/exchange/domain"
)

// Gateway is the full exchange surface: market data, metadata, orders and
// the health of the connection itself.
type Gateway interface {
	Ping(ctx context.Context) error
	GetOrderBook(ctx context.Context, symbol string, limit int) (*domain.OrderBook, error)
	GetAllPrices(ctx context.Context) (map[string]decimal.Decimal, error)
	GetBookTickers(ctx context.Context) ([]domain.BookTicker, error)
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, qty decimal.Decimal) (*domain.OrderResult, error)
	SymbolFilters(ctx context.Context, symbol string) (domain.SymbolFilters, error)
	GetBalances(ctx context.Context) ([]domain.Balance, error)

	// ErrorRate is the share of failed requests within window, in [0,1].
	ErrorRate(window time.Duration) float64
}
