// Package domain contains the exchange-facing types of the exchange context.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is an order side.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the side that undoes s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Level is one price level of an order book.
type Level struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// Notional returns price × quantity.
func (l Level) Notional() decimal.Decimal {
	return l.Price.Mul(l.Quantity)
}

// OrderBook is a depth snapshot. Bids are sorted best (highest) first and
// asks best (lowest) first.
type OrderBook struct {
	Symbol       string
	LastUpdateID int64
	Bids         []Level
	Asks         []Level
	Timestamp    time.Time
}

// BestBid returns the best (highest) bid price level.
func (o *OrderBook) BestBid() *Level {
	if len(o.Bids) == 0 {
		return nil
	}
	return &o.Bids[0]
}

// BestAsk returns the best (lowest) ask price level.
func (o *OrderBook) BestAsk() *Level {
	if len(o.Asks) == 0 {
		return nil
	}
	return &o.Asks[0]
}

// MidPrice returns the mid-market price, zero when a side is empty.
func (o *OrderBook) MidPrice() decimal.Decimal {
	bid := o.BestBid()
	ask := o.BestAsk()
	if bid == nil || ask == nil {
		return decimal.Zero
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2))
}

// LevelsFor returns the side a taker order consumes: asks for a buy, bids
// for a sell.
func (o *OrderBook) LevelsFor(side Side) []Level {
	if side == SideBuy {
		return o.Asks
	}
	return o.Bids
}

// BookTicker is the best bid/ask of a symbol.
type BookTicker struct {
	Symbol   string
	BidPrice decimal.Decimal
	BidQty   decimal.Decimal
	AskPrice decimal.Decimal
	AskQty   decimal.Decimal
}

// Mid returns the mid of bid and ask, or whichever side is present.
func (b BookTicker) Mid() decimal.Decimal {
	switch {
	case b.BidPrice.IsPositive() && b.AskPrice.IsPositive():
		return b.BidPrice.Add(b.AskPrice).Div(decimal.NewFromInt(2))
	case b.BidPrice.IsPositive():
		return b.BidPrice
	default:
		return b.AskPrice
	}
}

// Balance is the holding of one asset.
type Balance struct {
	Asset  string
	Free   decimal.Decimal
	Locked decimal.Decimal
}
