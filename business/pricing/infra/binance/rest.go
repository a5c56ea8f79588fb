package binance

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/pricing/domain"
)

// PriceLister is the exchange call the REST feed polls.
type PriceLister interface {
	GetAllPrices(ctx context.Context) (map[string]decimal.Decimal, error)
}

// RESTFeed polls /api/v3/ticker/price on every call.
type RESTFeed struct {
	exchange PriceLister
	lastOK   atomic.Int64
	cached   atomic.Int64
	now      func() time.Time
}

// NewRESTFeed creates a feed backed by exchange.
func NewRESTFeed(exchange PriceLister) *RESTFeed {
	return &RESTFeed{exchange: exchange, now: time.Now}
}

// Prices fetches the latest prices.
func (f *RESTFeed) Prices(ctx context.Context) (map[string]decimal.Decimal, error) {
	prices, err := f.exchange.GetAllPrices(ctx)
	if err != nil {
		return nil, err
	}
	f.lastOK.Store(f.now().UnixNano())
	f.cached.Store(int64(len(prices)))
	return prices, nil
}

// Health reports when the last poll succeeded.
func (f *RESTFeed) Health() domain.FeedHealth {
	h := domain.FeedHealth{
		Source:        domain.SourceREST,
		Running:       true,
		CachedSymbols: int(f.cached.Load()),
	}
	if ns := f.lastOK.Load(); ns > 0 {
		h.LastMessageAt = time.Unix(0, ns)
		h.LastMessageAge = f.now().Sub(h.LastMessageAt)
		h.Connected = true
	}
	return h
}
