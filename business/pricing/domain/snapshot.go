// Package domain contains the core domain types for the pricing context.
package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Source names.
const (
	SourceWebSocket = "websocket"
	SourceREST      = "rest"
	SourceRedis     = "redis"
)

// Quote is the best bid/ask of one symbol as last seen by a feed.
type Quote struct {
	Symbol    string
	Bid       decimal.Decimal
	Ask       decimal.Decimal
	UpdatedAt time.Time
}

// Mid returns the mid price, or whichever side is present.
func (q Quote) Mid() decimal.Decimal {
	switch {
	case q.Bid.IsPositive() && q.Ask.IsPositive():
		return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
	case q.Bid.IsPositive():
		return q.Bid
	default:
		return q.Ask
	}
}

// Snapshot is a point-in-time set of prices keyed by pair symbol.
type Snapshot struct {
	Prices    map[string]decimal.Decimal
	Timestamp time.Time
	Source    string
}

// Empty reports whether the snapshot has no prices.
func (s Snapshot) Empty() bool {
	return len(s.Prices) == 0
}

// Age returns how old the snapshot is at now.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.Timestamp)
}

// Missing returns the symbols without a price, sorted.
func (s Snapshot) Missing(symbols []string) []string {
	var missing []string
	for _, sym := range symbols {
		if _, ok := s.Prices[sym]; !ok {
			missing = append(missing, sym)
		}
	}
	sort.Strings(missing)
	return missing
}

// Filter returns a copy holding only symbols. A nil or empty list keeps
// everything.
func Filter(prices map[string]decimal.Decimal, symbols []string) map[string]decimal.Decimal {
	if len(symbols) == 0 {
		out := make(map[string]decimal.Decimal, len(prices))
		for k, v := range prices {
			out[k] = v
		}
		return out
	}

	out := make(map[string]decimal.Decimal, len(symbols))
	for _, sym := range symbols {
		if p, ok := prices[sym]; ok && p.IsPositive() {
			out[sym] = p
		}
	}
	return out
}

// FeedHealth describes a price feed for the status endpoints.
type FeedHealth struct {
	Source         string        `json:"source"`
	Running        bool          `json:"running"`
	Connected      bool          `json:"connected"`
	LastMessageAt  time.Time     `json:"last_message_at"`
	LastMessageAge time.Duration `json:"last_message_age"`
	Reconnects     int64         `json:"reconnects"`
	CachedSymbols  int           `json:"cached_symbols"`
}
