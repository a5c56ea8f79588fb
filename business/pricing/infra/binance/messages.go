// Package binance implements price feeds over Binance market data.
package binance

import (
	"encoding/json"
	"strings"
)

// StreamEvent is the wrapper of every combined-stream message.
type StreamEvent struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// BookTickerEvent is a best bid/ask update.
// Stream: <symbol>@bookTicker
type BookTickerEvent struct {
	UpdateID int64  `json:"u"`
	Symbol   string `json:"s"`
	BidPrice string `json:"b"`
	BidQty   string `json:"B"`
	AskPrice string `json:"a"`
	AskQty   string `json:"A"`
}

// BookTickerStream returns the stream name for symbol.
func BookTickerStream(symbol string) string {
	return strings.ToLower(symbol) + "@bookTicker"
}

// symbolFromStream extracts the symbol from a stream name.
// Example: "ethbtc@bookTicker" -> "ETHBTC"
func symbolFromStream(stream string) string {
	if idx := strings.Index(stream, "@"); idx > 0 {
		return strings.ToUpper(stream[:idx])
	}
	return strings.ToUpper(stream)
}
