// Package domain contains the core domain types for the arbitrage context.
package domain

// Direction is the order side of one leg. BUY converts quote into base,
// SELL converts base into quote.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Opposite returns the side that undoes d.
func (d Direction) Opposite() Direction {
	if d == DirectionBuy {
		return DirectionSell
	}
	return DirectionBuy
}

// String returns the exchange side name.
func (d Direction) String() string {
	return string(d)
}
