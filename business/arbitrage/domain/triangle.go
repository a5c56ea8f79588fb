package domain

import (
	"fmt"
	"strings"

	"github.com/fd1az/triarb-bot/internal/apperror"
)

// Leg is one validated conversion of a triangle: the pair traded, the asset
// held before and after, and the resulting order direction.
type Leg struct {
	Pair      string
	From      string
	To        string
	Base      string
	Quote     string
	Direction Direction
}

// Triangle is an immutable closed trade path of four assets (first == last)
// and three pairs. Directions are resolved once, at construction.
type Triangle struct {
	path [4]string
	legs [3]Leg
	key  string
}

// NewTriangle validates path and pairs and decomposes each pair into the two
// adjacent assets it converts between.
func NewTriangle(path, pairs []string) (*Triangle, error) {
	if len(path) != 4 || len(pairs) != 3 {
		return nil, invalidTriangle(path, pairs, fmt.Sprintf("need 4 assets and 3 pairs, got %d and %d", len(path), len(pairs)))
	}

	var t Triangle
	for i, a := range path {
		a = strings.ToUpper(strings.TrimSpace(a))
		if a == "" {
			return nil, invalidTriangle(path, pairs, fmt.Sprintf("asset %d is empty", i))
		}
		t.path[i] = a
	}
	if t.path[0] != t.path[3] {
		return nil, invalidTriangle(path, pairs, "path must return to its starting asset")
	}
	if t.path[0] == t.path[1] || t.path[1] == t.path[2] || t.path[0] == t.path[2] {
		return nil, invalidTriangle(path, pairs, "intermediate assets must be distinct")
	}

	for i, p := range pairs {
		pair := strings.ToUpper(strings.TrimSpace(p))

		matches := 0
		for j := 0; j < 3; j++ {
			if _, ok := decompose(pair, t.path[j], t.path[j+1]); ok {
				matches++
			}
		}
		if matches > 1 {
			return nil, invalidTriangle(path, pairs, fmt.Sprintf("pair %s matches more than one transition", pair))
		}

		leg, ok := decompose(pair, t.path[i], t.path[i+1])
		if !ok {
			return nil, invalidTriangle(path, pairs,
				fmt.Sprintf("pair %s does not convert %s into %s", pair, t.path[i], t.path[i+1]))
		}
		t.legs[i] = leg
	}

	t.key = strings.Join(t.path[:], "->")
	return &t, nil
}

// decompose matches pair against the from/to assets. Holding the quote asset
// means buying base; holding the base asset means selling it.
func decompose(pair, from, to string) (Leg, bool) {
	leg := Leg{Pair: pair, From: from, To: to}
	switch pair {
	case to + from:
		leg.Base, leg.Quote, leg.Direction = to, from, DirectionBuy
	case from + to:
		leg.Base, leg.Quote, leg.Direction = from, to, DirectionSell
	default:
		return Leg{}, false
	}
	return leg, true
}

func invalidTriangle(path, pairs []string, reason string) error {
	return apperror.New(apperror.CodeInvalidTriangle,
		apperror.WithContext(fmt.Sprintf("%v %v: %s", path, pairs, reason)))
}

// Key identifies the triangle, e.g. "USDT->BTC->ETH->USDT".
func (t *Triangle) Key() string {
	return t.key
}

// StartAsset is the asset capital starts and ends in.
func (t *Triangle) StartAsset() string {
	return t.path[0]
}

// Path returns a copy of the four assets.
func (t *Triangle) Path() []string {
	out := make([]string, 4)
	copy(out, t.path[:])
	return out
}

// Pairs returns the three pair symbols in order.
func (t *Triangle) Pairs() []string {
	return []string{t.legs[0].Pair, t.legs[1].Pair, t.legs[2].Pair}
}

// Legs returns a copy of the three legs.
func (t *Triangle) Legs() []Leg {
	out := make([]Leg, 3)
	copy(out, t.legs[:])
	return out
}

// String implements fmt.Stringer.
func (t *Triangle) String() string {
	return t.key
}
