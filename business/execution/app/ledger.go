package app

import (
	"sort"

	"github.com/shopspring/decimal"

	exdomain "github.com/fd1az/triarb-bot/business/exchange/domain"
)

// Ledger tracks per-asset balances through a sequence of fills. A BUY
// spends qty*price quote and receives qty*(1-fee) base; a SELL spends qty
// base and receives qty*price*(1-fee) quote.
type Ledger struct {
	feeMul   decimal.Decimal
	balances map[string]decimal.Decimal
}

// NewLedger starts with amount of asset.
func NewLedger(asset string, amount, takerFee decimal.Decimal) *Ledger {
	return &Ledger{
		feeMul:   decimal.NewFromInt(1).Sub(takerFee),
		balances: map[string]decimal.Decimal{asset: amount},
	}
}

// Apply books one fill on the base/quote pair.
func (l *Ledger) Apply(side exdomain.Side, base, quote string, qty, price decimal.Decimal) {
	switch side {
	case exdomain.SideBuy:
		l.add(quote, qty.Mul(price).Neg())
		l.add(base, qty.Mul(l.feeMul))
	case exdomain.SideSell:
		l.add(base, qty.Neg())
		l.add(quote, qty.Mul(price).Mul(l.feeMul))
	}
}

// Balance returns the balance of asset, zero if never touched.
func (l *Ledger) Balance(asset string) decimal.Decimal {
	return l.balances[asset]
}

// Balances returns a copy of every non-zero balance, keyed by asset.
func (l *Ledger) Balances() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(l.balances))
	for a, b := range l.balances {
		if !b.IsZero() {
			out[a] = b
		}
	}
	return out
}

// Assets lists the assets with a non-zero balance, sorted.
func (l *Ledger) Assets() []string {
	var out []string
	for a, b := range l.balances {
		if !b.IsZero() {
			out = append(out, a)
		}
	}
	sort.Strings(out)
	return out
}

func (l *Ledger) add(asset string, delta decimal.Decimal) {
	l.balances[asset] = l.balances[asset].Add(delta)
}
