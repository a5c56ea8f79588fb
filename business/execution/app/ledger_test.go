package app

import (
	"testing"

	"github.com/shopspring/decimal"

	exdomain "github.com/fd1az/triarb-bot/business/exchange/domain"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLedger_RoundTrip(t *testing.T) {
	// USDT -> BTC -> ETH -> USDT with a 0.1% fee on every leg.
	l := NewLedger("USDT", dec("1000"), dec("0.001"))

	l.Apply(exdomain.SideBuy, "BTC", "USDT", dec("0.02"), dec("50000"))
	if !l.Balance("USDT").IsZero() {
		t.Fatalf("USDT after leg 1 = %s", l.Balance("USDT"))
	}
	if !l.Balance("BTC").Equal(dec("0.01998")) {
		t.Fatalf("BTC after leg 1 = %s", l.Balance("BTC"))
	}

	l.Apply(exdomain.SideBuy, "ETH", "BTC", dec("0.333"), dec("0.06"))
	if !l.Balance("BTC").Equal(dec("0")) {
		t.Fatalf("BTC after leg 2 = %s", l.Balance("BTC"))
	}
	if !l.Balance("ETH").Equal(dec("0.332667")) {
		t.Fatalf("ETH after leg 2 = %s", l.Balance("ETH"))
	}

	l.Apply(exdomain.SideSell, "ETH", "USDT", dec("0.332667"), dec("3010"))
	want := dec("0.332667").Mul(dec("3010")).Mul(dec("0.999"))
	if !l.Balance("USDT").Equal(want) {
		t.Fatalf("USDT after leg 3 = %s, want %s", l.Balance("USDT"), want)
	}
	if assets := l.Assets(); len(assets) != 1 || assets[0] != "USDT" {
		t.Errorf("assets = %v", assets)
	}
}

func TestLedger_ReversalRestoresMinusFees(t *testing.T) {
	l := NewLedger("USDT", dec("100"), dec("0.001"))

	l.Apply(exdomain.SideBuy, "BTC", "USDT", dec("0.002"), dec("50000"))
	held := l.Balance("BTC")
	l.Apply(exdomain.SideSell, "BTC", "USDT", held, dec("50000"))

	// 100 spent, 0.002*0.999*50000*0.999 back.
	want := dec("0.002").Mul(dec("0.999")).Mul(dec("50000")).Mul(dec("0.999"))
	if !l.Balance("USDT").Equal(want) {
		t.Fatalf("USDT = %s, want %s", l.Balance("USDT"), want)
	}
	if !l.Balance("BTC").IsZero() {
		t.Fatalf("BTC = %s", l.Balance("BTC"))
	}
}
