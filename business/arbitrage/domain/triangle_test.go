package domain

import (
	"testing"

	"github.com/fd1az/triarb-bot/internal/apperror"
)

func TestNewTriangle_Decomposition(t *testing.T) {
	tri, err := NewTriangle([]string{"USDT", "BTC", "ETH", "USDT"}, []string{"BTCUSDT", "ETHBTC", "ethusdt"})
	if err != nil {
		t.Fatalf("NewTriangle: %v", err)
	}

	want := []struct {
		pair        string
		base, quote string
		dir         Direction
	}{
		{"BTCUSDT", "BTC", "USDT", DirectionBuy},
		{"ETHBTC", "ETH", "BTC", DirectionBuy},
		{"ETHUSDT", "ETH", "USDT", DirectionSell},
	}

	for i, leg := range tri.Legs() {
		if leg.Pair != want[i].pair || leg.Base != want[i].base || leg.Quote != want[i].quote || leg.Direction != want[i].dir {
			t.Errorf("leg %d = %+v, want %+v", i, leg, want[i])
		}
	}

	if tri.Key() != "USDT->BTC->ETH->USDT" {
		t.Errorf("Key() = %q", tri.Key())
	}
	if tri.StartAsset() != "USDT" {
		t.Errorf("StartAsset() = %q", tri.StartAsset())
	}
}

func TestNewTriangle_NonStableStart(t *testing.T) {
	tri, err := NewTriangle([]string{"BTC", "ETH", "BNB", "BTC"}, []string{"ETHBTC", "BNBETH", "BNBBTC"})
	if err != nil {
		t.Fatalf("NewTriangle: %v", err)
	}

	dirs := []Direction{DirectionBuy, DirectionBuy, DirectionSell}
	for i, leg := range tri.Legs() {
		if leg.Direction != dirs[i] {
			t.Errorf("leg %d direction = %s, want %s", i, leg.Direction, dirs[i])
		}
	}
}

func TestNewTriangle_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		path  []string
		pairs []string
	}{
		{"too few pairs", []string{"USDT", "BTC", "ETH", "USDT"}, []string{"BTCUSDT", "ETHBTC"}},
		{"open loop", []string{"USDT", "BTC", "ETH", "BNB"}, []string{"BTCUSDT", "ETHBTC", "ETHBNB"}},
		{"pair does not match assets", []string{"USDT", "BTC", "ETH", "USDT"}, []string{"BTCUSDT", "BNBBTC", "ETHUSDT"}},
		{"pairs out of order", []string{"USDT", "BTC", "ETH", "USDT"}, []string{"ETHBTC", "BTCUSDT", "ETHUSDT"}},
		{"repeated asset", []string{"USDT", "BTC", "USDT", "USDT"}, []string{"BTCUSDT", "BTCUSDT", "USDTUSDT"}},
		{"empty asset", []string{"USDT", "", "ETH", "USDT"}, []string{"BTCUSDT", "ETHBTC", "ETHUSDT"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTriangle(tt.path, tt.pairs)
			if apperror.GetCode(err) != apperror.CodeInvalidTriangle {
				t.Errorf("expected INVALID_TRIANGLE, got %v", err)
			}
		})
	}
}

func TestDirection_Opposite(t *testing.T) {
	if DirectionBuy.Opposite() != DirectionSell || DirectionSell.Opposite() != DirectionBuy {
		t.Error("Opposite is not an involution")
	}
}
