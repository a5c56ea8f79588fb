package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestResult_Transitions(t *testing.T) {
	now := time.Now()
	r := NewResult("x", now)

	path := []State{StateLiquidityCheck, StateExecuting, StateFailed, StateReversing, StateReversed}
	for _, s := range path {
		if err := r.Transition(s, now, ""); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
	if len(r.Transitions) != len(path) {
		t.Fatalf("recorded %d transitions", len(r.Transitions))
	}
	if r.Transitions[0].From != StatePending || r.Transitions[4].To != StateReversed {
		t.Errorf("unexpected transitions %+v", r.Transitions)
	}
	if !r.State.Terminal() {
		t.Errorf("REVERSED must be terminal")
	}
}

func TestResult_IllegalTransition(t *testing.T) {
	tests := []struct {
		from, to State
	}{
		{StatePending, StateExecuting},
		{StateLiquidityCheck, StateSucceeded},
		{StateRejected, StateExecuting},
		{StateSucceeded, StateReversing},
		{StateExecuting, StateReversing},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			r := &Result{State: tt.from}
			if err := r.Transition(tt.to, time.Now(), ""); err == nil {
				t.Fatal("expected error")
			}
			if r.State != tt.from || len(r.Transitions) != 0 {
				t.Errorf("state changed on refused transition")
			}
		})
	}
}

func TestResult_OrdersPlacedAndFailedReversals(t *testing.T) {
	r := &Result{
		Legs: []Leg{{Pair: "BTCUSDT"}},
	}
	if r.OrdersPlaced() {
		t.Fatal("no executed quantity yet")
	}

	r.Legs = append(r.Legs, Leg{Pair: "ETHBTC", ExecutedQty: decimal.NewFromInt(1)})
	if !r.OrdersPlaced() {
		t.Fatal("expected orders placed")
	}

	r.Reversals = []Leg{
		{Pair: "ETHBTC", ExecutedQty: decimal.NewFromInt(1)},
		{Pair: "BTCUSDT", Error: "rejected"},
	}
	if got := r.FailedReversals(); len(got) != 1 || got[0].Pair != "BTCUSDT" {
		t.Errorf("failed reversals = %+v", got)
	}

	r.Fail(FailureOrder, errors.New("boom"))
	if r.FailureKind != FailureOrder || r.Error != "boom" {
		t.Errorf("fail not recorded: %+v", r)
	}
}
