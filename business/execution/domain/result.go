// Package domain contains the execution state machine and its result.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	liqdomain "github.com/fd1az/triarb-bot/business/liquidity/domain"
)

// State is a step of the execution state machine.
type State string

const (
	StatePending        State = "PENDING"
	StateLiquidityCheck State = "LIQUIDITY_CHECK"
	StateRejected       State = "REJECTED"
	StateExecuting      State = "EXECUTING"
	StateSucceeded      State = "SUCCEEDED"
	StateFailed         State = "FAILED"
	StateReversing      State = "REVERSING"
	StateReversed       State = "REVERSED"
)

var transitions = map[State][]State{
	StatePending:        {StateLiquidityCheck},
	StateLiquidityCheck: {StateRejected, StateExecuting},
	StateExecuting:      {StateSucceeded, StateFailed},
	StateFailed:         {StateReversing},
	StateReversing:      {StateReversed},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

// FailureKind classifies why an execution did not succeed.
type FailureKind string

const (
	FailureNone      FailureKind = ""
	FailureLiquidity FailureKind = "liquidity"
	FailureQuantity  FailureKind = "quantity"
	FailureMetadata  FailureKind = "metadata"
	FailureOrder     FailureKind = "order"
	FailureFillRatio FailureKind = "fill_ratio"
	FailureTimeout   FailureKind = "leg_timeout"
	FailureBudget    FailureKind = "triangle_timeout"
)

// Transition is one recorded state change.
type Transition struct {
	From State     `json:"from"`
	To   State     `json:"to"`
	At   time.Time `json:"at"`
	Note string    `json:"note,omitempty"`
}

// Leg is one placed (or attempted) market order.
type Leg struct {
	Index        int             `json:"index"`
	Pair         string          `json:"pair"`
	Side         string          `json:"side"`
	Reversal     bool            `json:"reversal,omitempty"`
	OrderID      int64           `json:"order_id,omitempty"`
	RequestedQty decimal.Decimal `json:"requested_qty"`
	ExecutedQty  decimal.Decimal `json:"executed_qty"`
	AvgPrice     decimal.Decimal `json:"avg_price"`
	FillRatio    decimal.Decimal `json:"fill_ratio"`
	Latency      time.Duration   `json:"latency_ns"`
	Error        string          `json:"error,omitempty"`
}

// Filled reports whether any quantity executed.
func (l Leg) Filled() bool {
	return l.ExecutedQty.IsPositive()
}

// Result is the full record of one execution attempt.
type Result struct {
	ID             string
	OpportunityID  string
	TriangleKey    string
	Pairs          []string
	StartAsset     string
	State          State
	Success        bool
	Simulated      bool
	InitialAmount  decimal.Decimal
	ExpectedProfit decimal.Decimal
	FinalAmount    decimal.Decimal
	RealizedProfit decimal.Decimal
	// Stranded holds the non-start balances left by failed reversals.
	// RealizedProfit values them at zero.
	Stranded       map[string]decimal.Decimal
	Legs           []Leg
	Reversals      []Leg
	Liquidity      []liqdomain.Result
	Transitions    []Transition
	FailureKind    FailureKind
	Error          string
	StartedAt      time.Time
	Elapsed        time.Duration
}

// NewResult starts a result in PENDING.
func NewResult(id string, at time.Time) *Result {
	return &Result{ID: id, State: StatePending, StartedAt: at}
}

// Transition moves the result to "to", recording the change. Illegal moves
// are refused and leave the state unchanged.
func (r *Result) Transition(to State, at time.Time, note string) error {
	if !CanTransition(r.State, to) {
		return fmt.Errorf("illegal execution transition %s -> %s", r.State, to)
	}
	r.Transitions = append(r.Transitions, Transition{From: r.State, To: to, At: at, Note: note})
	r.State = to
	return nil
}

// Fail records the failure kind and message.
func (r *Result) Fail(kind FailureKind, err error) {
	r.FailureKind = kind
	if err != nil {
		r.Error = err.Error()
	}
}

// OrdersPlaced reports whether any forward leg executed quantity.
func (r *Result) OrdersPlaced() bool {
	for _, l := range r.Legs {
		if l.Filled() {
			return true
		}
	}
	return false
}

// FailedReversals returns the reversal orders that did not execute.
func (r *Result) FailedReversals() []Leg {
	var out []Leg
	for _, l := range r.Reversals {
		if l.Error != "" || !l.Filled() {
			out = append(out, l)
		}
	}
	return out
}

// ProfitPct is realized profit over the initial amount, in percent.
func (r *Result) ProfitPct() decimal.Decimal {
	if !r.InitialAmount.IsPositive() {
		return decimal.Zero
	}
	return r.RealizedProfit.Div(r.InitialAmount).Mul(decimal.NewFromInt(100))
}
