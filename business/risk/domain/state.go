// Package domain contains the risk state machine types.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is the persisted risk state.
type State struct {
	PausedUntil       time.Time
	PauseReason       string
	ConsecutiveLosses int
	LastLossAt        time.Time
	LastTradePnL      decimal.Decimal
	SavedAt           time.Time
}

// Paused reports whether trading is paused at now.
func (s State) Paused(now time.Time) bool {
	return now.Before(s.PausedUntil)
}

// PauseRemaining returns how long the pause lasts from now, zero if none.
func (s State) PauseRemaining(now time.Time) time.Duration {
	if !s.Paused(now) {
		return 0
	}
	return s.PausedUntil.Sub(now)
}

// BlockReason is the machine-readable cause of a refused trade.
type BlockReason string

const (
	ReasonNone                 BlockReason = ""
	ReasonPaused               BlockReason = "paused"
	ReasonDailyLossLimit       BlockReason = "daily_loss_limit"
	ReasonMaxTradesPerDay      BlockReason = "max_trades_per_day"
	ReasonLossCooldown         BlockReason = "loss_cooldown"
	ReasonMaxConsecutiveLosses BlockReason = "max_consecutive_losses"
	ReasonHistoryUnavailable   BlockReason = "history_unavailable"
)

// Decision is the outcome of the pre-trade gate.
type Decision struct {
	Allowed bool
	Reason  BlockReason
	Detail  string
}

// Allow is the permitting decision.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Block refuses a trade.
func Block(reason BlockReason, detail string) Decision {
	return Decision{Reason: reason, Detail: detail}
}

// DayBounds returns the UTC calendar day containing t as [start, end).
func DayBounds(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
