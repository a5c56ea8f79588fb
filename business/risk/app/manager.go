package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/risk/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/notify"
)

var hundred = decimal.NewFromInt(100)

// ManagerConfig holds the risk limits.
type ManagerConfig struct {
	InitialCapital        decimal.Decimal
	DailyMaxLossPct       decimal.Decimal
	MaxTradesPerDay       int
	MaxConsecutiveLosses  int
	LossCooldown          time.Duration
	LossCooldown2         time.Duration
	LossCooldown3         time.Duration
	DailyStopResumeDelay  time.Duration
	APIErrorRateThreshold float64
	APIErrorPause         time.Duration
	MinProfitThresholdPct decimal.Decimal
}

// ManagerConfigFrom reads the risk and trading sections.
func ManagerConfigFrom(risk config.RiskConfig, trading config.TradingConfig) ManagerConfig {
	return ManagerConfig{
		InitialCapital:        trading.InitialCapitalDecimal(),
		DailyMaxLossPct:       decimal.NewFromFloat(risk.DailyMaxLossPct),
		MaxTradesPerDay:       risk.MaxTradesPerDay,
		MaxConsecutiveLosses:  risk.MaxConsecutiveLosses,
		LossCooldown:          risk.LossCooldown,
		LossCooldown2:         risk.LossCooldown2,
		LossCooldown3:         risk.LossCooldown3,
		DailyStopResumeDelay:  risk.DailyStopResumeDelay,
		APIErrorRateThreshold: risk.APIErrorRateThreshold,
		APIErrorPause:         risk.APIErrorPause,
		MinProfitThresholdPct: decimal.NewFromFloat(risk.MinProfitThresholdPct),
	}
}

// maxDailyLoss is the absolute loss that stops trading for the day, zero
// when the limit is disabled.
func (c ManagerConfig) maxDailyLoss() decimal.Decimal {
	if !c.DailyMaxLossPct.IsPositive() {
		return decimal.Zero
	}
	return c.InitialCapital.Mul(c.DailyMaxLossPct).Div(hundred)
}

// Snapshot is the risk state plus today's figures.
type Snapshot struct {
	Paused            bool            `json:"paused"`
	PausedUntil       time.Time       `json:"paused_until"`
	PauseReason       string          `json:"pause_reason,omitempty"`
	ConsecutiveLosses int             `json:"consecutive_losses"`
	LastLossAt        time.Time       `json:"last_loss_at"`
	LastTradePnL      decimal.Decimal `json:"last_trade_pnl"`
	DailyPnL          decimal.Decimal `json:"daily_pnl"`
	TradesToday       int             `json:"trades_today"`
	DailyMaxLossPct   decimal.Decimal `json:"daily_max_loss_pct"`
	MaxTradesPerDay   int             `json:"max_trades_per_day"`
	MaxConsecutive    int             `json:"max_consecutive_losses"`
}

// Manager gates trading on pauses, daily limits and loss streaks. State
// changes are flushed to the StateStore after every mutation.
type Manager struct {
	cfg      ManagerConfig
	store    StateStore
	history  History
	notifier notify.Notifier
	logger   logger.LoggerInterface

	mu    sync.Mutex
	state domain.State
	now   func() time.Time
}

// NewManager loads the saved state. A state file that cannot be read is an
// error: starting from a blank state could drop an active pause.
func NewManager(ctx context.Context, cfg ManagerConfig, store StateStore, history History, notifier notify.Notifier, log logger.LoggerInterface) (*Manager, error) {
	st, err := store.Load(ctx)
	if err != nil {
		return nil, apperror.New(apperror.CodeRiskStateLoadFailed,
			apperror.WithCause(err))
	}

	m := &Manager{
		cfg:      cfg,
		store:    store,
		history:  history,
		notifier: notifier,
		logger:   log,
		state:    st,
		now:      time.Now,
	}

	if st.Paused(m.now()) {
		log.Warn(ctx, "risk manager starts paused",
			"paused_until", st.PausedUntil,
			"reason", st.PauseReason)
	}
	return m, nil
}

// ShouldTradeNow runs the gates in order: pause, daily loss, trades per
// day, loss cooldown, consecutive losses. It never mutates state, and
// refuses when history cannot be queried.
func (m *Manager) ShouldTradeNow(ctx context.Context) domain.Decision {
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()

	now := m.now()
	if st.Paused(now) {
		return domain.Block(domain.ReasonPaused,
			fmt.Sprintf("paused for %s: %s", st.PauseRemaining(now).Round(time.Second), st.PauseReason))
	}

	from, to := domain.DayBounds(now)

	pnl, err := m.history.PnLBetween(ctx, from, to)
	if err != nil {
		m.logger.Error(ctx, "risk gate cannot read daily pnl", "error", err)
		return domain.Block(domain.ReasonHistoryUnavailable, err.Error())
	}
	if maxLoss := m.cfg.maxDailyLoss(); maxLoss.IsPositive() && pnl.Neg().GreaterThanOrEqual(maxLoss) {
		return domain.Block(domain.ReasonDailyLossLimit,
			fmt.Sprintf("daily loss %s >= %s", pnl.Neg().StringFixed(2), maxLoss.StringFixed(2)))
	}

	trades, err := m.history.TradeCountBetween(ctx, from, to)
	if err != nil {
		m.logger.Error(ctx, "risk gate cannot read trade count", "error", err)
		return domain.Block(domain.ReasonHistoryUnavailable, err.Error())
	}
	if m.cfg.MaxTradesPerDay > 0 && trades >= m.cfg.MaxTradesPerDay {
		return domain.Block(domain.ReasonMaxTradesPerDay,
			fmt.Sprintf("%d trades today, max %d", trades, m.cfg.MaxTradesPerDay))
	}

	if !st.LastLossAt.IsZero() && m.cfg.LossCooldown > 0 {
		if remaining := st.LastLossAt.Add(m.cfg.LossCooldown).Sub(now); remaining > 0 {
			return domain.Block(domain.ReasonLossCooldown,
				fmt.Sprintf("cooling down after loss, %s remaining", remaining.Round(time.Second)))
		}
	}

	if m.cfg.MaxConsecutiveLosses > 0 && st.ConsecutiveLosses >= m.cfg.MaxConsecutiveLosses {
		return domain.Block(domain.ReasonMaxConsecutiveLosses,
			fmt.Sprintf("%d consecutive losses", st.ConsecutiveLosses))
	}

	return domain.Allow()
}

// OnTradeResult records the realized P&L of an execution. A loss extends
// the streak and pauses by tier; anything else resets the streak. Reaching
// the daily loss limit pauses for daily_stop_resume_delay.
func (m *Manager) OnTradeResult(ctx context.Context, pnl decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.state.LastTradePnL = pnl

	if pnl.IsNegative() {
		m.state.ConsecutiveLosses++
		m.state.LastLossAt = now

		switch streak := m.state.ConsecutiveLosses; {
		case streak == 1 && m.cfg.LossCooldown > 0:
			m.pauseFor(ctx, m.cfg.LossCooldown, "single loss cooldown", notify.LevelWarning)
		case streak == 2 && m.cfg.LossCooldown2 > 0:
			m.pauseFor(ctx, m.cfg.LossCooldown2, "two consecutive losses", notify.LevelWarning)
		case streak >= 3 && m.cfg.LossCooldown3 > 0:
			m.pauseFor(ctx, m.cfg.LossCooldown3, fmt.Sprintf("%d consecutive losses", streak), notify.LevelCritical)
		}
	} else {
		m.state.ConsecutiveLosses = 0
	}

	if maxLoss := m.cfg.maxDailyLoss(); maxLoss.IsPositive() {
		from, to := domain.DayBounds(now)
		daily, err := m.history.PnLBetween(ctx, from, to)
		switch {
		case err != nil:
			m.logger.Error(ctx, "daily pnl check failed", "error", err)
		case daily.Neg().GreaterThanOrEqual(maxLoss):
			m.pauseFor(ctx, m.cfg.DailyStopResumeDelay,
				fmt.Sprintf("daily loss limit reached (%s)", daily.StringFixed(2)), notify.LevelCritical)
		}
	}

	return m.save(ctx)
}

// CheckAPIErrorRate pauses trading when rate reaches the threshold and
// reports whether it did.
func (m *Manager) CheckAPIErrorRate(ctx context.Context, rate float64) (bool, error) {
	if m.cfg.APIErrorRateThreshold <= 0 || rate < m.cfg.APIErrorRateThreshold {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.pauseFor(ctx, m.cfg.APIErrorPause,
		fmt.Sprintf("API error rate %.1f%% >= %.1f%%", rate*100, m.cfg.APIErrorRateThreshold*100),
		notify.LevelWarning)
	return true, m.save(ctx)
}

// PauseFor pauses trading for d. An existing longer pause is kept.
func (m *Manager) PauseFor(ctx context.Context, d time.Duration, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pauseFor(ctx, d, reason, notify.LevelWarning)
	return m.save(ctx)
}

// Reset clears the pause, the loss streak and the cooldown.
func (m *Manager) Reset(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = domain.State{LastTradePnL: m.state.LastTradePnL}
	m.logger.Warn(ctx, "risk state reset by operator")
	return m.save(ctx)
}

// Snapshot returns the state with today's P&L and trade count.
func (m *Manager) Snapshot(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	st := m.state
	m.mu.Unlock()

	now := m.now()
	from, to := domain.DayBounds(now)

	pnl, err := m.history.PnLBetween(ctx, from, to)
	if err != nil {
		return Snapshot{}, err
	}
	trades, err := m.history.TradeCountBetween(ctx, from, to)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{
		Paused:            st.Paused(now),
		PausedUntil:       st.PausedUntil,
		PauseReason:       st.PauseReason,
		ConsecutiveLosses: st.ConsecutiveLosses,
		LastLossAt:        st.LastLossAt,
		LastTradePnL:      st.LastTradePnL,
		DailyPnL:          pnl,
		TradesToday:       trades,
		DailyMaxLossPct:   m.cfg.DailyMaxLossPct,
		MaxTradesPerDay:   m.cfg.MaxTradesPerDay,
		MaxConsecutive:    m.cfg.MaxConsecutiveLosses,
	}, nil
}

// State returns a copy of the current state.
func (m *Manager) State() domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AdjustProfitThreshold raises base to the configured minimum.
func (m *Manager) AdjustProfitThreshold(base decimal.Decimal) decimal.Decimal {
	return decimal.Max(base, m.cfg.MinProfitThresholdPct)
}

// pauseFor must be called with mu held.
func (m *Manager) pauseFor(ctx context.Context, d time.Duration, reason string, level notify.Level) {
	if d < 0 {
		d = 0
	}
	until := m.now().Add(d)
	if until.After(m.state.PausedUntil) {
		m.state.PausedUntil = until
		m.state.PauseReason = reason
	}

	m.logger.Warn(ctx, "trading paused",
		"duration", d.String(),
		"until", m.state.PausedUntil,
		"reason", reason)

	if m.notifier != nil {
		msg := fmt.Sprintf("Trading paused for %s: %s", d.Round(time.Second), reason)
		if err := m.notifier.Notify(ctx, level, msg); err != nil {
			m.logger.Warn(ctx, "pause alert failed", "error", err)
		}
	}
}

// save must be called with mu held.
func (m *Manager) save(ctx context.Context) error {
	m.state.SavedAt = m.now()
	if err := m.store.Save(ctx, m.state); err != nil {
		m.logger.Error(ctx, "failed to save risk state", "error", err)
		return apperror.New(apperror.CodeRiskStateSaveFailed, apperror.WithCause(err))
	}
	return nil
}

// ResetState overwrites the stored state with a blank one without loading
// it first, for recovering from an unreadable state file.
func ResetState(ctx context.Context, store StateStore) error {
	return store.Save(ctx, domain.State{SavedAt: time.Now()})
}
