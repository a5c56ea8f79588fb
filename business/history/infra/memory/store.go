// Package memory keeps history in process memory. It backs the bot when no
// Postgres DSN is configured, so limits still hold for the life of the
// process.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/history/app"
	"github.com/fd1az/triarb-bot/business/history/domain"
)

var _ app.Store = (*Store)(nil)

// Store is a bounded in-memory history. The oldest records are dropped
// once a table reaches its capacity.
type Store struct {
	mu            sync.RWMutex
	capacity      int
	trades        []domain.TradeRecord
	opportunities []domain.OpportunityRecord
	metrics       []domain.MetricsRecord
	opportunityN  int
}

// New creates a store keeping at most capacity rows per table. Zero means
// 10000.
func New(capacity int) *Store {
	if capacity <= 0 {
		capacity = 10000
	}
	return &Store{capacity: capacity}
}

func (s *Store) SaveTrade(_ context.Context, t domain.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = appendBounded(s.trades, t, s.capacity)
	return nil
}

func (s *Store) SaveOpportunity(_ context.Context, o domain.OpportunityRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opportunities = appendBounded(s.opportunities, o, s.capacity)
	s.opportunityN++
	return nil
}

func (s *Store) SaveMetrics(_ context.Context, m domain.MetricsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = appendBounded(s.metrics, m, s.capacity)
	return nil
}

func (s *Store) PnLBetween(_ context.Context, from, to time.Time) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := decimal.Zero
	for _, t := range s.trades {
		if t.Executed && inRange(t.Timestamp, from, to) {
			total = total.Add(t.Profit)
		}
	}
	return total, nil
}

func (s *Store) TradeCountBetween(_ context.Context, from, to time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.trades {
		if t.Executed && inRange(t.Timestamp, from, to) {
			n++
		}
	}
	return n, nil
}

func (s *Store) Statistics(_ context.Context) (domain.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := domain.Statistics{TotalOpportunities: s.opportunityN}
	for _, t := range s.trades {
		if !t.Executed {
			continue
		}
		st.TotalTrades++
		if t.HasStranded() {
			st.StrandedTrades++
			continue
		}
		if st.TotalTrades-st.StrandedTrades == 1 {
			st.BestTrade, st.WorstTrade = t.Profit, t.Profit
		}
		if t.Profit.IsPositive() {
			st.ProfitableTrades++
		}
		st.TotalProfit = st.TotalProfit.Add(t.Profit)
		st.BestTrade = decimal.Max(st.BestTrade, t.Profit)
		st.WorstTrade = decimal.Min(st.WorstTrade, t.Profit)
	}
	st.Finish()
	return st, nil
}

func (s *Store) RecentTrades(_ context.Context, limit int) ([]domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.trades, limit), nil
}

func (s *Store) RecentOpportunities(_ context.Context, limit int) ([]domain.OpportunityRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.opportunities, limit), nil
}

func (s *Store) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	keptTrades := s.trades[:0]
	for _, t := range s.trades {
		if t.Timestamp.Before(cutoff) {
			n++
			continue
		}
		keptTrades = append(keptTrades, t)
	}
	s.trades = keptTrades

	keptOpps := s.opportunities[:0]
	for _, o := range s.opportunities {
		if o.Timestamp.Before(cutoff) {
			continue
		}
		keptOpps = append(keptOpps, o)
	}
	s.opportunities = keptOpps
	return n, nil
}

// Metrics returns the saved metrics snapshots, oldest first.
func (s *Store) Metrics() []domain.MetricsRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.MetricsRecord(nil), s.metrics...)
}

func inRange(ts, from, to time.Time) bool {
	return !ts.Before(from) && ts.Before(to)
}

func appendBounded[T any](rows []T, row T, capacity int) []T {
	rows = append(rows, row)
	if len(rows) > capacity {
		rows = append(rows[:0:0], rows[len(rows)-capacity:]...)
	}
	return rows
}

func newestFirst[T any](rows []T, limit int) []T {
	if limit <= 0 || limit > len(rows) {
		limit = len(rows)
	}
	out := make([]T, 0, limit)
	for i := len(rows) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, rows[i])
	}
	return out
}
