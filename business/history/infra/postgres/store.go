package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/history/app"
	"github.com/fd1az/triarb-bot/business/history/domain"
)

var _ app.Store = (*Store)(nil)

// Store implements app.Store on a pgx pool. Decimals are sent and read as
// numeric text so no precision is lost through float64.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func (s *Store) SaveTrade(ctx context.Context, t domain.TradeRecord) error {
	const query = `
		INSERT INTO trades (
			id, opportunity_id, ts, triangle_path, pairs, state,
			success, executed, simulated,
			initial_amount, final_amount, expected_profit, profit, profit_pct,
			failure_kind, error_message, elapsed_ms, legs, stranded
		) VALUES (
			$1::uuid, $2, $3, $4, $5, $6,
			$7, $8, $9,
			$10::numeric, $11::numeric, $12::numeric, $13::numeric, $14::numeric,
			$15, $16, $17, $18::jsonb, $19::jsonb
		)`

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	legs, err := t.LegsJSON()
	if err != nil {
		return storeError("encode legs", err)
	}
	stranded, err := t.StrandedJSON()
	if err != nil {
		return storeError("encode stranded", err)
	}
	pairs := t.Pairs
	if pairs == nil {
		pairs = []string{}
	}

	_, err = s.pool.Exec(ctx, query,
		t.ID, t.OpportunityID, t.Timestamp, t.TrianglePath, pairs, t.State,
		t.Success, t.Executed, t.Simulated,
		t.InitialAmount.String(), t.FinalAmount.String(), t.ExpectedProfit.String(), t.Profit.String(), t.ProfitPct.String(),
		t.FailureKind, t.Error, t.Elapsed.Milliseconds(), string(legs), string(stranded),
	)
	if err != nil {
		return storeError("insert trade "+t.ID, err)
	}
	return nil
}

func (s *Store) SaveOpportunity(ctx context.Context, o domain.OpportunityRecord) error {
	const query = `
		INSERT INTO opportunities (
			id, ts, triangle_path, expected_profit, profit_pct, initial_amount, reason_not_executed
		) VALUES ($1::uuid, $2, $3, $4::numeric, $5::numeric, $6::numeric, $7)
		ON CONFLICT (id) DO UPDATE SET reason_not_executed = EXCLUDED.reason_not_executed`

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, query,
		o.ID, o.Timestamp, o.TrianglePath,
		o.ExpectedProfit.String(), o.ProfitPct.String(), o.InitialAmount.String(), o.Reason,
	)
	if err != nil {
		return storeError("insert opportunity "+o.ID, err)
	}
	return nil
}

func (s *Store) SaveMetrics(ctx context.Context, m domain.MetricsRecord) error {
	const query = `
		INSERT INTO metrics (
			ts, total_trades, successful_trades, failed_trades,
			total_profit, avg_profit_per_trade, uptime_seconds
		) VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)`

	_, err := s.pool.Exec(ctx, query,
		m.Timestamp, m.TotalTrades, m.SuccessfulTrades, m.FailedTrades,
		m.TotalProfit.String(), m.AvgProfit.String(), m.Uptime.Seconds(),
	)
	if err != nil {
		return storeError("insert metrics", err)
	}
	return nil
}

func (s *Store) PnLBetween(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	const query = `
		SELECT COALESCE(SUM(profit), 0)::text FROM trades
		WHERE executed AND ts >= $1 AND ts < $2`

	var total string
	if err := s.pool.QueryRow(ctx, query, from, to).Scan(&total); err != nil {
		return decimal.Zero, storeError("sum pnl", err)
	}
	return parseDecimal(total)
}

func (s *Store) TradeCountBetween(ctx context.Context, from, to time.Time) (int, error) {
	const query = `
		SELECT COUNT(*) FROM trades
		WHERE executed AND ts >= $1 AND ts < $2`

	var n int64
	if err := s.pool.QueryRow(ctx, query, from, to).Scan(&n); err != nil {
		return 0, storeError("count trades", err)
	}
	return int(n), nil
}

func (s *Store) Statistics(ctx context.Context) (domain.Statistics, error) {
	const query = `
		SELECT
			COUNT(*) FILTER (WHERE executed),
			COUNT(*) FILTER (WHERE executed AND stranded <> '{}'::jsonb),
			COUNT(*) FILTER (WHERE executed AND stranded = '{}'::jsonb AND profit > 0),
			COALESCE(SUM(profit) FILTER (WHERE executed AND stranded = '{}'::jsonb), 0)::text,
			COALESCE(MAX(profit) FILTER (WHERE executed AND stranded = '{}'::jsonb), 0)::text,
			COALESCE(MIN(profit) FILTER (WHERE executed AND stranded = '{}'::jsonb), 0)::text,
			(SELECT COUNT(*) FROM opportunities)
		FROM trades`

	var (
		st               domain.Statistics
		total, stranded  int64
		profitable, opps int64
		sum, best, worst string
	)
	if err := s.pool.QueryRow(ctx, query).Scan(&total, &stranded, &profitable, &sum, &best, &worst, &opps); err != nil {
		return st, storeError("statistics", err)
	}

	var err error
	if st.TotalProfit, err = parseDecimal(sum); err != nil {
		return st, err
	}
	if st.BestTrade, err = parseDecimal(best); err != nil {
		return st, err
	}
	if st.WorstTrade, err = parseDecimal(worst); err != nil {
		return st, err
	}
	st.TotalTrades = int(total)
	st.StrandedTrades = int(stranded)
	st.ProfitableTrades = int(profitable)
	st.TotalOpportunities = int(opps)
	st.Finish()
	return st, nil
}

const tradeSelectCols = `id::text, opportunity_id, ts, triangle_path, pairs, state,
	success, executed, simulated,
	initial_amount::text, final_amount::text, expected_profit::text, profit::text, profit_pct::text,
	failure_kind, error_message, elapsed_ms, legs, stranded`

func (s *Store) RecentTrades(ctx context.Context, limit int) ([]domain.TradeRecord, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades ORDER BY ts DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("list trades", err)
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate trades", err)
	}
	return out, nil
}

func scanTrade(rows pgx.Rows) (domain.TradeRecord, error) {
	var (
		t                                     domain.TradeRecord
		initial, final, expected, profit, pct string
		elapsedMs                             int64
		legs, stranded                        []byte
	)
	if err := rows.Scan(
		&t.ID, &t.OpportunityID, &t.Timestamp, &t.TrianglePath, &t.Pairs, &t.State,
		&t.Success, &t.Executed, &t.Simulated,
		&initial, &final, &expected, &profit, &pct,
		&t.FailureKind, &t.Error, &elapsedMs, &legs, &stranded,
	); err != nil {
		return t, storeError("scan trade", err)
	}

	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&t.InitialAmount, initial},
		{&t.FinalAmount, final},
		{&t.ExpectedProfit, expected},
		{&t.Profit, profit},
		{&t.ProfitPct, pct},
	} {
		v, err := parseDecimal(f.src)
		if err != nil {
			return t, err
		}
		*f.dst = v
	}

	t.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	if len(legs) > 0 {
		if err := json.Unmarshal(legs, &t.Legs); err != nil {
			return t, storeError("decode legs", err)
		}
	}
	if len(stranded) > 2 {
		if err := json.Unmarshal(stranded, &t.Stranded); err != nil {
			return t, storeError("decode stranded", err)
		}
	}
	return t, nil
}

func (s *Store) RecentOpportunities(ctx context.Context, limit int) ([]domain.OpportunityRecord, error) {
	query := `SELECT id::text, ts, triangle_path, expected_profit::text, profit_pct::text,
		initial_amount::text, reason_not_executed
		FROM opportunities ORDER BY ts DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeError("list opportunities", err)
	}
	defer rows.Close()

	var out []domain.OpportunityRecord
	for rows.Next() {
		var (
			o                      domain.OpportunityRecord
			expected, pct, initial string
		)
		if err := rows.Scan(&o.ID, &o.Timestamp, &o.TrianglePath, &expected, &pct, &initial, &o.Reason); err != nil {
			return nil, storeError("scan opportunity", err)
		}
		if o.ExpectedProfit, err = parseDecimal(expected); err != nil {
			return nil, err
		}
		if o.ProfitPct, err = parseDecimal(pct); err != nil {
			return nil, err
		}
		if o.InitialAmount, err = parseDecimal(initial); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("iterate opportunities", err)
	}
	return out, nil
}

func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, "DELETE FROM trades WHERE ts < $1", cutoff)
	if err != nil {
		return 0, storeError("prune trades", err)
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM opportunities WHERE ts < $1", cutoff); err != nil {
		return 0, storeError("prune opportunities", err)
	}
	return tag.RowsAffected(), nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, storeError("parse numeric "+s, err)
	}
	return d, nil
}
