package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	arbdomain "github.com/fd1az/triarb-bot/business/arbitrage/domain"
	exdomain "github.com/fd1az/triarb-bot/business/exchange/domain"
	"github.com/fd1az/triarb-bot/business/execution/domain"
	liqdomain "github.com/fd1az/triarb-bot/business/liquidity/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/notify"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

var _ logger.LoggerInterface = (*mockLogger)(nil)

type orderCall struct {
	symbol string
	side   exdomain.Side
	qty    decimal.Decimal
}

type fakeExchange struct {
	mu      sync.Mutex
	calls   []orderCall
	prices  map[string]decimal.Decimal
	filters map[string]exdomain.SymbolFilters
	respond func(n int, c orderCall) (*exdomain.OrderResult, error)
	lookup  func(ctx context.Context, symbol string)
	ids     atomic.Int64
}

func newFakeExchange() *fakeExchange {
	return &fakeExchange{
		prices: map[string]decimal.Decimal{
			"BTCUSDT": dec("50000"),
			"ETHBTC":  dec("0.06"),
			"ETHUSDT": dec("3010"),
		},
		filters: map[string]exdomain.SymbolFilters{
			"BTCUSDT": {Symbol: "BTCUSDT", BaseAsset: "BTC", QuoteAsset: "USDT", StepSize: dec("0.00001"), MinQty: dec("0.00001")},
			"ETHBTC":  {Symbol: "ETHBTC", BaseAsset: "ETH", QuoteAsset: "BTC", StepSize: dec("0.001"), MinQty: dec("0.001")},
			"ETHUSDT": {Symbol: "ETHUSDT", BaseAsset: "ETH", QuoteAsset: "USDT", StepSize: dec("0.0001"), MinQty: dec("0.0001")},
		},
	}
}

func (f *fakeExchange) PlaceMarketOrder(_ context.Context, symbol string, side exdomain.Side, qty decimal.Decimal) (*exdomain.OrderResult, error) {
	c := orderCall{symbol: symbol, side: side, qty: qty}

	f.mu.Lock()
	f.calls = append(f.calls, c)
	n := len(f.calls)
	respond := f.respond
	f.mu.Unlock()

	if respond != nil {
		if res, err := respond(n, c); res != nil || err != nil {
			return res, err
		}
	}
	return f.fill(c, qty)
}

func (f *fakeExchange) fill(c orderCall, executed decimal.Decimal) (*exdomain.OrderResult, error) {
	price := f.prices[c.symbol]
	return exdomain.NewOrderResult(exdomain.OrderResultParams{
		OrderID:            f.ids.Add(1),
		Symbol:             c.symbol,
		Side:               c.side,
		Status:             "FILLED",
		RequestedQty:       c.qty,
		ExecutedQty:        executed,
		CumulativeQuoteQty: executed.Mul(price),
	})
}

func (f *fakeExchange) SymbolFilters(ctx context.Context, symbol string) (exdomain.SymbolFilters, error) {
	if f.lookup != nil {
		f.lookup(ctx, symbol)
	}
	filters, ok := f.filters[symbol]
	if !ok {
		return exdomain.SymbolFilters{}, apperror.NotFound(apperror.CodeSymbolNotFound, symbol)
	}
	return filters, nil
}

func (f *fakeExchange) Calls() []orderCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]orderCall(nil), f.calls...)
}

type stubLiquidity struct {
	ok      bool
	results []liqdomain.Result
}

func (s *stubLiquidity) CheckTriangle(context.Context, *arbdomain.Opportunity) (bool, []liqdomain.Result) {
	return s.ok, s.results
}

type recordingNotifier struct {
	mu     sync.Mutex
	levels []notify.Level
}

func (n *recordingNotifier) Notify(_ context.Context, level notify.Level, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.levels = append(n.levels, level)
	return nil
}

func (n *recordingNotifier) Last() notify.Level {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.levels) == 0 {
		return -1
	}
	return n.levels[len(n.levels)-1]
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// testOpportunity is USDT -> BTC -> ETH -> USDT on 1000 USDT.
func testOpportunity(t *testing.T) *arbdomain.Opportunity {
	t.Helper()
	tri, err := arbdomain.NewTriangle(
		[]string{"USDT", "BTC", "ETH", "USDT"},
		[]string{"BTCUSDT", "ETHBTC", "ETHUSDT"},
	)
	if err != nil {
		t.Fatalf("NewTriangle: %v", err)
	}

	prices := []decimal.Decimal{dec("50000"), dec("0.06"), dec("3010")}
	steps := make([]arbdomain.Step, 0, 3)
	for i, leg := range tri.Legs() {
		steps = append(steps, arbdomain.Step{
			Pair:      leg.Pair,
			From:      leg.From,
			To:        leg.To,
			Direction: leg.Direction,
			Price:     prices[i],
		})
	}

	return &arbdomain.Opportunity{
		ID:            "opp-1",
		Triangle:      tri,
		Timestamp:     time.Now(),
		InitialAmount: dec("1000"),
		FinalAmount:   dec("1001.2"),
		Profit:        dec("1.2"),
		ProfitPct:     dec("0.12"),
		Steps:         steps,
		Profitable:    true,
	}
}

func testExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		TakerFee:            dec("0.001"),
		MinFillRatio:        dec("0.95"),
		SingleLegTimeout:    time.Second,
		FullTriangleTimeout: 15 * time.Second,
	}
}

func newTestExecutor(t *testing.T, cfg ExecutorConfig, ex *fakeExchange, liq *stubLiquidity) (*Executor, *recordingNotifier) {
	t.Helper()
	alerts := &recordingNotifier{}
	e, err := NewExecutor(cfg, ex, liq, alerts, &mockLogger{})
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return e, alerts
}

func states(res *domain.Result) []domain.State {
	out := make([]domain.State, 0, len(res.Transitions))
	for _, tr := range res.Transitions {
		out = append(out, tr.To)
	}
	return out
}

func assertStates(t *testing.T, res *domain.Result, want ...domain.State) {
	t.Helper()
	got := states(res)
	if len(got) != len(want) {
		t.Fatalf("transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", got, want)
		}
	}
}

func TestExecutor_Success(t *testing.T) {
	ex := newFakeExchange()
	e, alerts := newTestExecutor(t, testExecutorConfig(), ex, &stubLiquidity{ok: true})

	res := e.Execute(context.Background(), testOpportunity(t))

	if !res.Success || res.State != domain.StateSucceeded {
		t.Fatalf("expected success, got %s %s: %s", res.State, res.FailureKind, res.Error)
	}
	assertStates(t, res, domain.StateLiquidityCheck, domain.StateExecuting, domain.StateSucceeded)

	calls := ex.Calls()
	wantQty := []string{"0.02", "0.333", "0.3326"}
	wantSide := []exdomain.Side{exdomain.SideBuy, exdomain.SideBuy, exdomain.SideSell}
	if len(calls) != 3 {
		t.Fatalf("calls = %d", len(calls))
	}
	for i, c := range calls {
		if !c.qty.Equal(dec(wantQty[i])) || c.side != wantSide[i] {
			t.Errorf("leg %d: %s %s, want %s %s", i+1, c.side, c.qty, wantSide[i], wantQty[i])
		}
	}

	// 0.3326 ETH * 3010 * 0.999 = 1000.124874
	if !res.FinalAmount.Equal(dec("1000.124874")) {
		t.Errorf("final = %s", res.FinalAmount)
	}
	if !res.RealizedProfit.Equal(dec("0.124874")) {
		t.Errorf("realized profit = %s", res.RealizedProfit)
	}
	if alerts.Last() != notify.LevelInfo {
		t.Errorf("last alert = %v", alerts.Last())
	}
}

func TestExecutor_LegTwoFillRatioReversesExecutedQuantities(t *testing.T) {
	ex := newFakeExchange()
	ex.respond = func(n int, c orderCall) (*exdomain.OrderResult, error) {
		if n == 2 {
			return ex.fill(c, c.qty.Div(dec("2")))
		}
		return nil, nil
	}
	e, alerts := newTestExecutor(t, testExecutorConfig(), ex, &stubLiquidity{ok: true})

	res := e.Execute(context.Background(), testOpportunity(t))

	if res.Success || res.FailureKind != domain.FailureFillRatio {
		t.Fatalf("expected fill ratio failure, got %s: %s", res.FailureKind, res.Error)
	}
	assertStates(t, res,
		domain.StateLiquidityCheck, domain.StateExecuting,
		domain.StateFailed, domain.StateReversing, domain.StateReversed)

	calls := ex.Calls()
	if len(calls) != 4 {
		t.Fatalf("calls = %+v", calls)
	}
	// Partial leg 2 first, then leg 1, each with its executed quantity.
	if calls[2].symbol != "ETHBTC" || calls[2].side != exdomain.SideSell || !calls[2].qty.Equal(dec("0.1665")) {
		t.Errorf("first reversal = %+v", calls[2])
	}
	if calls[3].symbol != "BTCUSDT" || calls[3].side != exdomain.SideSell || !calls[3].qty.Equal(dec("0.02")) {
		t.Errorf("second reversal = %+v", calls[3])
	}

	if len(res.Legs) != 2 || len(res.Reversals) != 2 || len(res.FailedReversals()) != 0 {
		t.Fatalf("legs %d reversals %d", len(res.Legs), len(res.Reversals))
	}
	if !res.Legs[1].FillRatio.Equal(dec("0.5")) {
		t.Errorf("leg 2 fill ratio = %s", res.Legs[1].FillRatio)
	}

	// 1000 USDT -> 0.02 BTC -> back at the same price less the fee.
	if !res.RealizedProfit.Equal(dec("-1")) {
		t.Errorf("realized profit = %s, want -1", res.RealizedProfit)
	}
	if alerts.Last() != notify.LevelCritical {
		t.Errorf("last alert = %v, want critical", alerts.Last())
	}
}

func TestExecutor_LiquidityRejection(t *testing.T) {
	ex := newFakeExchange()
	liq := &stubLiquidity{ok: false, results: []liqdomain.Result{{Pair: "BTCUSDT", Reason: "slippage 0.9% above 0.5%"}}}
	e, _ := newTestExecutor(t, testExecutorConfig(), ex, liq)

	res := e.Execute(context.Background(), testOpportunity(t))

	if res.State != domain.StateRejected || res.FailureKind != domain.FailureLiquidity {
		t.Fatalf("expected rejection, got %s %s", res.State, res.FailureKind)
	}
	if len(ex.Calls()) != 0 {
		t.Errorf("no orders expected")
	}
	if len(res.Liquidity) != 1 {
		t.Errorf("liquidity results not kept")
	}
	if s := e.Stats(); s.TotalTrades != 0 {
		t.Errorf("rejections must not count as trades: %+v", s)
	}
}

func TestExecutor_DryRun(t *testing.T) {
	ex := newFakeExchange()
	cfg := testExecutorConfig()
	cfg.DryRun = true
	e, _ := newTestExecutor(t, cfg, ex, &stubLiquidity{ok: true})
	opp := testOpportunity(t)

	res := e.Execute(context.Background(), opp)

	if !res.Success || !res.Simulated || res.State != domain.StateSucceeded {
		t.Fatalf("expected simulated success, got %+v", res)
	}
	if !res.RealizedProfit.Equal(opp.Profit) || !res.FinalAmount.Equal(opp.FinalAmount) {
		t.Errorf("estimate not returned verbatim: %s %s", res.RealizedProfit, res.FinalAmount)
	}
	if len(ex.Calls()) != 0 {
		t.Errorf("dry run placed orders")
	}
}

func TestExecutor_QuantityBelowMinimum(t *testing.T) {
	ex := newFakeExchange()
	f := ex.filters["BTCUSDT"]
	f.MinNotional = dec("2000")
	ex.filters["BTCUSDT"] = f
	e, _ := newTestExecutor(t, testExecutorConfig(), ex, &stubLiquidity{ok: true})

	res := e.Execute(context.Background(), testOpportunity(t))

	if res.FailureKind != domain.FailureQuantity {
		t.Fatalf("failure = %s: %s", res.FailureKind, res.Error)
	}
	assertStates(t, res, domain.StateLiquidityCheck, domain.StateExecuting, domain.StateFailed)
	if len(ex.Calls()) != 0 {
		t.Errorf("no orders expected")
	}
	if !res.RealizedProfit.IsZero() {
		t.Errorf("realized profit = %s", res.RealizedProfit)
	}
}

func TestExecutor_TriangleBudgetExhausted(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ex := newFakeExchange()
	ex.respond = func(n int, c orderCall) (*exdomain.OrderResult, error) {
		if n == 1 {
			clock.Advance(16 * time.Second)
		}
		return nil, nil
	}
	e, _ := newTestExecutor(t, testExecutorConfig(), ex, &stubLiquidity{ok: true})
	e.now = clock.Now

	res := e.Execute(context.Background(), testOpportunity(t))

	if res.FailureKind != domain.FailureBudget {
		t.Fatalf("failure = %s: %s", res.FailureKind, res.Error)
	}
	calls := ex.Calls()
	if len(calls) != 2 || calls[1].symbol != "BTCUSDT" || calls[1].side != exdomain.SideSell {
		t.Fatalf("expected leg 1 and its reversal, got %+v", calls)
	}
	if res.State != domain.StateReversed {
		t.Errorf("state = %s", res.State)
	}
}

func TestExecutor_SlowSymbolLookupSpendsTriangleBudget(t *testing.T) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	ex := newFakeExchange()
	var lookupDeadline time.Duration
	ex.lookup = func(ctx context.Context, symbol string) {
		if symbol != "ETHBTC" {
			return
		}
		if dl, ok := ctx.Deadline(); ok {
			lookupDeadline = time.Until(dl)
		}
		// a cold exchangeInfo cache behind several retries
		clock.Advance(20 * time.Second)
	}
	e, _ := newTestExecutor(t, testExecutorConfig(), ex, &stubLiquidity{ok: true})
	e.now = clock.Now

	res := e.Execute(context.Background(), testOpportunity(t))

	if res.FailureKind != domain.FailureBudget {
		t.Fatalf("failure = %s: %s", res.FailureKind, res.Error)
	}
	for _, c := range ex.Calls() {
		if c.symbol == "ETHBTC" {
			t.Fatalf("leg 2 placed after the budget ran out: %+v", ex.Calls())
		}
	}
	calls := ex.Calls()
	if len(calls) != 2 || calls[1].symbol != "BTCUSDT" || calls[1].side != exdomain.SideSell {
		t.Fatalf("expected leg 1 and its reversal, got %+v", calls)
	}
	if lookupDeadline <= 0 || lookupDeadline > time.Second {
		t.Errorf("lookup deadline = %v, want bounded by the single leg timeout", lookupDeadline)
	}
}

func TestExecutor_LegTimeoutDoesNotCancelOrder(t *testing.T) {
	release := make(chan struct{})
	var orphanDone atomic.Bool

	ex := newFakeExchange()
	ex.respond = func(n int, c orderCall) (*exdomain.OrderResult, error) {
		if n == 2 {
			<-release
			orphanDone.Store(true)
		}
		return nil, nil
	}
	cfg := testExecutorConfig()
	cfg.SingleLegTimeout = 20 * time.Millisecond
	e, alerts := newTestExecutor(t, cfg, ex, &stubLiquidity{ok: true})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	res := e.Execute(ctx, testOpportunity(t))
	close(release)

	if res.FailureKind != domain.FailureTimeout {
		t.Fatalf("failure = %s: %s", res.FailureKind, res.Error)
	}
	if len(res.Legs) != 2 || res.Legs[1].Error == "" {
		t.Fatalf("timed out leg not recorded: %+v", res.Legs)
	}
	// Only leg 1 had a known fill, so only leg 1 is reversed.
	if len(res.Reversals) != 1 || res.Reversals[0].Pair != "BTCUSDT" {
		t.Fatalf("reversals = %+v", res.Reversals)
	}

	// The late fill surfaces as an emergency alert.
	deadline := time.Now().Add(2 * time.Second)
	for alerts.Last() != notify.LevelEmergency && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !orphanDone.Load() || alerts.Last() != notify.LevelEmergency {
		t.Errorf("orphan fill not reported, last alert %v", alerts.Last())
	}
}

func TestExecutor_FailedReversalIsRecordedNotRetried(t *testing.T) {
	ex := newFakeExchange()
	ex.respond = func(n int, c orderCall) (*exdomain.OrderResult, error) {
		switch n {
		case 3:
			return nil, apperror.New(apperror.CodeOrderRejected, apperror.WithContext("-2010 insufficient balance"))
		case 4:
			return nil, errors.New("connection reset")
		}
		return nil, nil
	}
	e, alerts := newTestExecutor(t, testExecutorConfig(), ex, &stubLiquidity{ok: true})

	res := e.Execute(context.Background(), testOpportunity(t))

	if res.FailureKind != domain.FailureOrder {
		t.Fatalf("failure = %s: %s", res.FailureKind, res.Error)
	}
	calls := ex.Calls()
	if len(calls) != 5 {
		t.Fatalf("calls = %d, want 3 forward + 2 reversals", len(calls))
	}
	if calls[3].symbol != "ETHBTC" || calls[4].symbol != "BTCUSDT" {
		t.Errorf("reversal order = %s, %s", calls[3].symbol, calls[4].symbol)
	}
	if failed := res.FailedReversals(); len(failed) != 1 || failed[0].Pair != "ETHBTC" {
		t.Errorf("failed reversals = %+v", failed)
	}
	if res.State != domain.StateReversed {
		t.Errorf("state = %s", res.State)
	}
	if alerts.Last() != notify.LevelEmergency {
		t.Errorf("last alert = %v, want emergency", alerts.Last())
	}
	// leg 2 bought 0.333 ETH; its reversal failed so the ETH is still held
	if len(res.Stranded) != 1 || !res.Stranded["ETH"].Equal(dec("0.332667")) {
		t.Errorf("stranded = %v, want ETH 0.332667", res.Stranded)
	}
}

func TestExecutor_Stats(t *testing.T) {
	ex := newFakeExchange()
	e, _ := newTestExecutor(t, testExecutorConfig(), ex, &stubLiquidity{ok: true})

	e.Execute(context.Background(), testOpportunity(t))

	ex.respond = func(n int, c orderCall) (*exdomain.OrderResult, error) {
		if n == 4 {
			return nil, apperror.New(apperror.CodeOrderRejected)
		}
		return nil, nil
	}
	e.Execute(context.Background(), testOpportunity(t))

	s := e.Stats()
	if s.TotalTrades != 2 || s.FailedTrades != 1 {
		t.Fatalf("stats = %+v", s)
	}
	if !s.SuccessRate.Equal(dec("50")) {
		t.Errorf("success rate = %s", s.SuccessRate)
	}
}
