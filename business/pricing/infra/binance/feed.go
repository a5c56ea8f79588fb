package binance

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/triarb-bot/business/pricing/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/wsconn"
)

const tracerName = "github.com/fd1az/triarb-bot/business/pricing/infra/binance"

// FeedConfig holds configuration for the WebSocket price feed.
type FeedConfig struct {
	BaseURL        string        // WebSocket base URL
	Symbols        []string      // Pairs to stream, e.g. "ETHBTC"
	StaleAfter     time.Duration // Quotes older than this are not served
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

type feedMetrics struct {
	messages    metric.Int64Counter
	parseErrors metric.Int64Counter
	reconnects  metric.Int64Counter
}

// WebSocketFeed keeps the latest bookTicker quote of every configured
// symbol from a Binance combined stream. Prices are the bid/ask mids.
type WebSocketFeed struct {
	config FeedConfig
	logger logger.LoggerInterface
	conn   *wsconn.Client

	quotes   map[string]domain.Quote
	quotesMu sync.RWMutex

	tracer  trace.Tracer
	metrics feedMetrics
	running atomic.Bool
	now     func() time.Time
}

// NewWebSocketFeed creates an unconnected feed.
func NewWebSocketFeed(cfg FeedConfig, log logger.LoggerInterface) (*WebSocketFeed, error) {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 10 * time.Second
	}

	f := &WebSocketFeed{
		config: cfg,
		logger: log,
		quotes: make(map[string]domain.Quote),
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}

	if err := f.initMetrics(); err != nil {
		return nil, err
	}

	wsURL, err := f.buildStreamURL()
	if err != nil {
		return nil, err
	}

	wsCfg := wsconn.DefaultConfig(wsURL, "binance-bookticker")
	if cfg.InitialBackoff > 0 {
		wsCfg.InitialBackoff = cfg.InitialBackoff
	}
	if cfg.MaxBackoff > 0 {
		wsCfg.MaxBackoff = cfg.MaxBackoff
	}

	conn, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("failed to create wsconn"))
	}
	conn.OnMessage(f.handleMessage)
	conn.OnStateChange(f.handleStateChange)
	f.conn = conn

	return f, nil
}

func (f *WebSocketFeed) initMetrics() error {
	meter := otel.Meter(tracerName)
	var err error

	f.metrics.messages, err = meter.Int64Counter("pricing.feed.messages",
		metric.WithDescription("bookTicker messages received"))
	if err != nil {
		return err
	}
	f.metrics.parseErrors, err = meter.Int64Counter("pricing.feed.parse_errors",
		metric.WithDescription("Unparseable feed messages"))
	if err != nil {
		return err
	}
	f.metrics.reconnects, err = meter.Int64Counter("pricing.feed.reconnects",
		metric.WithDescription("Feed reconnections"))
	return err
}

// buildStreamURL constructs the combined streams URL.
func (f *WebSocketFeed) buildStreamURL() (string, error) {
	if len(f.config.Symbols) == 0 {
		return "", apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("no symbols configured"))
	}

	streams := make([]string, 0, len(f.config.Symbols))
	for _, sym := range f.config.Symbols {
		streams = append(streams, BookTickerStream(sym))
	}

	u, err := url.Parse(f.config.BaseURL)
	if err != nil {
		return "", apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("invalid websocket url"))
	}
	u.Path = "/stream"
	u.RawQuery = "streams=" + strings.Join(streams, "/")
	return u.String(), nil
}

// Connect dials the stream once. After a successful dial the connection
// reconnects by itself.
func (f *WebSocketFeed) Connect(ctx context.Context) error {
	ctx, span := f.tracer.Start(ctx, "binance.feed.connect",
		trace.WithAttributes(attribute.StringSlice("symbols", f.config.Symbols)))
	defer span.End()

	if err := f.conn.Connect(ctx); err != nil {
		span.RecordError(err)
		return apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect to Binance stream"))
	}

	f.running.Store(true)
	f.logger.Info(ctx, "binance price feed connected", "symbols", f.config.Symbols)
	return nil
}

// Close stops the feed.
func (f *WebSocketFeed) Close() error {
	f.running.Store(false)
	return f.conn.Close()
}

// Prices returns the mid of every quote fresher than StaleAfter.
func (f *WebSocketFeed) Prices(ctx context.Context) (map[string]decimal.Decimal, error) {
	if !f.running.Load() {
		return nil, apperror.New(apperror.CodeWebSocketClosed,
			apperror.WithContext("price feed not running"))
	}

	cutoff := f.now().Add(-f.config.StaleAfter)

	f.quotesMu.RLock()
	defer f.quotesMu.RUnlock()

	prices := make(map[string]decimal.Decimal, len(f.quotes))
	for sym, q := range f.quotes {
		if q.UpdatedAt.Before(cutoff) {
			continue
		}
		if mid := q.Mid(); mid.IsPositive() {
			prices[sym] = mid
		}
	}
	return prices, nil
}

// Quote returns the latest quote of symbol.
func (f *WebSocketFeed) Quote(symbol string) (domain.Quote, bool) {
	f.quotesMu.RLock()
	defer f.quotesMu.RUnlock()
	q, ok := f.quotes[symbol]
	return q, ok
}

// Health reports the connection state.
func (f *WebSocketFeed) Health() domain.FeedHealth {
	f.quotesMu.RLock()
	cached := len(f.quotes)
	f.quotesMu.RUnlock()

	last := f.conn.LastMessageAt()
	var age time.Duration
	if !last.IsZero() {
		age = f.now().Sub(last)
	}

	return domain.FeedHealth{
		Source:         domain.SourceWebSocket,
		Running:        f.running.Load(),
		Connected:      f.conn.IsConnected(),
		LastMessageAt:  last,
		LastMessageAge: age,
		Reconnects:     f.conn.Reconnects(),
		CachedSymbols:  cached,
	}
}

func (f *WebSocketFeed) handleMessage(ctx context.Context, data []byte) {
	f.metrics.messages.Add(ctx, 1)

	var event StreamEvent
	if err := json.Unmarshal(data, &event); err != nil || event.Stream == "" {
		f.metrics.parseErrors.Add(ctx, 1)
		f.logger.Debug(ctx, "failed to parse message", "data", string(data[:min(len(data), 200)]))
		return
	}
	if !strings.HasSuffix(event.Stream, "@bookTicker") {
		return
	}

	var ticker BookTickerEvent
	if err := json.Unmarshal(event.Data, &ticker); err != nil {
		f.metrics.parseErrors.Add(ctx, 1)
		return
	}
	f.applyBookTicker(ctx, event.Stream, &ticker)
}

func (f *WebSocketFeed) applyBookTicker(ctx context.Context, stream string, t *BookTickerEvent) {
	bid, err1 := decimal.NewFromString(t.BidPrice)
	ask, err2 := decimal.NewFromString(t.AskPrice)
	if err1 != nil || err2 != nil {
		f.metrics.parseErrors.Add(ctx, 1)
		return
	}

	symbol := t.Symbol
	if symbol == "" {
		symbol = symbolFromStream(stream)
	}

	f.quotesMu.Lock()
	f.quotes[symbol] = domain.Quote{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		UpdatedAt: f.now(),
	}
	f.quotesMu.Unlock()
}

func (f *WebSocketFeed) handleStateChange(state wsconn.State, err error) {
	ctx := context.Background()
	switch state {
	case wsconn.StateReconnecting:
		f.metrics.reconnects.Add(ctx, 1)
		f.logger.Warn(ctx, "binance price feed reconnecting", "error", err)
	case wsconn.StateConnected:
		f.logger.Info(ctx, "binance price feed connected")
	case wsconn.StateDisconnected:
		f.logger.Error(ctx, "binance price feed disconnected", "error", err)
	}
}
