package binance

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/exchange/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
)

// Depth limits Binance accepts.
var depthLimits = []int{5, 10, 20, 50, 100, 500, 1000, 5000}

// Ping checks REST connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.Request(ctx, http.MethodGet, pingEndpoint, false, nil, nil)
}

// GetOrderBook fetches at least limit levels per side for symbol.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, limit int) (*domain.OrderBook, error) {
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("limit", strconv.Itoa(depthLimit(limit)))

	var resp depthResponse
	if err := c.Request(ctx, http.MethodGet, depthEndpoint, false, params, &resp); err != nil {
		return nil, apperror.New(apperror.CodeOrderbookFetchFailed,
			apperror.WithCause(err),
			apperror.WithContext(symbol))
	}

	bids, err := parseLevels(resp.Bids)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidOrderbook,
			apperror.WithCause(err),
			apperror.WithContext(symbol+" bids"))
	}
	asks, err := parseLevels(resp.Asks)
	if err != nil {
		return nil, apperror.New(apperror.CodeInvalidOrderbook,
			apperror.WithCause(err),
			apperror.WithContext(symbol+" asks"))
	}

	return &domain.OrderBook{
		Symbol:       symbol,
		LastUpdateID: resp.LastUpdateID,
		Bids:         bids,
		Asks:         asks,
		Timestamp:    c.now(),
	}, nil
}

// GetAllPrices returns the last price of every symbol.
func (c *Client) GetAllPrices(ctx context.Context) (map[string]decimal.Decimal, error) {
	var resp []tickerPrice
	if err := c.Request(ctx, http.MethodGet, tickerPriceEndpoint, false, nil, &resp); err != nil {
		return nil, err
	}

	prices := make(map[string]decimal.Decimal, len(resp))
	for _, t := range resp {
		p, err := decimal.NewFromString(t.Price)
		if err != nil || !p.IsPositive() {
			continue
		}
		prices[t.Symbol] = p
	}
	return prices, nil
}

// GetBookTickers returns best bid/ask for every symbol.
func (c *Client) GetBookTickers(ctx context.Context) ([]domain.BookTicker, error) {
	var resp []bookTicker
	if err := c.Request(ctx, http.MethodGet, bookTickerEndpoint, false, nil, &resp); err != nil {
		return nil, err
	}

	tickers := make([]domain.BookTicker, 0, len(resp))
	for _, t := range resp {
		bt, err := toBookTicker(t)
		if err != nil {
			continue
		}
		tickers = append(tickers, bt)
	}
	return tickers, nil
}

// PlaceMarketOrder submits a MARKET order for qty base units and returns the
// validated fill.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, qty decimal.Decimal) (*domain.OrderResult, error) {
	if !qty.IsPositive() {
		return nil, apperror.New(apperror.CodeInvalidTradeSize,
			apperror.WithContext(fmt.Sprintf("%s %s quantity %s", side, symbol, qty)))
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("side", string(side))
	params.Set("type", "MARKET")
	params.Set("quantity", qty.String())
	params.Set("newOrderRespType", "FULL")
	params.Set("newClientOrderId", uuid.NewString())

	var resp orderResponse
	if err := c.Request(ctx, http.MethodPost, orderEndpoint, true, params, &resp); err != nil {
		return nil, err
	}

	result, err := toOrderResult(resp, qty)
	if err != nil {
		return nil, err
	}

	c.logger.Info(ctx, "market order filled",
		"symbol", symbol,
		"side", string(side),
		"order_id", result.OrderID,
		"requested", result.RequestedQty.String(),
		"executed", result.ExecutedQty.String(),
		"avg_price", result.AvgPrice.String(),
		"status", result.Status)

	return result, nil
}

// SymbolFilters returns lot-size and notional filters for symbol, cached
// for binance.exchange_info_ttl.
func (c *Client) SymbolFilters(ctx context.Context, symbol string) (domain.SymbolFilters, error) {
	if f, ok := c.filters.Get(ctx, symbol); ok {
		return f, nil
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	var resp exchangeInfoResponse
	if err := c.Request(ctx, http.MethodGet, exchangeInfoEndpoint, false, params, &resp); err != nil {
		return domain.SymbolFilters{}, err
	}

	for _, info := range resp.Symbols {
		if info.Symbol != symbol {
			continue
		}
		f, err := toSymbolFilters(info)
		if err != nil {
			return domain.SymbolFilters{}, err
		}
		ttl := c.cfg.ExchangeInfoTTL
		if ttl <= 0 {
			ttl = time.Hour
		}
		c.filters.Set(ctx, symbol, f, ttl)
		return f, nil
	}

	return domain.SymbolFilters{}, apperror.NotFound(apperror.CodeSymbolNotFound, symbol)
}

// GetBalances returns the account's non-zero balances.
func (c *Client) GetBalances(ctx context.Context) ([]domain.Balance, error) {
	var resp accountResponse
	if err := c.Request(ctx, http.MethodGet, accountEndpoint, true, nil, &resp); err != nil {
		return nil, err
	}

	balances := make([]domain.Balance, 0)
	for _, b := range resp.Balances {
		free, err1 := decimal.NewFromString(b.Free)
		locked, err2 := decimal.NewFromString(b.Locked)
		if err1 != nil || err2 != nil {
			continue
		}
		if free.IsZero() && locked.IsZero() {
			continue
		}
		balances = append(balances, domain.Balance{Asset: b.Asset, Free: free, Locked: locked})
	}
	return balances, nil
}

// depthLimit rounds limit up to the next size Binance serves.
func depthLimit(limit int) int {
	for _, l := range depthLimits {
		if limit <= l {
			return l
		}
	}
	return depthLimits[len(depthLimits)-1]
}

func parseLevels(raw [][]string) ([]domain.Level, error) {
	levels := make([]domain.Level, 0, len(raw))
	for i, lvl := range raw {
		if len(lvl) < 2 {
			return nil, fmt.Errorf("level %d: expected [price, qty]", i)
		}
		price, err := decimal.NewFromString(lvl[0])
		if err != nil {
			return nil, fmt.Errorf("level %d price: %w", i, err)
		}
		qty, err := decimal.NewFromString(lvl[1])
		if err != nil {
			return nil, fmt.Errorf("level %d qty: %w", i, err)
		}
		if !price.IsPositive() || qty.IsNegative() {
			return nil, fmt.Errorf("level %d: invalid price %s qty %s", i, price, qty)
		}
		levels = append(levels, domain.Level{Price: price, Quantity: qty})
	}
	return levels, nil
}

func toBookTicker(t bookTicker) (domain.BookTicker, error) {
	bid, err := decimal.NewFromString(t.BidPrice)
	if err != nil {
		return domain.BookTicker{}, err
	}
	ask, err := decimal.NewFromString(t.AskPrice)
	if err != nil {
		return domain.BookTicker{}, err
	}
	return domain.BookTicker{
		Symbol:   t.Symbol,
		BidPrice: bid,
		BidQty:   decimalOrZero(t.BidQty),
		AskPrice: ask,
		AskQty:   decimalOrZero(t.AskQty),
	}, nil
}

func toOrderResult(resp orderResponse, requested decimal.Decimal) (*domain.OrderResult, error) {
	malformed := func(field string, err error) error {
		return apperror.New(apperror.CodeMalformedOrderResponse,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("%s order %d: field %s", resp.Symbol, resp.OrderID, field)))
	}

	executed, err := decimal.NewFromString(resp.ExecutedQty)
	if err != nil {
		return nil, malformed("executedQty", err)
	}
	quote, err := decimal.NewFromString(resp.CummulativeQuoteQty)
	if err != nil {
		return nil, malformed("cummulativeQuoteQty", err)
	}
	if orig, err := decimal.NewFromString(resp.OrigQty); err == nil && orig.IsPositive() {
		requested = orig
	}

	fills := make([]domain.Fill, 0, len(resp.Fills))
	for _, f := range resp.Fills {
		price, err := decimal.NewFromString(f.Price)
		if err != nil {
			return nil, malformed("fills.price", err)
		}
		qty, err := decimal.NewFromString(f.Qty)
		if err != nil {
			return nil, malformed("fills.qty", err)
		}
		fills = append(fills, domain.Fill{
			Price:           price,
			Quantity:        qty,
			Commission:      decimalOrZero(f.Commission),
			CommissionAsset: f.CommissionAsset,
		})
	}

	var transact time.Time
	if resp.TransactTime > 0 {
		transact = time.UnixMilli(resp.TransactTime).UTC()
	}

	return domain.NewOrderResult(domain.OrderResultParams{
		OrderID:            resp.OrderID,
		ClientOrderID:      resp.ClientOrderID,
		Symbol:             resp.Symbol,
		Side:               domain.Side(strings.ToUpper(resp.Side)),
		Status:             resp.Status,
		RequestedQty:       requested,
		ExecutedQty:        executed,
		CumulativeQuoteQty: quote,
		Fills:              fills,
		TransactTime:       transact,
	})
}

func toSymbolFilters(info symbolInfo) (domain.SymbolFilters, error) {
	f := domain.SymbolFilters{
		Symbol:     info.Symbol,
		Status:     info.Status,
		BaseAsset:  info.BaseAsset,
		QuoteAsset: info.QuoteAsset,
	}

	for _, raw := range info.Filters {
		switch raw.FilterType {
		case "LOT_SIZE":
			f.StepSize = decimalOrZero(raw.StepSize)
			f.MinQty = decimalOrZero(raw.MinQty)
			f.MaxQty = decimalOrZero(raw.MaxQty)
		case "MIN_NOTIONAL", "NOTIONAL":
			f.MinNotional = decimalOrZero(raw.MinNotional)
		}
	}

	if !f.StepSize.IsPositive() {
		return domain.SymbolFilters{}, apperror.New(apperror.CodeExchangeAPIError,
			apperror.WithContext(info.Symbol+": exchangeInfo without LOT_SIZE filter"))
	}
	return f, nil
}

func decimalOrZero(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
