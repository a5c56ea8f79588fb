// Package binance implements the exchange gateway against the Binance
// spot REST API.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/triarb-bot/business/exchange/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
	"github.com/fd1az/triarb-bot/internal/cache"
	"github.com/fd1az/triarb-bot/internal/circuitbreaker"
	"github.com/fd1az/triarb-bot/internal/config"
	"github.com/fd1az/triarb-bot/internal/httpclient"
	"github.com/fd1az/triarb-bot/internal/logger"
	"github.com/fd1az/triarb-bot/internal/ratelimit"
)

const (
	tracerName = "github.com/fd1az/triarb-bot/business/exchange/infra/binance"

	pingEndpoint         = "/api/v3/ping"
	depthEndpoint        = "/api/v3/depth"
	tickerPriceEndpoint  = "/api/v3/ticker/price"
	bookTickerEndpoint   = "/api/v3/ticker/bookTicker"
	orderEndpoint        = "/api/v3/order"
	exchangeInfoEndpoint = "/api/v3/exchangeInfo"
	accountEndpoint      = "/api/v3/account"

	apiKeyHeader = "X-MBX-APIKEY"
)

// Binance error codes with special handling.
const (
	codeTooManyRequests = -1003
	codeTooManyOrders   = -1015
	codeBadSignature    = -1022
	codeInvalidSymbol   = -1121
	codeBadAPIKeyFormat = -2014
	codeRejectedAPIKey  = -2015
)

// Client is the Binance REST client. Every request passes the rate limiter
// and the circuit breaker, transient failures are retried with exponential
// backoff, and each attempt lands in the rolling error-rate windows.
type Client struct {
	cfg     config.BinanceConfig
	http    httpclient.Client
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.CircuitBreaker[*httpclient.Response]
	filters *cache.Cache[string, domain.SymbolFilters]
	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics clientMetrics

	mu     sync.Mutex
	events []time.Time
	errors []time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

type clientMetrics struct {
	requests metric.Int64Counter
	retries  metric.Int64Counter
	failures metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewClient creates a Binance client from cfg.
func NewClient(cfg config.BinanceConfig, log logger.LoggerInterface) (*Client, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 500 * time.Millisecond
	}
	if cfg.RateLimitBackoffCap <= 0 {
		cfg.RateLimitBackoffCap = 60 * time.Second
	}
	if cfg.NetworkBackoffCap <= 0 {
		cfg.NetworkBackoffCap = 10 * time.Second
	}
	if cfg.ErrorWindow <= 0 {
		cfg.ErrorWindow = 5 * time.Minute
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 1200
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 10 * time.Second
	}

	tracer := otel.Tracer(tracerName)

	client, err := httpclient.NewInstrumentedClient(
		httpclient.WithProviderName("binance"),
		httpclient.WithBaseURL(cfg.BaseURL()),
		httpclient.WithRequestTimeout(cfg.RequestTimeout),
		httpclient.WithTraceOptions(tracer, httpclient.TraceResponse),
		httpclient.WithRedactedParams("signature"),
		httpclient.WithHeaders(map[string]string{
			"Accept": "application/json",
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	m, err := newClientMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to create exchange metrics: %w", err)
	}

	c := &Client{
		cfg:     cfg,
		http:    client,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		filters: cache.New[string, domain.SymbolFilters](time.Minute),
		logger:  log,
		tracer:  tracer,
		metrics: m,
		now:     time.Now,
		sleep:   sleepContext,
	}

	bcfg := circuitbreaker.DefaultConfig("binance")
	bcfg.IsSuccessful = func(err error) bool {
		// Only an unreachable exchange counts against the breaker; a
		// rejected order means the exchange is healthy.
		return err == nil || !apperror.HasCode(err, apperror.CodeExchangeUnavailable)
	}
	bcfg.OnStateChange = func(name string, from, to gobreaker.State) {
		log.Warn(context.Background(), "circuit breaker state changed",
			"breaker", name, "from", from.String(), "to", to.String())
	}
	c.breaker = circuitbreaker.New[*httpclient.Response](bcfg)

	return c, nil
}

func newClientMetrics() (clientMetrics, error) {
	meter := otel.Meter(tracerName)

	requests, err1 := meter.Int64Counter("exchange.requests",
		metric.WithDescription("Exchange request attempts"))
	retries, err2 := meter.Int64Counter("exchange.retries",
		metric.WithDescription("Exchange request retries"))
	failures, err3 := meter.Int64Counter("exchange.errors",
		metric.WithDescription("Failed exchange request attempts"))
	latency, err4 := meter.Float64Histogram("exchange.request.duration",
		metric.WithDescription("Exchange request latency"),
		metric.WithUnit("ms"))

	return clientMetrics{
		requests: requests,
		retries:  retries,
		failures: failures,
		latency:  latency,
	}, errors.Join(err1, err2, err3, err4)
}

// Close releases the metadata cache.
func (c *Client) Close() error {
	c.filters.Close()
	return nil
}

// Request performs one logical API call, decoding the JSON body into out
// when out is non-nil. Rate limits are retried for every method; network
// and 5xx failures only for GET, since a POSTed order may already have
// executed.
func (c *Client) Request(ctx context.Context, method, endpoint string, signed bool, params url.Values, out any) error {
	ctx, span := c.tracer.Start(ctx, "binance.request",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("endpoint", endpoint),
			attribute.Bool("signed", signed),
		),
	)
	defer span.End()

	idempotent := method == http.MethodGet

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if err := c.limiter.WaitWeight(ctx, requestWeight(endpoint, params)); err != nil {
			return apperror.New(apperror.CodeExchangeUnavailable,
				apperror.WithCause(err),
				apperror.WithContext("rate limiter wait: "+endpoint))
		}

		retryAfter, err := c.attempt(ctx, method, endpoint, signed, params, out)
		if err == nil {
			span.SetAttributes(attribute.Int("attempts", attempt))
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err, idempotent) {
			span.RecordError(err)
			return err
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}

		wait := c.backoff(attempt, err, retryAfter)
		if apperror.HasCode(err, apperror.CodeExchangeRateLimited) && retryAfter > 0 {
			c.limiter.Ban(retryAfter)
		}
		c.metrics.retries.Add(ctx, 1, metric.WithAttributes(attribute.String("endpoint", endpoint)))
		c.logger.Warn(ctx, "binance request failed, retrying",
			"endpoint", endpoint,
			"attempt", attempt,
			"wait", wait.String(),
			"error", err)

		if err := c.sleep(ctx, wait); err != nil {
			return lastErr
		}
	}

	span.RecordError(lastErr)
	return apperror.New(apperror.CodeRetriesExhausted,
		apperror.WithCause(lastErr),
		apperror.WithContext(fmt.Sprintf("%s %s after %d attempts", method, endpoint, c.cfg.MaxAttempts)))
}

func (c *Client) attempt(ctx context.Context, method, endpoint string, signed bool, params url.Values, out any) (time.Duration, error) {
	start := c.now()
	resp, err := c.breaker.Execute(func() (*httpclient.Response, error) {
		return c.send(ctx, method, endpoint, signed, params)
	})

	if err == nil && out != nil {
		if decodeErr := json.Unmarshal(resp.Body(), out); decodeErr != nil {
			code := apperror.CodeExchangeAPIError
			if endpoint == orderEndpoint {
				code = apperror.CodeMalformedOrderResponse
			}
			err = apperror.New(code,
				apperror.WithCause(decodeErr),
				apperror.WithContext("decode "+endpoint))
		}
	}

	outcome := "ok"
	if err != nil {
		outcome = string(apperror.GetCode(err))
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	)
	c.metrics.requests.Add(ctx, 1, attrs)
	c.metrics.latency.Record(ctx, float64(c.now().Sub(start).Milliseconds()), attrs)

	// A cancelled caller says nothing about exchange health.
	if ctx.Err() == nil {
		c.record(err != nil)
		if err != nil {
			c.metrics.failures.Add(ctx, 1, attrs)
		}
	}

	return retryAfter(resp), err
}

func (c *Client) send(ctx context.Context, method, endpoint string, signed bool, params url.Values) (*httpclient.Response, error) {
	query := url.Values{}
	for k, v := range params {
		query[k] = append([]string(nil), v...)
	}

	req := c.http.NewRequestWithOptions(
		httpclient.WithLabels(httpclient.NewLabel("endpoint", endpoint)),
		httpclient.WithResponseErrorHandler(errorHandler),
	)

	if signed {
		if c.cfg.APIKey == "" || c.cfg.APISecret == "" {
			return nil, apperror.New(apperror.CodeExchangeAuthFailed,
				apperror.WithContext("missing API credentials for "+endpoint))
		}
		query.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		if c.cfg.RecvWindow > 0 {
			query.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow.Milliseconds(), 10))
		}
		payload := query.Encode()
		req.SetHeader(apiKeyHeader, c.cfg.APIKey).
			SetRawQuery(payload + "&signature=" + sign(c.cfg.APISecret, payload))
	} else if len(query) > 0 {
		req.SetRawQuery(query.Encode())
	}

	resp, err := req.Execute(ctx, method, endpoint)
	if err != nil {
		return resp, classify(endpoint, resp, err)
	}
	return resp, nil
}

// classify maps a failed exchange call onto the error taxonomy.
func classify(endpoint string, resp *httpclient.Response, err error) error {
	if resp == nil {
		return apperror.New(apperror.CodeExchangeUnavailable,
			apperror.WithCause(err),
			apperror.WithContext(endpoint))
	}

	apiCode := 0
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		apiCode = apiErr.Code
	}
	status := resp.StatusCode

	var code apperror.Code
	switch {
	case status == http.StatusTooManyRequests || status == http.StatusTeapot ||
		apiCode == codeTooManyRequests || apiCode == codeTooManyOrders:
		code = apperror.CodeExchangeRateLimited
	case status >= http.StatusInternalServerError:
		code = apperror.CodeExchangeUnavailable
	case status == http.StatusUnauthorized || apiCode == codeBadSignature ||
		apiCode == codeBadAPIKeyFormat || apiCode == codeRejectedAPIKey:
		code = apperror.CodeExchangeAuthFailed
	case apiCode == codeInvalidSymbol:
		code = apperror.CodeSymbolNotFound
	case endpoint == orderEndpoint:
		code = apperror.CodeOrderRejected
	default:
		code = apperror.CodeExchangeAPIError
	}

	return apperror.New(code,
		apperror.WithCause(err),
		apperror.WithContext(fmt.Sprintf("%s: HTTP %d", endpoint, status)))
}

func retryable(err error, idempotent bool) bool {
	if !apperror.IsTransient(err) {
		return false
	}
	return idempotent || apperror.HasCode(err, apperror.CodeExchangeRateLimited)
}

// backoff returns base×2^(attempt-1), or the server's Retry-After, capped
// per failure class.
func (c *Client) backoff(attempt int, err error, retryAfter time.Duration) time.Duration {
	limit := c.cfg.NetworkBackoffCap
	if apperror.HasCode(err, apperror.CodeExchangeRateLimited) {
		limit = c.cfg.RateLimitBackoffCap
	}

	if retryAfter > 0 {
		return min(retryAfter, limit)
	}

	d := c.cfg.BackoffBase << (attempt - 1)
	if d <= 0 || d > limit {
		d = limit
	}
	return d
}

// requestWeight returns the Binance request weight of one call.
func requestWeight(endpoint string, params url.Values) int {
	switch endpoint {
	case depthEndpoint:
		limit, _ := strconv.Atoi(params.Get("limit"))
		switch {
		case limit <= 100:
			return 5
		case limit <= 500:
			return 25
		case limit <= 1000:
			return 50
		default:
			return 250
		}
	case tickerPriceEndpoint, bookTickerEndpoint:
		if params.Get("symbol") != "" {
			return 2
		}
		return 4
	case exchangeInfoEndpoint, accountEndpoint:
		return 20
	default:
		return 1
	}
}

func retryAfter(resp *httpclient.Response) time.Duration {
	if resp == nil || resp.Response == nil {
		return 0
	}
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (c *Client) record(failed bool) {
	now := c.now()
	cutoff := now.Add(-c.cfg.ErrorWindow)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(trimBefore(c.events, cutoff), now)
	if failed {
		c.errors = append(trimBefore(c.errors, cutoff), now)
	} else {
		c.errors = trimBefore(c.errors, cutoff)
	}
}

// ErrorRate returns failed/total attempts in the last window, clamped to
// [0,1]. It is 0 when nothing was recorded. Windows longer than
// binance.error_window only see what is still retained.
func (c *Client) ErrorRate(window time.Duration) float64 {
	if window <= 0 {
		return 0
	}
	cutoff := c.now().Add(-window)

	c.mu.Lock()
	total := len(trimBefore(c.events, cutoff))
	failed := len(trimBefore(c.errors, cutoff))
	c.mu.Unlock()

	if total == 0 {
		return 0
	}
	rate := float64(failed) / float64(total)
	return max(0, min(rate, 1))
}

// trimBefore drops the leading timestamps that are not after cutoff.
func trimBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := sort.Search(len(ts), func(i int) bool { return ts[i].After(cutoff) })
	return ts[i:]
}

func sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
