package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/fd1az/triarb-bot/internal/httpclient"

	defaultTimeout         = 10 * time.Second
	defaultKeepAlive       = 30 * time.Second
	defaultMaxConnsPerHost = 8
	defaultIdleConnTimeout = 90 * time.Second
)

// Client builds instrumented requests.
type Client interface {
	NewRequest() Request
	NewRequestWithOptions(opts ...RequestOption) Request
}

type clientMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
}

// InstrumentedClient is an http.Client with an otelhttp transport, a request
// counter and a latency histogram.
type InstrumentedClient struct {
	http    *http.Client
	cfg     clientConfig
	tracer  trace.Tracer
	metrics clientMetrics
}

var _ Client = (*InstrumentedClient)(nil)

// NewInstrumentedClient creates a client. The default transport keeps a
// small pool of connections to one host.
func NewInstrumentedClient(opts ...ClientOption) (*InstrumentedClient, error) {
	cfg := clientConfig{providerName: "default", timeout: defaultTimeout}
	for _, o := range opts {
		o(&cfg)
	}

	transport := cfg.transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{KeepAlive: defaultKeepAlive}).DialContext,
			MaxConnsPerHost:     defaultMaxConnsPerHost,
			MaxIdleConnsPerHost: defaultMaxConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
			ForceAttemptHTTP2:   true,
		}
	}
	transport = otelhttp.NewTransport(transport,
		otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
			return otelhttptrace.NewClientTrace(ctx)
		}),
	)

	mp := cfg.meterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName,
		metric.WithInstrumentationAttributes(attribute.String("provider", cfg.providerName)))

	requests, err := meter.Int64Counter("http_client_requests_total",
		metric.WithDescription("HTTP requests by provider and outcome"))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("http_client_request_duration_ms",
		metric.WithDescription("HTTP request latency including the body read"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	tracer := cfg.tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	return &InstrumentedClient{
		http:    &http.Client{Transport: transport, Timeout: cfg.timeout},
		cfg:     cfg,
		tracer:  tracer,
		metrics: clientMetrics{requests: requests, duration: duration},
	}, nil
}

// NewRequest creates a request without options.
func (c *InstrumentedClient) NewRequest() Request {
	return c.NewRequestWithOptions()
}

// NewRequestWithOptions creates a request carrying the client's default
// headers.
func (c *InstrumentedClient) NewRequestWithOptions(opts ...RequestOption) Request {
	var rc requestConfig
	for _, o := range opts {
		o(&rc)
	}

	headers := make(map[string]string, len(c.cfg.headers))
	for k, v := range c.cfg.headers {
		headers[k] = v
	}
	return &requestBuilder{client: c, cfg: rc, headers: headers}
}
