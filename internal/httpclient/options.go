// Package httpclient provides the instrumented HTTP client shared by the
// exchange and notification adapters.
package httpclient

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TraceOption selects the bodies recorded as span events.
type TraceOption string

const (
	TraceRequest  TraceOption = "request"
	TraceResponse TraceOption = "response"
)

type clientConfig struct {
	transport     http.RoundTripper
	meterProvider metric.MeterProvider
	tracer        trace.Tracer
	providerName  string
	baseURL       string
	timeout       time.Duration
	headers       map[string]string
	redactParams  []string
	traceRequest  bool
	traceResponse bool
}

// ClientOption configures the client.
type ClientOption func(*clientConfig)

// WithProviderName names the upstream in metrics and spans.
func WithProviderName(name string) ClientOption {
	return func(c *clientConfig) { c.providerName = name }
}

// WithBaseURL sets the prefix of relative request paths.
func WithBaseURL(url string) ClientOption {
	return func(c *clientConfig) { c.baseURL = url }
}

// WithRequestTimeout bounds every request, including reading the body.
func WithRequestTimeout(timeout time.Duration) ClientOption {
	return func(c *clientConfig) { c.timeout = timeout }
}

// WithHeaders sets headers sent on every request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *clientConfig) { c.headers = headers }
}

// WithTransport replaces the default pooled transport.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *clientConfig) { c.transport = rt }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) ClientOption {
	return func(c *clientConfig) { c.meterProvider = mp }
}

// WithRedactedParams masks the named query parameters in span attributes.
func WithRedactedParams(names ...string) ClientOption {
	return func(c *clientConfig) { c.redactParams = append(c.redactParams, names...) }
}

// WithTraceOptions records request and/or response bodies on spans.
func WithTraceOptions(tracer trace.Tracer, opts ...TraceOption) ClientOption {
	return func(c *clientConfig) {
		c.tracer = tracer
		for _, o := range opts {
			switch o {
			case TraceRequest:
				c.traceRequest = true
			case TraceResponse:
				c.traceResponse = true
			}
		}
	}
}

// ResponseErrorHandler turns a completed response into an error, or nil.
type ResponseErrorHandler func(statusCode int, body []byte) error

// Label is an extra metric attribute.
type Label struct {
	Key   string
	Value string
}

// NewLabel creates a label.
func NewLabel(key, value string) *Label {
	return &Label{Key: key, Value: value}
}

type requestConfig struct {
	errorHandler ResponseErrorHandler
	labels       []*Label
}

// RequestOption configures a single request.
type RequestOption func(*requestConfig)

// WithResponseErrorHandler sets the handler run on every response.
func WithResponseErrorHandler(handler ResponseErrorHandler) RequestOption {
	return func(c *requestConfig) { c.errorHandler = handler }
}

// WithLabels adds metric attributes to the request.
func WithLabels(labels ...*Label) RequestOption {
	return func(c *requestConfig) { c.labels = append(c.labels, labels...) }
}
