package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Request builds and sends one HTTP call.
type Request interface {
	Get(ctx context.Context, path string) (*Response, error)
	Post(ctx context.Context, path string) (*Response, error)
	Execute(ctx context.Context, method, path string) (*Response, error)

	SetBody(body any) Request
	SetHeader(key, value string) Request
	SetQueryParam(key, value string) Request
	SetRawQuery(query string) Request
}

// Response is an http.Response whose body was read.
type Response struct {
	*http.Response
	body []byte
}

// Body returns the response body.
func (r *Response) Body() []byte {
	return r.body
}

// IsSuccess reports a status below 400.
func (r *Response) IsSuccess() bool {
	return r.StatusCode < 400
}

type requestBuilder struct {
	client   *InstrumentedClient
	cfg      requestConfig
	headers  map[string]string
	params   url.Values
	rawQuery string
	body     any
}

func (r *requestBuilder) Get(ctx context.Context, path string) (*Response, error) {
	return r.Execute(ctx, http.MethodGet, path)
}

func (r *requestBuilder) Post(ctx context.Context, path string) (*Response, error) {
	return r.Execute(ctx, http.MethodPost, path)
}

// SetBody sets the body. Strings and byte slices are sent as is; anything
// else is JSON encoded.
func (r *requestBuilder) SetBody(body any) Request {
	r.body = body
	return r
}

func (r *requestBuilder) SetHeader(key, value string) Request {
	r.headers[key] = value
	return r
}

func (r *requestBuilder) SetQueryParam(key, value string) Request {
	if r.params == nil {
		r.params = make(url.Values)
	}
	r.params.Set(key, value)
	return r
}

// SetRawQuery appends an encoded query sent byte for byte, after the params
// set with SetQueryParam. Signed requests depend on it.
func (r *requestBuilder) SetRawQuery(query string) Request {
	r.rawQuery = query
	return r
}

// Execute sends the request and reads the body. A response error handler
// error is returned together with the response.
func (r *requestBuilder) Execute(ctx context.Context, method, path string) (*Response, error) {
	c := r.client
	target := r.url(path)

	ctx, span := c.tracer.Start(ctx, "http.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", c.redact(target)),
			attribute.String("provider", c.cfg.providerName),
		),
	)
	defer span.End()

	start := time.Now()
	status := 0
	defer func() {
		c.record(ctx, r.cfg.labels, status, time.Since(start))
	}()

	body, contentType, err := r.encodeBody()
	if err != nil {
		span.SetStatus(codes.Error, "encode body")
		return nil, err
	}
	if c.cfg.traceRequest && body != nil {
		span.AddEvent("request.body", trace.WithAttributes(attribute.String("http.request_body", string(body))))
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		span.SetStatus(codes.Error, "build request")
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		recordTransportError(span, err)
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		recordTransportError(span, err)
		return nil, fmt.Errorf("read response body: %w", err)
	}
	status = resp.StatusCode
	span.SetAttributes(attribute.Int("http.status_code", status))
	if c.cfg.traceResponse {
		span.AddEvent("response.body", trace.WithAttributes(attribute.String("http.response_body", string(data))))
	}

	out := &Response{Response: resp, body: data}
	if r.cfg.errorHandler != nil {
		if herr := r.cfg.errorHandler(status, data); herr != nil {
			span.SetStatus(codes.Error, herr.Error())
			return out, herr
		}
	}
	return out, nil
}

func (r *requestBuilder) url(path string) string {
	target := path
	if base := r.client.cfg.baseURL; base != "" && !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		target = strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
	}

	query := r.params.Encode()
	if r.rawQuery != "" {
		if query != "" {
			query += "&"
		}
		query += r.rawQuery
	}
	if query == "" {
		return target
	}
	if strings.Contains(target, "?") {
		return target + "&" + query
	}
	return target + "?" + query
}

func (r *requestBuilder) encodeBody() ([]byte, string, error) {
	switch b := r.body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "", nil
	case string:
		return []byte(b), "", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return data, "application/json", nil
	}
}

// redact masks the configured query parameters of target.
func (c *InstrumentedClient) redact(target string) string {
	if len(c.cfg.redactParams) == 0 {
		return target
	}
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	changed := false
	for _, name := range c.cfg.redactParams {
		if q.Has(name) {
			q.Set(name, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return target
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *InstrumentedClient) record(ctx context.Context, labels []*Label, status int, elapsed time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("provider", c.cfg.providerName),
		attribute.String("status", statusClass(status)),
	}
	for _, l := range labels {
		attrs = append(attrs, attribute.String(l.Key, l.Value))
	}
	set := metric.WithAttributes(attrs...)
	c.metrics.requests.Add(ctx, 1, set)
	c.metrics.duration.Record(ctx, float64(elapsed.Microseconds())/1000, set)
}

// statusClass buckets a status code as "2xx".."5xx", or "error" when no
// response arrived.
func statusClass(status int) string {
	if status == 0 {
		return "error"
	}
	return strconv.Itoa(status/100) + "xx"
}

func recordTransportError(span trace.Span, err error) {
	span.RecordError(err)
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("context.cancelled", true))
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		span.SetAttributes(attribute.Bool("request.timeout", true))
	}
	span.SetStatus(codes.Error, err.Error())
}
