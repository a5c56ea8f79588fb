package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequest_QueryEncodingAndRawQuery(t *testing.T) {
	var gotQuery, gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("X-MBX-APIKEY")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client, err := NewInstrumentedClient(
		WithBaseURL(server.URL),
		WithProviderName("test"),
		WithHeaders(map[string]string{"X-MBX-APIKEY": "key"}),
	)
	if err != nil {
		t.Fatalf("NewInstrumentedClient: %v", err)
	}

	resp, err := client.NewRequest().
		SetQueryParam("symbol", "BTC USDT").
		SetQueryParam("limit", "5").
		SetRawQuery("timestamp=1&signature=abc").
		Get(context.Background(), "/api/v3/depth")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if want := "limit=5&symbol=BTC+USDT&timestamp=1&signature=abc"; gotQuery != want {
		t.Errorf("query = %q, want %q", gotQuery, want)
	}
	if gotKey != "key" {
		t.Errorf("default header = %q", gotKey)
	}
	if !resp.IsSuccess() || string(resp.Body()) != `{"ok":true}` {
		t.Errorf("unexpected response %d %s", resp.StatusCode, resp.Body())
	}
}

func TestRequest_ResponseErrorHandler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2010,"msg":"insufficient balance"}`))
	}))
	defer server.Close()

	client, err := NewInstrumentedClient(WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewInstrumentedClient: %v", err)
	}

	errRejected := errors.New("rejected")
	resp, err := client.NewRequestWithOptions(
		WithLabels(NewLabel("endpoint", "/api/v3/order")),
		WithResponseErrorHandler(func(status int, body []byte) error {
			if status >= 400 {
				return errRejected
			}
			return nil
		}),
	).Execute(context.Background(), http.MethodPost, "/api/v3/order")

	if !errors.Is(err, errRejected) {
		t.Fatalf("expected errRejected, got %v", err)
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("response should be returned alongside handler error")
	}
}

func TestRequest_JSONBody(t *testing.T) {
	var gotType, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer server.Close()

	client, err := NewInstrumentedClient(WithBaseURL(server.URL + "/"))
	if err != nil {
		t.Fatalf("NewInstrumentedClient: %v", err)
	}

	_, err = client.NewRequest().
		SetBody(map[string]string{"chat_id": "42"}).
		Post(context.Background(), "/botTOKEN/sendMessage")
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if gotType != "application/json" || gotBody != `{"chat_id":"42"}` {
		t.Errorf("content type %q body %q", gotType, gotBody)
	}
}

func TestClient_RedactsParams(t *testing.T) {
	client, err := NewInstrumentedClient(WithRedactedParams("signature"))
	if err != nil {
		t.Fatalf("NewInstrumentedClient: %v", err)
	}

	got := client.redact("https://api.binance.com/api/v3/order?symbol=BTCUSDT&signature=deadbeef")
	if want := "https://api.binance.com/api/v3/order?signature=REDACTED&symbol=BTCUSDT"; got != want {
		t.Errorf("redact = %q, want %q", got, want)
	}
	if got := client.redact("/api/v3/ping"); got != "/api/v3/ping" {
		t.Errorf("redact without params = %q", got)
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{0: "error", 200: "2xx", 429: "4xx", 503: "5xx"}
	for status, want := range tests {
		if got := statusClass(status); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", status, got, want)
		}
	}
}
