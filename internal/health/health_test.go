package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestServer_HealthDegradedWhenCheckFails(t *testing.T) {
	s := NewServer(0, "test")
	s.RegisterCheck("price_feed", func(context.Context) (bool, string) { return true, "fresh" })
	s.RegisterCheck("exchange", func(context.Context) (bool, string) { return false, "error rate 0.40" })

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rec.Code)
	}

	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "degraded" || status.Checks["exchange"].Message != "error rate 0.40" {
		t.Errorf("unexpected status %+v", status)
	}
}

func TestServer_StatusEndpoints(t *testing.T) {
	s := NewServer(0, "test")

	var gotLimit int
	s.RegisterStatus("trades", func(_ context.Context, q Query) (any, error) {
		gotLimit = q.Limit
		return []string{"t1", "t2"}, nil
	})
	s.RegisterStatus("stats", func(context.Context, Query) (any, error) {
		return nil, errors.New("store offline")
	})

	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"registered", "/api/trades?limit=10", http.StatusOK},
		{"failing", "/api/stats", http.StatusInternalServerError},
		{"unknown", "/api/wallet", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}

	if gotLimit != 10 {
		t.Errorf("limit = %d, want 10", gotLimit)
	}
}
