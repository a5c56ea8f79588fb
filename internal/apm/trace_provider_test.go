package apm

import (
	"context"
	"testing"

	"github.com/fd1az/triarb-bot/internal/config"
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

func TestParseHeaders(t *testing.T) {
	got := ParseHeaders("x-honeycomb-team=abc, api-key=k=v,broken,=x")
	if len(got) != 2 {
		t.Fatalf("parsed %d headers: %v", len(got), got)
	}
	if got["x-honeycomb-team"] != "abc" {
		t.Errorf("x-honeycomb-team = %q", got["x-honeycomb-team"])
	}
	if got["api-key"] != "k=v" {
		t.Errorf("api-key = %q", got["api-key"])
	}
}

func TestNewTraceProvider_None(t *testing.T) {
	tp, err := NewTraceProvider(config.TelemetryConfig{TraceExporter: "none"}, &mockLogger{})
	if err != nil {
		t.Fatalf("NewTraceProvider: %v", err)
	}
	if _, ok := tp.(emptyTraceProvider); !ok {
		t.Errorf("got %T, want the empty provider", tp)
	}
	if err := tp.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
