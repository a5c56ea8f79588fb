package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/pricing/domain"
	"github.com/fd1az/triarb-bot/internal/logger"
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

type stubFeed struct {
	source string
	prices map[string]decimal.Decimal
	err    error
	calls  int
}

func (f *stubFeed) Prices(context.Context) (map[string]decimal.Decimal, error) {
	f.calls++
	return f.prices, f.err
}

func (f *stubFeed) Health() domain.FeedHealth {
	return domain.FeedHealth{Source: f.source}
}

type stubMirror struct {
	published []domain.Snapshot
	err       error
}

func (m *stubMirror) Publish(_ context.Context, snap domain.Snapshot) error {
	m.published = append(m.published, snap)
	return m.err
}

func prices(kv ...any) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for i := 0; i < len(kv); i += 2 {
		out[kv[i].(string)] = decimal.RequireFromString(kv[i+1].(string))
	}
	return out
}

func TestService_Snapshot_FiltersToSymbols(t *testing.T) {
	primary := &stubFeed{source: domain.SourceWebSocket, prices: prices("BTCUSDT", "50000", "ETHBTC", "0.06", "DOGEUSDT", "0.1")}
	mirror := &stubMirror{}
	svc := NewService(ServiceConfig{Symbols: []string{"BTCUSDT", "ETHBTC", "ETHUSDT"}, Source: domain.SourceWebSocket}, primary, nil, mirror, &mockLogger{})

	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if len(snap.Prices) != 2 {
		t.Errorf("got %d prices, want 2", len(snap.Prices))
	}
	if snap.Source != domain.SourceWebSocket {
		t.Errorf("source = %s", snap.Source)
	}
	if len(mirror.published) != 1 {
		t.Errorf("mirror published %d times, want 1", len(mirror.published))
	}
}

func TestService_Snapshot_Fallback(t *testing.T) {
	tests := []struct {
		name    string
		primary *stubFeed
	}{
		{"primary errors", &stubFeed{source: domain.SourceWebSocket, err: errors.New("closed")}},
		{"primary empty", &stubFeed{source: domain.SourceWebSocket, prices: prices()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fallback := &stubFeed{source: domain.SourceREST, prices: prices("BTCUSDT", "50000")}
			svc := NewService(ServiceConfig{Symbols: []string{"BTCUSDT"}}, tt.primary, fallback, nil, &mockLogger{})

			snap, err := svc.Snapshot(context.Background())
			if err != nil {
				t.Fatalf("Snapshot: %v", err)
			}
			if snap.Source != domain.SourceREST || len(snap.Prices) != 1 {
				t.Errorf("unexpected snapshot %+v", snap)
			}
			if fallback.calls != 1 {
				t.Errorf("fallback calls = %d", fallback.calls)
			}
		})
	}
}

func TestService_Snapshot_EmptyIsNotMirrored(t *testing.T) {
	primary := &stubFeed{source: domain.SourceWebSocket, prices: prices("DOGEUSDT", "0.1")}
	mirror := &stubMirror{}
	svc := NewService(ServiceConfig{Symbols: []string{"BTCUSDT"}}, primary, nil, mirror, &mockLogger{})

	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !snap.Empty() {
		t.Error("expected empty snapshot")
	}
	if len(mirror.published) != 0 {
		t.Error("empty snapshot should not be mirrored")
	}
}

func TestService_Snapshot_MirrorFailureIsNotFatal(t *testing.T) {
	primary := &stubFeed{prices: prices("BTCUSDT", "1")}
	svc := NewService(ServiceConfig{Symbols: []string{"BTCUSDT"}}, primary, nil, &stubMirror{err: errors.New("down")}, &mockLogger{})

	if _, err := svc.Snapshot(context.Background()); err != nil {
		t.Errorf("mirror failure leaked: %v", err)
	}
}

func TestService_Snapshot_BothFail(t *testing.T) {
	svc := NewService(ServiceConfig{},
		&stubFeed{err: errors.New("ws down")},
		&stubFeed{err: errors.New("rest down")},
		nil, &mockLogger{})

	if _, err := svc.Snapshot(context.Background()); err == nil {
		t.Error("expected error")
	}
}
