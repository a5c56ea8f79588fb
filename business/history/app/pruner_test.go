package app

import (
	"context"
	"errors"
	"testing"
	"time"
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

// pruneStore records PruneBefore calls; every other method is unused.
type pruneStore struct {
	Store
	cutoffs []time.Time
	deleted int64
	err     error
}

func (s *pruneStore) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.cutoffs = append(s.cutoffs, cutoff)
	return s.deleted, s.err
}

func TestPruner_PruneOnce(t *testing.T) {
	now := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	store := &pruneStore{deleted: 3}

	p := NewPruner(store, 24*time.Hour, 0, &mockLogger{})
	p.now = func() time.Time { return now }

	if got := p.PruneOnce(context.Background()); got != 3 {
		t.Errorf("PruneOnce = %d, want 3", got)
	}
	if len(store.cutoffs) != 1 || !store.cutoffs[0].Equal(now.Add(-24*time.Hour)) {
		t.Errorf("cutoffs = %v", store.cutoffs)
	}

	store.err = errors.New("db down")
	if got := p.PruneOnce(context.Background()); got != 0 {
		t.Errorf("PruneOnce on error = %d, want 0", got)
	}
}

func TestPruner_DisabledWithoutRetention(t *testing.T) {
	store := &pruneStore{}
	p := NewPruner(store, 0, time.Millisecond, &mockLogger{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(store.cutoffs) != 0 {
		t.Errorf("pruned %d times with retention disabled", len(store.cutoffs))
	}
}
