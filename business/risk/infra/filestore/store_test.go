package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/triarb-bot/business/risk/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
)

func TestStore_MissingFileIsFresh(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "risk_state.json"))

	st, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.State{}, st)
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "risk_state.json")
	s := New(path)

	want := domain.State{
		PausedUntil:       time.Date(2025, 6, 1, 14, 0, 0, 500000000, time.UTC),
		PauseReason:       "two consecutive losses",
		ConsecutiveLosses: 2,
		LastLossAt:        time.Date(2025, 6, 1, 13, 30, 0, 0, time.UTC),
		LastTradePnL:      decimal.RequireFromString("-1.2345"),
		SavedAt:           time.Date(2025, 6, 1, 13, 30, 1, 0, time.UTC),
	}
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.PausedUntil.Equal(want.PausedUntil), "paused until %v", got.PausedUntil)
	assert.True(t, got.LastLossAt.Equal(want.LastLossAt))
	assert.True(t, got.LastTradePnL.Equal(want.LastTradePnL))
	assert.Equal(t, want.PauseReason, got.PauseReason)
	assert.Equal(t, 2, got.ConsecutiveLosses)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestStore_CorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_state.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := New(path).Load(context.Background())
	assert.True(t, apperror.HasCode(err, apperror.CodeRiskStateLoadFailed), "got %v", err)
}

func TestStore_FileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "risk_state.json")
	s := New(path)
	require.NoError(t, s.Save(context.Background(), domain.State{
		ConsecutiveLosses: 1,
		LastTradePnL:      decimal.NewFromInt(-3),
		LastLossAt:        time.Unix(1700000000, 0),
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"paused_until_ts": 0,
		"consecutive_losses": 1,
		"last_trade_pnl": "-3",
		"last_loss_ts": 1700000000,
		"saved_at": 0
	}`, string(data))
}
