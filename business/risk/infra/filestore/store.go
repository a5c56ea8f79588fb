// Package filestore persists the risk state as a JSON file.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fd1az/triarb-bot/business/risk/app"
	"github.com/fd1az/triarb-bot/business/risk/domain"
	"github.com/fd1az/triarb-bot/internal/apperror"
)

var _ app.StateStore = (*Store)(nil)

// stateFile is the on-disk layout. Timestamps are unix seconds; zero means
// unset.
type stateFile struct {
	PausedUntil       float64         `json:"paused_until_ts"`
	PauseReason       string          `json:"pause_reason,omitempty"`
	ConsecutiveLosses int             `json:"consecutive_losses"`
	LastTradePnL      decimal.Decimal `json:"last_trade_pnl"`
	LastLossAt        float64         `json:"last_loss_ts"`
	SavedAt           float64         `json:"saved_at"`
}

// Store reads and writes one state file. Writes go to a temp file in the
// same directory and are renamed over the target.
type Store struct {
	path string
}

// New creates a store for path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// Load returns the saved state. A missing file is a fresh state; an
// unreadable or corrupt one is an error.
func (s *Store) Load(_ context.Context) (domain.State, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.State{}, nil
	}
	if err != nil {
		return domain.State{}, apperror.New(apperror.CodeRiskStateLoadFailed,
			apperror.WithCause(err), apperror.WithContext(s.path))
	}

	var f stateFile
	if err := json.Unmarshal(data, &f); err != nil {
		return domain.State{}, apperror.New(apperror.CodeRiskStateLoadFailed,
			apperror.WithCause(err), apperror.WithContext(s.path))
	}
	if f.ConsecutiveLosses < 0 {
		return domain.State{}, apperror.New(apperror.CodeRiskStateLoadFailed,
			apperror.WithMessage("negative consecutive_losses"), apperror.WithContext(s.path))
	}

	return domain.State{
		PausedUntil:       fromUnix(f.PausedUntil),
		PauseReason:       f.PauseReason,
		ConsecutiveLosses: f.ConsecutiveLosses,
		LastLossAt:        fromUnix(f.LastLossAt),
		LastTradePnL:      f.LastTradePnL,
		SavedAt:           fromUnix(f.SavedAt),
	}, nil
}

// Save writes st atomically.
func (s *Store) Save(_ context.Context, st domain.State) error {
	data, err := json.MarshalIndent(stateFile{
		PausedUntil:       toUnix(st.PausedUntil),
		PauseReason:       st.PauseReason,
		ConsecutiveLosses: st.ConsecutiveLosses,
		LastTradePnL:      st.LastTradePnL,
		LastLossAt:        toUnix(st.LastLossAt),
		SavedAt:           toUnix(st.SavedAt),
	}, "", "  ")
	if err != nil {
		return apperror.New(apperror.CodeRiskStateSaveFailed, apperror.WithCause(err))
	}

	if err := writeAtomic(s.path, data); err != nil {
		return apperror.New(apperror.CodeRiskStateSaveFailed,
			apperror.WithCause(err), apperror.WithContext(s.path))
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func toUnix(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixMicro()) / 1e6
}

func fromUnix(ts float64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC()
}
