package domain

import (
	"testing"
	"time"
)

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 22:30 local on Mar 1 is 03:30 UTC on Mar 2
	start, end := DayBounds(time.Date(2026, 3, 1, 22, 30, 0, 0, loc))

	if !start.Equal(time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start = %s", start)
	}
	if end.Sub(start) != 24*time.Hour {
		t.Errorf("end = %s", end)
	}
}

func TestState_Paused(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := State{PausedUntil: now.Add(time.Minute)}

	if !s.Paused(now) || s.PauseRemaining(now) != time.Minute {
		t.Error("expected paused for a minute")
	}
	if s.Paused(now.Add(time.Minute)) {
		t.Error("pause must end at PausedUntil")
	}
}
