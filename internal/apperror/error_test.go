package apperror

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := New(CodeOrderRejected, WithContext("BTCUSDT"), WithCause(cause))

	msg := err.Error()
	for _, want := range []string{"ORDER_REJECTED", "BTCUSDT", "unexpected EOF"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("cause not reachable through errors.Is")
	}
	if !errors.Is(err, New(CodeOrderRejected)) {
		t.Error("AppErrors with the same code should match")
	}
	if errors.Is(err, New(CodeLegTimeout)) {
		t.Error("AppErrors with different codes should not match")
	}
}

func TestHasCode_WalksChain(t *testing.T) {
	inner := New(CodeExchangeRateLimited)
	outer := New(CodeRetriesExhausted, WithCause(inner))

	if !HasCode(outer, CodeExchangeRateLimited) {
		t.Error("inner code not found")
	}
	if GetCode(outer) != CodeRetriesExhausted {
		t.Errorf("GetCode = %s", GetCode(outer))
	}
	if !IsTransient(outer) {
		t.Error("rate limit in chain should be transient")
	}
	if IsTransient(New(CodeOrderRejected)) {
		t.Error("order rejection is not transient")
	}
	if GetCode(errors.New("plain")) != CodeUnknownError {
		t.Error("plain errors have no code")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, CodeInternalError, "x") != nil {
		t.Fatal("Wrap(nil) must be nil")
	}

	app := New(CodeInvalidPrice)
	if got := Wrap(app, CodeInternalError, "ETHBTC"); got != app || got.Context != "ETHBTC" {
		t.Errorf("Wrap of AppError = %+v", got)
	}

	got := Wrap(errors.New("boom"), CodeHistoryStoreError, "save trade")
	if got.Code != CodeHistoryStoreError || got.Message != messages[CodeHistoryStoreError] {
		t.Errorf("Wrap of plain error = %+v", got)
	}
}

func TestAppError_LogValue(t *testing.T) {
	var sb strings.Builder
	log := slog.New(slog.NewTextHandler(&sb, nil))
	log.Info("failed", "error", New(CodeLegTimeout, WithContext("leg 2")))

	out := sb.String()
	if !strings.Contains(out, "error.code=LEG_TIMEOUT") || !strings.Contains(out, "error.origin=") {
		t.Errorf("log line = %q", out)
	}
}
