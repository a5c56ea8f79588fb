// Package apperror provides coded errors for the bot. Codes classify
// failures for retry decisions, metrics and alerts; the cause chain stays
// reachable through errors.Is and errors.As.
package apperror

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
)

// AppError is an error with a stable code.
type AppError struct {
	Code    Code
	Message string
	Context string
	cause   error
	stack   []uintptr
}

// Error formats "CODE: message [context]: cause".
func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	if e.Message != "" && e.Message != string(e.Code) {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Context != "" {
		sb.WriteString(" [")
		sb.WriteString(e.Context)
		sb.WriteString("]")
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches another AppError by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// LogValue renders the error as a slog group with its origin frame.
func (e *AppError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", string(e.Code)),
		slog.String("message", e.Message),
	}
	if e.Context != "" {
		attrs = append(attrs, slog.String("context", e.Context))
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	if origin := e.origin(); origin != "" {
		attrs = append(attrs, slog.String("origin", origin))
	}
	return slog.GroupValue(attrs...)
}

// origin returns "file:line" of the frame that created the error.
func (e *AppError) origin() string {
	if len(e.stack) == 0 {
		return ""
	}
	frame, _ := runtime.CallersFrames(e.stack[:1]).Next()
	if frame.File == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", frame.File, frame.Line)
}

// New creates an AppError with the default message of code.
func New(code Code, opts ...Option) *AppError {
	err := &AppError{
		Code:    code,
		Message: messages[code],
		stack:   callers(),
	}
	for _, opt := range opts {
		opt(err)
	}
	if err.Message == "" {
		err.Message = string(code)
	}
	return err
}

func callers() []uintptr {
	var pcs [8]uintptr
	n := runtime.Callers(3, pcs[:])
	return pcs[:n]
}

// Option configures an AppError.
type Option func(*AppError)

// WithMessage replaces the default message.
func WithMessage(message string) Option {
	return func(e *AppError) {
		e.Message = message
	}
}

// WithContext names the operation or entity involved.
func WithContext(context string) Option {
	return func(e *AppError) {
		e.Context = context
	}
}

// WithCause wraps an underlying error.
func WithCause(cause error) Option {
	return func(e *AppError) {
		e.cause = cause
	}
}

// NotFound creates a lookup failure for the named entity.
func NotFound(code Code, context string) *AppError {
	return New(code, WithContext(context))
}

// Wrap returns err when it already is an AppError, filling in an empty
// context, and otherwise wraps it under code.
func Wrap(err error, code Code, context string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		if context != "" && appErr.Context == "" {
			appErr.Context = context
		}
		return appErr
	}
	return New(code, WithContext(context), WithCause(err))
}

// HasCode reports whether any AppError in err's chain carries code.
func HasCode(err error, code Code) bool {
	var appErr *AppError
	for err != nil {
		if !errors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.cause
	}
	return false
}

// IsAppError reports whether err's chain contains an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetCode returns the outermost code in err's chain, or CodeUnknownError.
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

// IsTransient reports whether err is a failure the exchange client may
// retry: rate limits and unavailability.
func IsTransient(err error) bool {
	return HasCode(err, CodeExchangeRateLimited) || HasCode(err, CodeExchangeUnavailable)
}
