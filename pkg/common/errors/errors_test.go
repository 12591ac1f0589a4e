package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorStrings(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"closed", ErrClosed, "resource is closed"},
		{"full", ErrFull, "queue is full"},
		{
			"validation with hint",
			NewValidationError("queue", "Capacity", -3, "cannot be negative").WithHint("use 0 for an unbounded queue"),
			"queue: invalid Capacity=-3 (cannot be negative) - use 0 for an unbounded queue",
		},
		{
			"validation on a config key",
			NewValidationError("config", "pool.overflow", "drop", "failed oneof=block reject"),
			"config: invalid pool.overflow=drop (failed oneof=block reject)",
		},
		{
			"operation with context",
			NewOperationError("workerpool", "SubmitWithTimeout", ErrTimeout).WithContext("waited 10ms"),
			"workerpool.SubmitWithTimeout failed: operation timed out (waited 10ms)",
		},
		{
			"operation wrapping a hook panic",
			NewOperationError("workerpool", "OnJobStart", NewPanicError("hook", nil)),
			"workerpool.OnJobStart failed: panic: hook",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClassification(t *testing.T) {
	full := fmt.Errorf("queue: %w", ErrFull)
	timeout := NewOperationError("workerpool", "SubmitWithTimeout", ErrTimeout)
	invalid := NewValidationError("workerpool", "WorkerCount", 0, "must be positive")
	hookPanic := NewOperationError("workerpool", "OnWorkerStart", NewPanicError("boom", []byte("stack")))

	tests := []struct {
		name       string
		err        error
		retryable  bool
		validation bool
		panicked   bool
	}{
		{"nil", nil, false, false, false},
		{"closed", ErrClosed, false, false, false},
		{"wrapped full", full, true, false, false},
		{"submit timeout", timeout, true, false, false},
		{"invalid config", invalid, false, true, false},
		{"nested validation", NewOperationError("config", "Load", invalid), false, true, false},
		{"hook panic", hookPanic, false, false, true},
		{"plain", errors.New("card declined"), false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", got, tt.retryable)
			}
			if got := IsTemporary(tt.err); got != tt.retryable {
				t.Errorf("IsTemporary = %v, want %v", got, tt.retryable)
			}
			if got := IsValidationError(tt.err); got != tt.validation {
				t.Errorf("IsValidationError = %v, want %v", got, tt.validation)
			}
			if got := IsPanic(tt.err); got != tt.panicked {
				t.Errorf("IsPanic = %v, want %v", got, tt.panicked)
			}
		})
	}

	if !errors.Is(invalid, ErrInvalidConfiguration) {
		t.Error("ValidationError should unwrap to ErrInvalidConfiguration")
	}
}

func TestPanicError(t *testing.T) {
	perr := NewPanicError("boom", []byte("goroutine 1 [running]"))
	if got, want := perr.Error(), "panic: boom"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if perr.Unwrap() != nil {
		t.Error("Unwrap() should be nil for non-error values")
	}

	cause := errors.New("assignment to entry in nil map")
	if !errors.Is(NewPanicError(cause, nil), cause) {
		t.Error("PanicError should unwrap to a recovered error value")
	}
}
