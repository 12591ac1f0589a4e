package validation

import (
	"testing"
	"time"

	"github.com/vnykmshr/dispatch/pkg/common/errors"
)

func TestValidatePositive(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{"positive value", 10, false},
		{"positive value 1", 1, false},
		{"zero value", 0, true},
		{"negative value", -1, true},
		{"large positive", 1000000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositive("workerpool", "WorkerCount", tt.value)

			if tt.wantError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !errors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidateNonNegative(t *testing.T) {
	tests := []struct {
		name      string
		value     int
		wantError bool
	}{
		{"zero", 0, false},
		{"positive", 5, false},
		{"negative", -1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNonNegative("queue", "Capacity", tt.value)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateNonNegative(%d) error = %v, wantError %v", tt.value, err, tt.wantError)
			}
		})
	}
}

func TestValidateNonNegativeDuration(t *testing.T) {
	if err := ValidateNonNegativeDuration("workerpool", "JobTimeout", 0); err != nil {
		t.Errorf("zero duration should be valid, got %v", err)
	}
	if err := ValidateNonNegativeDuration("workerpool", "JobTimeout", time.Second); err != nil {
		t.Errorf("positive duration should be valid, got %v", err)
	}
	if err := ValidateNonNegativeDuration("workerpool", "JobTimeout", -time.Millisecond); err == nil {
		t.Error("negative duration should be rejected")
	}
}

func TestValidateNotNil(t *testing.T) {
	if err := ValidateNotNil("workerpool", "job", nil); err == nil {
		t.Error("expected error for nil")
	}
	if err := ValidateNotNil("workerpool", "job", struct{}{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	type jobFunc func() error
	var nilFunc jobFunc
	var nilPtr *struct{}
	for name, v := range map[string]interface{}{
		"typed nil func":  nilFunc,
		"typed nil ptr":   nilPtr,
		"typed nil map":   map[string]int(nil),
		"typed nil slice": []int(nil),
	} {
		if err := ValidateNotNil("workerpool", "job", v); !errors.IsValidationError(err) {
			t.Errorf("%s: expected ValidationError, got %v", name, err)
		}
	}
	if err := ValidateNotNil("workerpool", "job", jobFunc(func() error { return nil })); err != nil {
		t.Errorf("unexpected error for non-nil func: %v", err)
	}
}

func TestValidateNotEmpty(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{"non-empty string", "value", false},
		{"whitespace", " ", false}, // Whitespace is not empty
		{"empty string", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNotEmpty("eventbus", "topic", tt.value)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateNotEmpty(%q) error = %v, wantError %v", tt.value, err, tt.wantError)
			}
		})
	}
}

func TestValidateMaxLength(t *testing.T) {
	if err := ValidateMaxLength("scheduler", "id", "abc", 3); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := ValidateMaxLength("scheduler", "id", "abcd", 3)
	if err == nil {
		t.Fatal("expected error")
	}
	verr, ok := err.(*errors.ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if verr.Hint != "use at most 3 characters" {
		t.Errorf("Hint = %q", verr.Hint)
	}
}

func TestValidationErrorDetails(t *testing.T) {
	err := ValidatePositive("workerpool", "WorkerCount", -5)
	if err == nil {
		t.Fatal("expected error")
	}

	valErr, ok := err.(*errors.ValidationError)
	if !ok {
		t.Fatal("could not cast to ValidationError")
	}

	if valErr.Module != "workerpool" {
		t.Errorf("Module = %q, want %q", valErr.Module, "workerpool")
	}
	if valErr.Field != "WorkerCount" {
		t.Errorf("Field = %q, want %q", valErr.Field, "WorkerCount")
	}
	if valErr.Value != -5 {
		t.Errorf("Value = %v, want %v", valErr.Value, -5)
	}
	if valErr.Hint != "value must be greater than 0" {
		t.Errorf("Hint = %q, want %q", valErr.Hint, "value must be greater than 0")
	}
}

func TestValidationErrorWrapping(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{"ValidatePositive", ValidatePositive("test", "field", -1)},
		{"ValidateNonNegative", ValidateNonNegative("test", "field", -1)},
		{"ValidateNonNegativeDuration", ValidateNonNegativeDuration("test", "field", -1)},
		{"ValidateNotNil", ValidateNotNil("test", "field", nil)},
		{"ValidateNotEmpty", ValidateNotEmpty("test", "field", "")},
		{"ValidateMaxLength", ValidateMaxLength("test", "field", "xx", 1)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err == nil {
				t.Fatal("expected error")
			}
			if !errors.IsValidationError(tc.err) {
				t.Error("error should be a ValidationError")
			}
			if e, ok := tc.err.(*errors.ValidationError); ok {
				if wrapped := e.Unwrap(); wrapped != errors.ErrInvalidConfiguration {
					t.Errorf("should unwrap to ErrInvalidConfiguration, got %v", wrapped)
				}
			}
		})
	}
}
