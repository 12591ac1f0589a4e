// Package validation provides common validation utilities for the dispatch library.
package validation

import (
	"fmt"
	"reflect"
	"time"

	dserrors "github.com/vnykmshr/dispatch/pkg/common/errors"
)

// ValidatePositive validates that an integer value is positive (> 0).
// Returns a ValidationError if the value is not positive.
func ValidatePositive(module, field string, value int) error {
	if value <= 0 {
		return dserrors.NewValidationError(module, field, value, "must be positive").
			WithHint("value must be greater than 0")
	}
	return nil
}

// ValidateNonNegative validates that an integer value is non-negative (>= 0).
// Returns a ValidationError if the value is negative.
func ValidateNonNegative(module, field string, value int) error {
	if value < 0 {
		return dserrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 or a positive value")
	}
	return nil
}

// ValidateNonNegativeDuration validates that a duration is not negative.
func ValidateNonNegativeDuration(module, field string, value time.Duration) error {
	if value < 0 {
		return dserrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 to disable")
	}
	return nil
}

// ValidateNotNil validates that an interface value is not nil, including a
// typed nil func, pointer, map, slice, channel or interface held in it.
// Returns a ValidationError if the value is nil.
func ValidateNotNil(module, field string, value interface{}) error {
	if isNil(value) {
		return dserrors.NewValidationError(module, field, nil, "cannot be nil").
			WithHint("provide a valid " + field)
	}
	return nil
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	switch v := reflect.ValueOf(value); v.Kind() {
	case reflect.Func, reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

// ValidateNotEmpty validates that a string value is not empty.
// Returns a ValidationError if the string is empty.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return dserrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}

// ValidateMaxLength validates that a string is at most max bytes long.
func ValidateMaxLength(module, field string, value string, max int) error {
	if len(value) > max {
		return dserrors.NewValidationError(module, field, len(value), "too long").
			WithHint(fmt.Sprintf("use at most %d characters", max))
	}
	return nil
}
