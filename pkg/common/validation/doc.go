// Package validation provides common validation utilities for configuration
// parameters across the dispatch library.
//
// Every helper returns a *errors.ValidationError that wraps
// errors.ErrInvalidConfiguration, so constructors can surface consistent
// messages and callers can test for them with errors.Is.
package validation
