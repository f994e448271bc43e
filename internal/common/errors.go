// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Per-document errors. Fatal to the document they occur on, never to
	// sibling documents.
	ErrNoTemplateMatched = errors.New("no identification rule matched")
	ErrFieldUnresolved   = errors.New("field exhausted all candidates")

	// Reconciliation errors. Non-fatal; recorded on the document result.
	ErrReconciliationMismatch = errors.New("arithmetic balance check failed")
	ErrContinuityGap          = errors.New("cross-statement continuity gap")

	// Configuration errors. Fatal to the whole batch at load time.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")

	// Storage errors.
	ErrNotFound = errors.New("not found")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
