package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an id does not resolve to a record.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidTransition is returned when reviewing a violation that is no longer pending.
	ErrInvalidTransition = errors.New("violation is not pending review")
)

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ExternalServiceError wraps a failure of a collaborator we do not control
// (chain RPC, the backend API seen from a client, object storage).
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// PartialReviewError is returned when a review reached only one of the two stores.
type PartialReviewError struct {
	BackendApplied bool
	ChainApplied   bool
	Err            error
}

func (e *PartialReviewError) Error() string {
	return fmt.Sprintf("review applied partially (backend=%t, chain=%t): %v", e.BackendApplied, e.ChainApplied, e.Err)
}

func (e *PartialReviewError) Unwrap() error {
	return e.Err
}
