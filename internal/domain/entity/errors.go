package entity

import (
	"errors"
	"fmt"
)

// Error kinds. Every error leaving the application layer matches exactly one
// of these with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrNotFound      = errors.New("not found")
	ErrStateConflict = errors.New("state conflict")
	ErrStorage       = errors.New("storage failure")
)

// ErrStaleClaim is returned by the repository when a conditional claim
// update loses against a concurrent writer.
var ErrStaleClaim = errors.New("claim was modified concurrently")

// Error carries a kind, a user-facing message and an optional cause.
type Error struct {
	Kind    error
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewValidationError reports a violated input rule. Field may be empty.
func NewValidationError(field, message string) *Error {
	return &Error{Kind: ErrValidation, Field: field, Message: message}
}

// NewNotFoundError reports an absent claim, document or lecturer.
func NewNotFoundError(message string) *Error {
	return &Error{Kind: ErrNotFound, Message: message}
}

// NewStateConflictError reports a violated transition guard.
func NewStateConflictError(message string) *Error {
	return &Error{Kind: ErrStateConflict, Message: message}
}

// NewStorageError reports an I/O or repository failure.
func NewStorageError(message string, cause error) *Error {
	return &Error{Kind: ErrStorage, Message: message, Err: cause}
}

// KindOf returns the kind sentinel err matches, defaulting to ErrStorage
// for anything unclassified.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrStateConflict, ErrStorage} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrStorage
}
