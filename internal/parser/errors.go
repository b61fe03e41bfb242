package parser

import (
	"errors"
	"fmt"
)

// Sentinel errors for sample and caps translation.
var (
	ErrNoSample          = errors.New("parser: nil sample")
	ErrNoCaps            = errors.New("parser: sample has no caps")
	ErrMissingField      = errors.New("parser: missing field")
	ErrInvalidField      = errors.New("parser: invalid field")
	ErrUnsupportedFormat = errors.New("parser: unsupported raw audio format")
)

// FieldError records which caps or protection field could not be used.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("parser: field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func missing(field string) error { return &FieldError{Field: field, Err: ErrMissingField} }

func invalid(field string) error { return &FieldError{Field: field, Err: ErrInvalidField} }
