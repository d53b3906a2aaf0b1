package model

import (
	"errors"
	"fmt"
)

// ValidationError reports an enum, constraint, or payload-shape violation.
// The store never hides constraint detail; Detail carries the original
// driver or validation message verbatim for diagnostics.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation: %s: %s", e.Field, e.Detail)
	}
	return "validation: " + e.Detail
}

// NewValidationError builds a ValidationError for a named field.
func NewValidationError(field, detail string) *ValidationError {
	return &ValidationError{Field: field, Detail: detail}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
