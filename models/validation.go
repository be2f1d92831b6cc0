package models

import "fmt"

// ValidationError is a field-scoped rejection. It is never retried and is
// always recoverable by user correction.
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult aggregates the outcome of validating a draft.
type ValidationResult struct {
	IsValid bool               `json:"isValid"`
	Errors  []*ValidationError `json:"errors,omitempty"`
}
