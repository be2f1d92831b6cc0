package gateway

import (
	"errors"
	"fmt"
)

// NetworkError marks a transient failure (connection error, timeout or
// 5xx-class response). The coordinator retries these with backoff.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func NewNetworkError(op string, err error) error {
	return &NetworkError{Op: op, Err: err}
}

// AuthError marks an authentication rejection. The coordinator performs a
// single token-refresh-and-retry before surfacing it as fatal.
type AuthError struct {
	Op      string
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error during %s: %s", e.Op, e.Message)
}

func NewAuthError(op, msg string) error {
	return &AuthError{Op: op, Message: msg}
}

// IsTransient reports whether an error is worth retrying.
func IsTransient(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsAuth reports whether an error is an authentication rejection.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
