package services

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden is returned when the actor is not allowed to perform the
	// operation on an existing resource.
	ErrForbidden = errors.New("forbidden")

	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDeactivated = errors.New("account is deactivated")

	// ErrUnavailable is returned when an optional backend, such as the
	// message queue, is not configured.
	ErrUnavailable = errors.New("service unavailable")
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
