package main

import "fmt"

// The three recoverable error kinds the services return. Handlers translate
// them to HTTP status codes; nothing in the core treats them as fatal.

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

func notFoundErrorf(format string, args ...any) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string { return e.Message }

func permissionErrorf(format string, args ...any) *PermissionError {
	return &PermissionError{Message: fmt.Sprintf(format, args...)}
}
