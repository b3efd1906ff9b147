package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation error")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTimeout           = errors.New("timeout")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s: %s", resource, message),
	}
}

// Unauthorized returns an AppError for failed authentication.
//
// The message is deliberately the same for "no such account" and "wrong
// password" so responses cannot be used to enumerate registered emails.
// Internally the two are still distinguishable by wrapping context.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// InsufficientFunds reports a debit that would take a balance below zero.
// HTTP handlers map this to 400 — it is a business-rule rejection, not a
// server failure, and is never retried.
func InsufficientFunds(cost, balance int) *AppError {
	return &AppError{
		Err:     ErrInsufficientFunds,
		Message: fmt.Sprintf("this action costs %d saisen but the balance is %d", cost, balance),
	}
}

// Timeout wraps a backing-store operation that exceeded its deadline.
// Callers may retry with backoff; handlers map it to 500.
func Timeout(operation string, err error) *AppError {
	return &AppError{
		Err:     errors.Join(ErrTimeout, err),
		Message: fmt.Sprintf("%s timed out", operation),
	}
}
