// Package apperror defines the error type every ledger operation returns to
// its callers. The API renders it as {code, message, details}.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeInternal = "INTERNAL_ERROR"

	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidQuantity = "INVALID_QUANTITY"

	CodeInsufficientStock = "INSUFFICIENT_STOCK"

	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"

	CodeNotFound = "NOT_FOUND"

	CodeConflict               = "CONFLICT"
	CodeDuplicate              = "DUPLICATE_ENTRY"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeIdempotency            = "IDEMPOTENCY_CONFLICT"
)

var statusByCode = map[string]int{
	CodeInternal:               http.StatusInternalServerError,
	CodeValidation:             http.StatusBadRequest,
	CodeInvalidQuantity:        http.StatusBadRequest,
	CodeInsufficientStock:      http.StatusUnprocessableEntity,
	CodeUnauthorized:           http.StatusUnauthorized,
	CodeForbidden:              http.StatusForbidden,
	CodeNotFound:               http.StatusNotFound,
	CodeConflict:               http.StatusConflict,
	CodeDuplicate:              http.StatusConflict,
	CodeConcurrentModification: http.StatusConflict,
	CodeIdempotency:            http.StatusConflict,
}

// StatusFor maps a code to its HTTP status; unknown codes are 500.
func StatusFor(code string) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus defaults to StatusFor(Code); middleware may override it.
	HTTPStatus int   `json:"-"`
	Err        error `json:"-"`
}

// New creates an error for code with the default status.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: StatusFor(code)}
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Code + ": " + e.Message
	}
	return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
}

func (e *AppError) Unwrap() error { return e.Err }

// Is matches another *AppError by code, so errors.Is(err, New(CodeNotFound, ""))
// works regardless of message or details.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func NewValidation(message string) *AppError {
	return New(CodeValidation, message)
}

// NewInvalidQuantity reports a quantity that is missing, non-numeric or not positive.
func NewInvalidQuantity(value any) *AppError {
	return New(CodeInvalidQuantity, "Quantity must be a positive integer").WithDetail("qty", value)
}

func NewNotFound(entity string, id any) *AppError {
	return New(CodeNotFound, entity+" not found").
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewInsufficientStock is the sale rejection carrying what was asked and what is on hand.
func NewInsufficientStock(itemCode string, requested, available int64) *AppError {
	return New(CodeInsufficientStock, "Insufficient stock").
		WithDetail("item_code", itemCode).
		WithDetail("requested", requested).
		WithDetail("available", available)
}

// NewConcurrentModification signals a lost row-version race; callers may retry.
func NewConcurrentModification(entity string, id any) *AppError {
	return New(CodeConcurrentModification, "Record was modified by another request. Please refresh and try again.").
		WithDetail("entity", entity).
		WithDetail("id", id)
}

// NewInternal hides err from the client; it is only logged.
func NewInternal(err error) *AppError {
	return New(CodeInternal, "Internal server error").WithCause(err)
}

func NewUnauthorized(message string) *AppError {
	return New(CodeUnauthorized, message)
}

func NewForbidden(message string) *AppError {
	return New(CodeForbidden, message)
}

// NewIdempotencyConflict: the key is held by a request that has not finished.
func NewIdempotencyConflict(key string) *AppError {
	return New(CodeIdempotency, "Operation already in progress or completed").WithDetail("idempotency_key", key)
}

// NewIdempotencyMismatch: the key was first used for a different request.
func NewIdempotencyMismatch(key string) *AppError {
	return New(CodeIdempotency, "Idempotency key mismatch").WithDetail("idempotency_key", key)
}

func NewConflict(message string) *AppError {
	return New(CodeConflict, message)
}

func NewDuplicate(entity, field, value string) *AppError {
	return New(CodeDuplicate, fmt.Sprintf("%s with this %s already exists", entity, field)).
		WithDetail("entity", entity).
		WithDetail("field", field).
		WithDetail("value", value)
}

// AsAppError finds the first *AppError in err's chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err's chain carries an AppError with code.
func HasCode(err error, code string) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

func IsConcurrentModification(err error) bool {
	return HasCode(err, CodeConcurrentModification)
}

// Normalize returns err as an AppError, wrapping foreign errors as internal.
func Normalize(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return NewInternal(err)
}
