// Package errors defines the application error model. Every error that
// reaches a handler is an AppError carrying the machine-readable code and
// HTTP status the API contract promises.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes surfaced in API responses.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "RESOURCE_NOT_FOUND"
	CodeAlreadyExists      = "ALREADY_EXISTS"
	CodeConflict           = "CONFLICT"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeBadRequest         = "BAD_REQUEST"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"

	// Stock ledger codes.
	CodeInsufficientStock       = "INSUFFICIENT_STOCK"
	CodeInsufficientAvailable   = "INSUFFICIENT_AVAILABLE"
	CodeReservedExceedsQuantity = "RESERVED_EXCEEDS_QUANTITY"
	CodeReservationNotActive    = "RESERVATION_NOT_ACTIVE"
	CodeVersionConflict         = "VERSION_CONFLICT"
)

// AppError couples an error code with its HTTP status and optional detail
// fields. The wrapped cause stays out of the JSON body.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`

	HTTPStatus int   `json:"-"`
	Err        error `json:"-"`
}

func (e *AppError) Error() string {
	msg := e.Code + ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetails replaces the detail map.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithDetail sets one detail field.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = map[string]string{}
	}
	e.Details[key] = value
	return e
}

// Wrap attaches the underlying cause.
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// NewAppError creates an AppError with an explicit HTTP status.
func NewAppError(code, message string, httpStatus int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: httpStatus}
}

func conflict(code, message string) *AppError {
	return NewAppError(code, message, http.StatusConflict)
}

// ErrValidation creates a 400 validation error.
func ErrValidation(message string) *AppError {
	return NewAppError(CodeValidationError, message, http.StatusBadRequest)
}

// ErrValidationWithFields creates a 400 validation error with per-field
// messages in the details.
func ErrValidationWithFields(message string, fields map[string]string) *AppError {
	return ErrValidation(message).WithDetails(fields)
}

// ErrBadRequest creates a 400 error for malformed requests.
func ErrBadRequest(message string) *AppError {
	return NewAppError(CodeBadRequest, message, http.StatusBadRequest)
}

// ErrNotFound creates a 404 error for a missing resource.
func ErrNotFound(resource string) *AppError {
	return NewAppError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
}

// ErrAlreadyExists creates a 409 error for a duplicate resource.
func ErrAlreadyExists(resource, id string) *AppError {
	return conflict(CodeAlreadyExists, fmt.Sprintf("%s already exists", resource)).WithDetail("id", id)
}

// ErrConflict creates a generic 409 error.
func ErrConflict(message string) *AppError {
	return conflict(CodeConflict, message)
}

// ErrInsufficientStock rejects a mutation that would drive quantity negative.
func ErrInsufficientStock(message string) *AppError {
	return conflict(CodeInsufficientStock, message)
}

// ErrInsufficientAvailable rejects a reservation exceeding available stock.
func ErrInsufficientAvailable(message string) *AppError {
	return conflict(CodeInsufficientAvailable, message)
}

// ErrReservedExceedsQuantity rejects a mutation that would leave quantity
// below the reserved total.
func ErrReservedExceedsQuantity(message string) *AppError {
	return conflict(CodeReservedExceedsQuantity, message)
}

// ErrVersionConflict reports optimistic concurrency retries running out.
func ErrVersionConflict(resource string) *AppError {
	return conflict(CodeVersionConflict, fmt.Sprintf("concurrent update on %s, retry the request", resource))
}

// ErrInternal creates a 500 error, hiding the cause from the response body.
func ErrInternal(message string) *AppError {
	if message == "" {
		message = "an unexpected error occurred"
	}
	return NewAppError(CodeInternalError, message, http.StatusInternalServerError)
}

// ErrServiceUnavailable creates a 503 error for a failing downstream.
func ErrServiceUnavailable(service string) *AppError {
	return NewAppError(CodeServiceUnavailable, fmt.Sprintf("%s is temporarily unavailable", service), http.StatusServiceUnavailable)
}

// AsAppError unwraps err into an AppError when one is in the chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// FromError coerces any error into an AppError, defaulting to a wrapped
// internal error.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	if appErr, ok := AsAppError(err); ok {
		return appErr
	}
	return ErrInternal("").Wrap(err)
}
