// Package errors provides typed error values for the ride engine.
package errors

import (
	"errors"
	"fmt"
)

// Standard error codes.
const (
	CodeInternal           = "INTERNAL_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeValidation         = "VALIDATION_ERROR"
	CodeInvalidGeometry    = "INVALID_GEOMETRY"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNoFareConfigured   = "NO_FARE_CONFIGURED"
	CodeOutOfServiceArea   = "OUT_OF_SERVICE_AREA"
	CodeNoDriversAvailable = "NO_DRIVERS_AVAILABLE"
	CodeAlreadyAssigned    = "ALREADY_ASSIGNED"
	CodeRateLimited        = "RATE_LIMITED"
)

// AppError represents an engine error with code and message.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches another error by code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an error with an AppError.
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error constructors.

// Internal creates an internal error.
func Internal(message string) *AppError {
	return New(CodeInternal, message)
}

// InternalWrap wraps an error as an internal error.
func InternalWrap(err error, message string) *AppError {
	return Wrap(err, CodeInternal, message)
}

// NotFound creates a not found error.
func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// Conflict creates a conflict error.
func Conflict(message string) *AppError {
	return New(CodeConflict, message)
}

// Validation creates a validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message)
}

// ValidationWithDetails creates a validation error with field details.
func ValidationWithDetails(message string, details map[string]string) *AppError {
	return New(CodeValidation, message).WithDetails(details)
}

// InvalidGeometry rejects a degenerate zone shape at creation time. The zone
// is refused outright, never silently coerced into something drawable.
func InvalidGeometry(message string) *AppError {
	return New(CodeInvalidGeometry, message)
}

// InvalidInput rejects negative or non-finite trip parameters before any
// computation runs.
func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

// NoFareConfigured reports a missing fare rule for a booking/vehicle pair.
// Computation never substitutes defaults for missing configuration.
func NoFareConfigured(bookingType, vehicleClass string) *AppError {
	return New(CodeNoFareConfigured,
		fmt.Sprintf("no fare rule configured for %s/%s", bookingType, vehicleClass))
}

// OutOfServiceArea reports a pickup outside every active zone. Terminal for
// the request; the caller must not retry.
func OutOfServiceArea(message string) *AppError {
	if message == "" {
		message = "pickup point is outside the service area"
	}
	return New(CodeOutOfServiceArea, message)
}

// NoDriversAvailable reports an empty or exhausted candidate list. Transient;
// the caller may retry with backoff or a wider radius.
func NoDriversAvailable(message string) *AppError {
	if message == "" {
		message = "no eligible drivers available"
	}
	return New(CodeNoDriversAvailable, message)
}

// AlreadyAssigned reports a lost claim race for a driver.
func AlreadyAssigned(driverID string) *AppError {
	return New(CodeAlreadyAssigned, fmt.Sprintf("driver %s already holds an active ride", driverID))
}

// RateLimited reports that a client exceeded the request budget.
func RateLimited() *AppError {
	return New(CodeRateLimited, "rate limit exceeded, retry later")
}

// Predicates.

// IsNotFound checks if the error is a not found error.
func IsNotFound(err error) bool {
	return Code(err) == CodeNotFound
}

// IsConflict checks if the error is a conflict error.
func IsConflict(err error) bool {
	return Code(err) == CodeConflict
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return Code(err) == CodeValidation
}

// IsInvalidGeometry checks if the error is an invalid geometry error.
func IsInvalidGeometry(err error) bool {
	return Code(err) == CodeInvalidGeometry
}

// IsInvalidInput checks if the error is an invalid input error.
func IsInvalidInput(err error) bool {
	return Code(err) == CodeInvalidInput
}

// IsNoFareConfigured checks if the error is a missing fare rule error.
func IsNoFareConfigured(err error) bool {
	return Code(err) == CodeNoFareConfigured
}

// IsOutOfServiceArea checks if the error is an out of service area error.
func IsOutOfServiceArea(err error) bool {
	return Code(err) == CodeOutOfServiceArea
}

// IsNoDriversAvailable checks if the error is a no drivers available error.
func IsNoDriversAvailable(err error) bool {
	return Code(err) == CodeNoDriversAvailable
}

// IsAlreadyAssigned checks if the error is a claim race error.
func IsAlreadyAssigned(err error) bool {
	return Code(err) == CodeAlreadyAssigned
}

// IsRateLimited checks if the error is a rate limit error.
func IsRateLimited(err error) bool {
	return Code(err) == CodeRateLimited
}

// IsRetryable reports whether the calling layer may retry the operation.
// Claim races are retried internally against the next candidate; empty
// rosters are retryable with backoff. Everything else is terminal for the
// request that produced it.
func IsRetryable(err error) bool {
	switch Code(err) {
	case CodeNoDriversAvailable, CodeAlreadyAssigned:
		return true
	}
	return false
}

// Code returns the error code or empty string.
func Code(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
