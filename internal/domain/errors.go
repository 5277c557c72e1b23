package domain

import (
	"errors"
	"fmt"
)

// ErrorCode represents a machine-readable error code
type ErrorCode string

const (
	// Subscription errors (SUB_*)
	ErrorCodeAlreadyActive         ErrorCode = "SUB_ALREADY_ACTIVE"
	ErrorCodeSubscriptionNotFound  ErrorCode = "SUB_NOT_FOUND"
	ErrorCodeSubscriptionNotActive ErrorCode = "SUB_NOT_ACTIVE"

	// Payment errors (PAYMENT_*)
	ErrorCodePaymentNotFound     ErrorCode = "PAYMENT_NOT_FOUND"
	ErrorCodePaymentInvalidState ErrorCode = "PAYMENT_INVALID_STATE"

	// Provider errors (PROVIDER_*)
	ErrorCodeProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrorCodeRefundFailed        ErrorCode = "PROVIDER_REFUND_DECLINED"

	// Seller errors (SELLER_*)
	ErrorCodeSellerNotFound ErrorCode = "SELLER_NOT_FOUND"

	// Validation errors (VALIDATION_*)
	ErrorCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Concurrency errors (CONFLICT_*)
	ErrorCodeVersionConflict ErrorCode = "CONFLICT_VERSION"

	// Internal errors (INTERNAL_*)
	ErrorCodeInternalError ErrorCode = "INTERNAL_ERROR"
	ErrorCodeDatabaseError ErrorCode = "INTERNAL_DATABASE_ERROR"
)

// DomainError represents a structured domain error with error code and context
type DomainError struct {
	Err     error
	Details map[string]interface{}
	Code    ErrorCode
	Message string
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// WithDetail adds a detail field to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(code ErrorCode, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError wraps an existing error with a domain error code
func WrapError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Err:     err,
	}
}

// IsDomainError checks if an error is a DomainError with the given code
func IsDomainError(err error, code ErrorCode) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error, returns empty string if not a DomainError
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsNotFoundError checks if an error represents a "not found" condition
func IsNotFoundError(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeSubscriptionNotFound ||
		code == ErrorCodePaymentNotFound ||
		code == ErrorCodeSellerNotFound
}

// IsRetryable reports whether the caller may safely retry the operation.
// Provider timeouts are an unknown outcome, never a confirmed failure.
func IsRetryable(err error) bool {
	code := GetErrorCode(err)
	return code == ErrorCodeProviderUnavailable || code == ErrorCodeVersionConflict
}

// Structured error instances
var (
	ErrAlreadyActive         = NewDomainError(ErrorCodeAlreadyActive, "seller already has an active premium subscription")
	ErrSubscriptionNotFound  = NewDomainError(ErrorCodeSubscriptionNotFound, "subscription not found")
	ErrSubscriptionNotActive = NewDomainError(ErrorCodeSubscriptionNotActive, "subscription is not active")

	ErrPaymentNotFound = NewDomainError(ErrorCodePaymentNotFound, "payment not found")

	ErrProviderUnavailable = NewDomainError(ErrorCodeProviderUnavailable, "payment provider unavailable, try again")
	ErrRefundFailed        = NewDomainError(ErrorCodeRefundFailed, "refund declined by payment provider")

	ErrSellerNotFound = NewDomainError(ErrorCodeSellerNotFound, "seller not found")

	ErrValidationFailed = NewDomainError(ErrorCodeValidationFailed, "validation failed")

	ErrVersionConflict = NewDomainError(ErrorCodeVersionConflict, "row was modified concurrently")

	ErrInternalError = NewDomainError(ErrorCodeInternalError, "internal server error")
	ErrDatabaseError = NewDomainError(ErrorCodeDatabaseError, "database error")
)
