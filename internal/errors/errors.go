package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/scenario-simulator/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryValidation represents rejected trade or request parameters (4xx)
	CategoryValidation ErrorCategory = "validation"
	// CategoryRange represents requests outside the scenario calendar
	CategoryRange ErrorCategory = "range"
	// CategoryState represents operations not allowed in the current simulation state
	CategoryState ErrorCategory = "state"
	// CategoryFormat represents malformed history documents
	CategoryFormat ErrorCategory = "format"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryLoad represents series that could not be loaded
	CategoryLoad ErrorCategory = "load"
	// CategoryStorage represents database, cache and file errors
	CategoryStorage ErrorCategory = "storage"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
)

// Error codes
const (
	CodeLoadError         = "LOAD_ERROR"
	CodeOutOfRange        = "OUT_OF_RANGE"
	CodeDateNotFound      = "DATE_NOT_FOUND"
	CodeInvalidTarget     = "INVALID_TARGET"
	CodeNotHeld           = "NOT_HELD"
	CodeInvalidAmount     = "INVALID_AMOUNT"
	CodeInsufficientFunds = "INSUFFICIENT_FUNDS"
	CodeNoQuote           = "NO_QUOTE"
	CodeAlreadyEnded      = "ALREADY_ENDED"
	CodeInvalidFormat     = "INVALID_FORMAT"
	CodeNoData            = "NO_DATA"
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidParameter  = "INVALID_PARAMETER"
	CodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	CodeStorageError      = "STORAGE_ERROR"
	CodeInternalError     = "INTERNAL_ERROR"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Scenario calendar errors

// NewOutOfRangeError creates an error for a date or offset outside the timeline
func NewOutOfRangeError(requested string, first, last types.Date) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRange,
		StatusCode: http.StatusBadRequest,
		Code:       CodeOutOfRange,
		Message:    fmt.Sprintf("%s is outside the simulation range %s to %s", requested, first, last),
		Details: map[string]interface{}{
			"requested": requested,
			"first":     first.String(),
			"last":      last.String(),
		},
	}
}

// NewDateNotFoundError creates an error for a date that is not a trading day
func NewDateNotFoundError(date types.Date) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRange,
		StatusCode: http.StatusNotFound,
		Code:       CodeDateNotFound,
		Message:    fmt.Sprintf("date %s is not a trading day of this scenario", date),
		Details: map[string]interface{}{
			"date": date.String(),
		},
	}
}

// Trade validation errors

// NewInvalidTargetError creates an error for a fund that is not tradable
func NewInvalidTargetError(fundCode string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidTarget,
		Message:    fmt.Sprintf("%s is not a tradable fund", fundCode),
		Details: map[string]interface{}{
			"fund_code": fundCode,
		},
	}
}

// NewNotHeldError creates an error for selling a fund with no position
func NewNotHeldError(fundCode string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeNotHeld,
		Message:    fmt.Sprintf("no position in fund %s", fundCode),
		Details: map[string]interface{}{
			"fund_code": fundCode,
		},
	}
}

// NewInvalidAmountError creates an error for a rejected amount, share count or percentage
func NewInvalidAmountError(reason string, details map[string]interface{}) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidAmount,
		Message:    reason,
		Details:    details,
	}
}

// NewInsufficientFundsError creates an error for a purchase larger than available cash
func NewInsufficientFundsError(requested, available string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInsufficientFunds,
		Message:    fmt.Sprintf("insufficient cash: requested %s, available %s", requested, available),
		Details: map[string]interface{}{
			"requested": requested,
			"available": available,
		},
	}
}

// NewNoQuoteError creates an error for a fund without a NAV on the current day
func NewNoQuoteError(fundCode string, date types.Date) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusConflict,
		Code:       CodeNoQuote,
		Message:    fmt.Sprintf("no NAV for fund %s on %s", fundCode, date),
		Details: map[string]interface{}{
			"fund_code": fundCode,
			"date":      date.String(),
		},
	}
}

// Simulation state errors

// NewAlreadyEndedError creates an error for operations after the last trading day
func NewAlreadyEndedError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       CodeAlreadyEnded,
		Message:    "simulation has already ended",
	}
}

// NewNoDataError creates an error for summaries requested before any valuation exists
func NewNoDataError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryState,
		StatusCode: http.StatusConflict,
		Code:       CodeNoData,
		Message:    message,
	}
}

// NewInvalidFormatError creates an error for an unusable history document
func NewInvalidFormatError(reason string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryFormat,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidFormat,
		Message:    fmt.Sprintf("invalid history document: %s", reason),
		Cause:      cause,
	}
}

// Request errors

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidParameter,
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(limit float64, burst int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimited,
		Message:    "rate limit exceeded, please try again later",
		Details: map[string]interface{}{
			"limit": limit,
			"burst": burst,
		},
	}
}

// System errors (5xx)

// NewLoadError creates an error for a series that could not be read
func NewLoadError(series string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryLoad,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeLoadError,
		Message:    fmt.Sprintf("failed to load %s", series),
		Details: map[string]interface{}{
			"series": series,
		},
		Cause: cause,
	}
}

// NewStorageError creates a storage error
func NewStorageError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryStorage,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeStorageError,
		Message:    fmt.Sprintf("storage operation failed: %s", operation),
		Details: map[string]interface{}{
			"operation": operation,
		},
		Cause: cause,
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternalError,
		Message:    message,
		Cause:      cause,
	}
}

// Categorize wraps an arbitrary error into a CategorizedError
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return categorizeServiceError(svcErr)
	}

	return NewInternalError("unexpected error", err)
}

// categorizeServiceError restores the category of a ServiceError from its code
func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	category, status := CategorySystem, http.StatusInternalServerError
	switch err.Code {
	case CodeInvalidTarget, CodeNotHeld, CodeInvalidAmount, CodeInsufficientFunds, CodeInvalidParameter:
		category, status = CategoryValidation, http.StatusBadRequest
	case CodeNoQuote:
		category, status = CategoryValidation, http.StatusConflict
	case CodeOutOfRange:
		category, status = CategoryRange, http.StatusBadRequest
	case CodeDateNotFound:
		category, status = CategoryRange, http.StatusNotFound
	case CodeAlreadyEnded, CodeNoData:
		category, status = CategoryState, http.StatusConflict
	case CodeInvalidFormat:
		category, status = CategoryFormat, http.StatusBadRequest
	case CodeNotFound:
		category, status = CategoryNotFound, http.StatusNotFound
	}

	return &CategorizedError{
		Category:   category,
		StatusCode: status,
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
	}
}

// CodeOf returns the error code carried by err, or "" for nil
func CodeOf(err error) string {
	if catErr := Categorize(err); catErr != nil {
		return catErr.Code
	}
	return ""
}

// Is reports whether err carries the given code
func Is(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// IsSystemError determines if an error is a system error (5xx)
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 500
}
