package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeConflict     ErrorCode = "CONFLICT"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation   ErrorCode = "VALIDATION_ERROR"
	ErrCodeUpstream     ErrorCode = "UPSTREAM_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Fields     map[string][]string
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Validation builds a 400 carrying per-field messages.
func Validation(message string, fields map[string][]string) *AppError {
	e := New(ErrCodeValidation, message)
	e.Fields = fields
	return e
}

// Upstream wraps a failed call to an external provider (Stripe). The
// provider's message is kept because clients show it to the user.
func Upstream(err error) *AppError {
	return Wrap(err, ErrCodeUpstream, err.Error())
}

func BadRequest(message string) *AppError { return New(ErrCodeBadRequest, message) }
func Forbidden(message string) *AppError  { return New(ErrCodeForbidden, message) }
func NotFound(message string) *AppError   { return New(ErrCodeNotFound, message) }
func Conflict(message string) *AppError   { return New(ErrCodeConflict, message) }

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict:
		return http.StatusConflict
	case ErrCodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

func is(err error, code ErrorCode) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}

func IsNotFound(err error) bool   { return is(err, ErrCodeNotFound) }
func IsForbidden(err error) bool  { return is(err, ErrCodeForbidden) }
func IsValidation(err error) bool { return is(err, ErrCodeValidation) || is(err, ErrCodeBadRequest) }
func IsUpstream(err error) bool   { return is(err, ErrCodeUpstream) }

var (
	ErrUnauthorized       = New(ErrCodeUnauthorized, "authentication required")
	ErrForbidden          = New(ErrCodeForbidden, "you do not have permission to perform this action")
	ErrInvalidCredentials = New(ErrCodeUnauthorized, "invalid email or password")
	ErrAgreementNotFound  = New(ErrCodeNotFound, "agreement not found")
	ErrInvoiceNotFound    = New(ErrCodeNotFound, "invoice not found")
	ErrMilestoneNotFound  = New(ErrCodeNotFound, "milestone not found")
	ErrDisputeNotFound    = New(ErrCodeNotFound, "dispute not found")
)
