package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode         `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
	Err     error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// StatusCode maps the error code onto an HTTP status.
func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrNoCurrentTenant:
		return http.StatusUnauthorized
	case ErrForbidden, ErrTenantInactive:
		return http.StatusForbidden
	case ErrRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Slug is the machine readable name sent to API clients.
func (e *AppError) Slug() string {
	switch e.Code {
	case ErrNotFound:
		return "not_found"
	case ErrBadRequest:
		return "bad_request"
	case ErrValidation:
		return "validation_error"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrForbidden:
		return "permission_denied"
	case ErrNoCurrentTenant:
		return "no_company"
	case ErrTenantInactive:
		return "company_inactive"
	case ErrRateLimited:
		return "rate_limited"
	default:
		return "internal_error"
	}
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrNoCurrentTenant
	ErrTenantInactive
	ErrRateLimited
)

// Sentinels for errors.Is checks.
var (
	NotFoundError         = &AppError{Code: ErrNotFound, Message: "not found"}
	PermissionDeniedError = &AppError{Code: ErrForbidden, Message: "permission denied"}
	NoCurrentTenantError  = &AppError{Code: ErrNoCurrentTenant, Message: "no company selected"}
	TenantInactiveError   = &AppError{Code: ErrTenantInactive, Message: "company is inactive"}
	UnauthorizedError     = &AppError{Code: ErrUnauthorized, Message: "unauthorized"}
)

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

// Common errors
func NotFound(resource string, err error) *AppError {
	return NewNotFound(resource, err)
}

func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

// PermissionDenied reports an authenticated user lacking perm.
func PermissionDenied(perm string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: fmt.Sprintf("permission denied: %s", perm),
	}
}

func NoCurrentTenant() *AppError {
	return &AppError{Code: ErrNoCurrentTenant, Message: "no company selected"}
}

func TenantInactive(name string) *AppError {
	return &AppError{Code: ErrTenantInactive, Message: fmt.Sprintf("company %q is inactive", name)}
}

func RateLimited() *AppError {
	return &AppError{Code: ErrRateLimited, Message: "rate limit exceeded"}
}

// Validation carries per-field messages.
func Validation(fields map[string]string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: "validation failed",
		Fields:  fields,
	}
}

// FieldError is shorthand for a single-field validation error.
func FieldError(field, message string) *AppError {
	return Validation(map[string]string{field: message})
}

// As returns the AppError in err's chain, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is forwards to the standard library so callers need a single import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}
