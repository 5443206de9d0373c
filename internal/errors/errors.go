package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Err     error // underlying error for wrapping
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is and errors.As
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on the domain code so a wrapped error compares equal to its
// sentinel under errors.Is.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with domain error context
func WrapError(domainErr *DomainError, err error) *DomainError {
	return &DomainError{
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Err:     err,
	}
}

// Predefined domain errors
var (
	// User / account errors
	ErrUserNotFound       = NewDomainError("USER_NOT_FOUND", "user not found")
	ErrEmailExists        = NewDomainError("EMAIL_EXISTS", "email already exists")
	ErrInvalidCredentials = NewDomainError("INVALID_CREDENTIALS", "invalid credentials")
	ErrAccountInactive    = NewDomainError("ACCOUNT_INACTIVE", "account is deactivated")
	ErrAccountUnverified  = NewDomainError("ACCOUNT_UNVERIFIED", "account verification required")

	// Token errors. Expired and Revoked are distinguished for logging;
	// handlers may collapse them to a single client message.
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "unauthorized")
	ErrInvalidToken        = NewDomainError("INVALID_TOKEN", "invalid or expired token")
	ErrTokenExpired        = NewDomainError("TOKEN_EXPIRED", "token has expired")
	ErrTokenRevoked        = NewDomainError("TOKEN_REVOKED", "token has been revoked")
	ErrInvalidRefreshToken = NewDomainError("INVALID_REFRESH_TOKEN", "invalid or expired refresh token")
	ErrNoActiveSession     = NewDomainError("NO_ACTIVE_SESSION", "no active session")
	ErrSessionNotFound     = NewDomainError("SESSION_NOT_FOUND", "session not found")

	// Verification errors
	ErrInvalidCode = NewDomainError("INVALID_CODE", "invalid or expired verification code")
	ErrSendFailed  = NewDomainError("SEND_FAILED", "failed to send verification code")

	// Sub-user errors
	ErrSubUserNotFound      = NewDomainError("SUB_USER_NOT_FOUND", "sub-user not found")
	ErrUsernameExists       = NewDomainError("USERNAME_EXISTS", "username already exists for this venue")
	ErrSubUsersAlreadyExist = NewDomainError("SUB_USERS_EXIST", "venue already has sub-users")
	ErrFounderAdmin         = NewDomainError("FOUNDER_ADMIN", "founder admin cannot be modified")
	ErrInsufficientRights   = NewDomainError("INSUFFICIENT_RIGHTS", "insufficient permissions")

	// Validation errors
	ErrInvalidInput      = NewDomainError("INVALID_INPUT", "invalid input")
	ErrPasswordMismatch  = NewDomainError("PASSWORD_MISMATCH", "new password and confirmation do not match")
	ErrIncorrectPassword = NewDomainError("INCORRECT_PASSWORD", "current password is incorrect")

	// System errors
	ErrInternal           = NewDomainError("INTERNAL_ERROR", "internal server error")
	ErrServiceUnavailable = NewDomainError("SERVICE_UNAVAILABLE", "service unavailable")
)

// RateLimitError carries the caller-facing wait duration for resend throttling.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter.Round(time.Second))
}

// NewRateLimitError creates a rate limit error with the remaining wait
func NewRateLimitError(retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{RetryAfter: retryAfter}
}

// IsDomainError checks if an error is a domain error
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}

// GetDomainError extracts the domain error from an error
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// ToHTTPStatus maps domain errors to HTTP status codes
// This should only be used in the handler/presentation layer
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var rateErr *RateLimitError
	if errors.As(err, &rateErr) {
		return http.StatusTooManyRequests
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErrorToHTTPStatus(domainErr)
	}

	// Default to internal server error for unknown errors
	return http.StatusInternalServerError
}

func domainErrorToHTTPStatus(err *DomainError) int {
	switch err.Code {
	// 400 Bad Request
	case "INVALID_INPUT", "PASSWORD_MISMATCH", "INVALID_CODE":
		return http.StatusBadRequest

	// 401 Unauthorized
	case "UNAUTHORIZED", "INVALID_CREDENTIALS", "INVALID_TOKEN",
		"TOKEN_EXPIRED", "TOKEN_REVOKED", "INVALID_REFRESH_TOKEN",
		"INCORRECT_PASSWORD", "NO_ACTIVE_SESSION", "ACCOUNT_INACTIVE",
		"ACCOUNT_UNVERIFIED":
		return http.StatusUnauthorized

	// 403 Forbidden
	case "FOUNDER_ADMIN", "INSUFFICIENT_RIGHTS":
		return http.StatusForbidden

	// 404 Not Found
	case "USER_NOT_FOUND", "SUB_USER_NOT_FOUND", "SESSION_NOT_FOUND":
		return http.StatusNotFound

	// 409 Conflict
	case "EMAIL_EXISTS", "USERNAME_EXISTS", "SUB_USERS_EXIST":
		return http.StatusConflict

	// 502 Bad Gateway
	case "SEND_FAILED":
		return http.StatusBadGateway

	// 503 Service Unavailable
	case "SERVICE_UNAVAILABLE":
		return http.StatusServiceUnavailable

	// 500 Internal Server Error (default)
	default:
		return http.StatusInternalServerError
	}
}

// GetErrorMessage safely extracts error message
func GetErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}

	return err.Error()
}
