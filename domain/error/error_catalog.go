package error

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode string

// Error codes for different categories
const (
	// Authentication Errors (1xxx)
	ErrCodeInvalidCredentials     ErrorCode = "AUTH_1001"
	ErrCodeUserNotFound           ErrorCode = "AUTH_1002"
	ErrCodeInvalidToken           ErrorCode = "AUTH_1003"
	ErrCodeTokenExpired           ErrorCode = "AUTH_1004"
	ErrCodeTokenRevoked           ErrorCode = "AUTH_1005"
	ErrCodeInvalidRefreshToken    ErrorCode = "AUTH_1006"
	ErrCodeInvalidResetToken      ErrorCode = "AUTH_1007"
	ErrCodeSessionSuperseded      ErrorCode = "AUTH_1008"
	ErrCodeAuthenticationRequired ErrorCode = "AUTH_1009"
	ErrCodeForbidden              ErrorCode = "AUTH_1010"

	// Validation Errors (2xxx)
	ErrCodeInvalidEmail    ErrorCode = "VALID_2001"
	ErrCodeInvalidPassword ErrorCode = "VALID_2002"
	ErrCodeMissingField    ErrorCode = "VALID_2003"
	ErrCodeInvalidRequest  ErrorCode = "VALID_2005"

	// Conflict Errors (25xx)
	ErrCodeAccountExists ErrorCode = "CONFLICT_2501"

	// Rate Limiting Errors (3xxx)
	ErrCodeRateLimitExceeded ErrorCode = "RATE_3001"
	ErrCodeTooManyAttempts   ErrorCode = "RATE_3004"

	// Database Errors (5xxx)
	ErrCodeDatabaseError       ErrorCode = "DB_5001"
	ErrCodeUserCreationFailed  ErrorCode = "DB_5002"
	ErrCodeTokenCreationFailed ErrorCode = "DB_5003"

	// Server Errors (6xxx)
	ErrCodeInternalServerError ErrorCode = "SERVER_6001"
)

var statusByCode = map[ErrorCode]int{
	ErrCodeInvalidCredentials:     http.StatusUnauthorized,
	ErrCodeUserNotFound:           http.StatusNotFound,
	ErrCodeInvalidToken:           http.StatusUnauthorized,
	ErrCodeTokenExpired:           http.StatusUnauthorized,
	ErrCodeTokenRevoked:           http.StatusUnauthorized,
	ErrCodeInvalidRefreshToken:    http.StatusUnauthorized,
	ErrCodeInvalidResetToken:      http.StatusBadRequest,
	ErrCodeSessionSuperseded:      http.StatusConflict,
	ErrCodeAuthenticationRequired: http.StatusUnauthorized,
	ErrCodeForbidden:              http.StatusForbidden,

	ErrCodeInvalidEmail:    http.StatusBadRequest,
	ErrCodeInvalidPassword: http.StatusBadRequest,
	ErrCodeMissingField:    http.StatusBadRequest,
	ErrCodeInvalidRequest:  http.StatusBadRequest,

	ErrCodeAccountExists: http.StatusConflict,

	ErrCodeRateLimitExceeded: http.StatusTooManyRequests,
	ErrCodeTooManyAttempts:   http.StatusTooManyRequests,

	ErrCodeDatabaseError:       http.StatusServiceUnavailable,
	ErrCodeUserCreationFailed:  http.StatusServiceUnavailable,
	ErrCodeTokenCreationFailed: http.StatusServiceUnavailable,

	ErrCodeInternalServerError: http.StatusInternalServerError,
}

// AppError represents a structured application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches any AppError carrying the same code, so callers can compare
// against the sentinel constructors with errors.Is.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error wrapping cause.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

// HTTPStatus returns the status code the error maps to.
func (e *AppError) HTTPStatus() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string, details string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// Authentication errors
func ErrInvalidCredentials(details string) *AppError {
	return NewAppError(ErrCodeInvalidCredentials, "Invalid credentials", details, nil)
}

func ErrUserNotFound(userID string) *AppError {
	return NewAppError(ErrCodeUserNotFound, "User not found", fmt.Sprintf("User ID: %s", userID), nil)
}

func ErrInvalidToken(details string) *AppError {
	return NewAppError(ErrCodeInvalidToken, "Invalid token", details, nil)
}

func ErrTokenExpired(details string) *AppError {
	return NewAppError(ErrCodeTokenExpired, "Token has expired", details, nil)
}

func ErrTokenRevoked(details string) *AppError {
	return NewAppError(ErrCodeTokenRevoked, "Token has been revoked", details, nil)
}

func ErrInvalidRefreshToken(details string) *AppError {
	return NewAppError(ErrCodeInvalidRefreshToken, "Invalid or expired refresh token", details, nil)
}

func ErrInvalidResetToken(details string) *AppError {
	return NewAppError(ErrCodeInvalidResetToken, "Invalid or expired token", details, nil)
}

func ErrSessionSuperseded(details string) *AppError {
	return NewAppError(ErrCodeSessionSuperseded, "Session was replaced by a newer login", details, nil)
}

func ErrAuthenticationRequired() *AppError {
	return NewAppError(ErrCodeAuthenticationRequired, "Authentication required", "", nil)
}

func ErrForbidden(details string) *AppError {
	return NewAppError(ErrCodeForbidden, "Insufficient permissions", details, nil)
}

// Validation errors
func ErrInvalidEmail(email string) *AppError {
	return NewAppError(ErrCodeInvalidEmail, "Invalid email format", fmt.Sprintf("Email: %s", email), nil)
}

func ErrInvalidPassword(details string) *AppError {
	return NewAppError(ErrCodeInvalidPassword, "Invalid password", details, nil)
}

func ErrMissingField(field string) *AppError {
	return NewAppError(ErrCodeMissingField, "Missing required field", fmt.Sprintf("Field: %s", field), nil)
}

func ErrInvalidRequest(details string) *AppError {
	return NewAppError(ErrCodeInvalidRequest, "Invalid request", details, nil)
}

func ErrAccountExists(email string) *AppError {
	return NewAppError(ErrCodeAccountExists, "Account already exists", fmt.Sprintf("Email: %s", email), nil)
}

// Rate limiting errors
func ErrRateLimitExceeded(attempts int, window string) *AppError {
	return NewAppError(ErrCodeRateLimitExceeded, "Too many requests", fmt.Sprintf("Attempts: %d, Window: %s", attempts, window), nil)
}

func ErrTooManyAttempts(identifier string, duration string) *AppError {
	return NewAppError(ErrCodeTooManyAttempts, "Too many failed attempts", fmt.Sprintf("Identifier: %s, Duration: %s", identifier, duration), nil)
}

// Database errors
func ErrDatabaseError(operation string, cause error) *AppError {
	return NewAppError(ErrCodeDatabaseError, "Database operation failed", fmt.Sprintf("Operation: %s", operation), cause)
}

func ErrUserCreationFailed(cause error) *AppError {
	return NewAppError(ErrCodeUserCreationFailed, "Failed to create user", "", cause)
}

func ErrTokenCreationFailed(cause error) *AppError {
	return NewAppError(ErrCodeTokenCreationFailed, "Failed to create token", "", cause)
}

// Server errors
func ErrInternalServerError(details string, cause error) *AppError {
	return NewAppError(ErrCodeInternalServerError, "Internal server error", details, cause)
}

// GetHTTPStatusCode maps any error to an HTTP status. Errors that are not an
// AppError are treated as internal failures.
func GetHTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// AsAppError returns err as an AppError, wrapping unknown errors as internal.
func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServerError("", err)
}
