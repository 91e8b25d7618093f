package account

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the category of an account error
type ErrorType int

const (
	// ErrTypeValidation indicates missing or malformed input
	ErrTypeValidation ErrorType = iota
	// ErrTypeAuth indicates bad credentials or a missing session
	ErrTypeAuth
	// ErrTypeConflict indicates a duplicate username or email
	ErrTypeConflict
	// ErrTypeNotFound indicates an unknown user or device
	ErrTypeNotFound
	// ErrTypeInternal indicates an unexpected failure
	ErrTypeInternal
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeConflict:
		return "Conflict"
	case ErrTypeNotFound:
		return "Not Found"
	case ErrTypeInternal:
		return "Internal Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// Messages shown to users.
const (
	MsgUsernameTaken      = "Username already exists"
	MsgEmailTaken         = "Email already in use"
	MsgInvalidCredentials = "Invalid username or password"
	MsgUserNotFound       = "User not found"
	MsgDeviceNotFound     = "Device not found"
	MsgNotAuthenticated   = "Not authenticated"
)

// Error is returned by every account operation
type Error struct {
	Type    ErrorType
	Message string
	Field   string // offending input field, if any
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error type to the status code the server answers with.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case ErrTypeAuth:
		return http.StatusUnauthorized
	case ErrTypeValidation, ErrTypeConflict, ErrTypeNotFound:
		// the REST surface reports unknown devices and duplicates as 400
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// NewValidationError creates a validation error for field
func NewValidationError(field, message string) *Error {
	return &Error{Type: ErrTypeValidation, Field: field, Message: message}
}

// NewAuthError creates an authentication error
func NewAuthError(message string) *Error {
	return &Error{Type: ErrTypeAuth, Message: message}
}

// NewConflictError creates a duplicate-value error for field
func NewConflictError(field, message string) *Error {
	return &Error{Type: ErrTypeConflict, Field: field, Message: message}
}

// NewNotFoundError creates a not-found error
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrTypeNotFound, Message: message}
}

// NewInternalError wraps an unexpected failure
func NewInternalError(message string, err error) *Error {
	return &Error{Type: ErrTypeInternal, Message: message, Err: err}
}

func typeOf(err error) (ErrorType, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Type, true
	}
	return 0, false
}

// IsValidationError checks if err is a validation error
func IsValidationError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeValidation
}

// IsAuthError checks if err is an authentication error
func IsAuthError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeAuth
}

// IsConflictError checks if err is a duplicate-value error
func IsConflictError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeConflict
}

// IsNotFoundError checks if err is a not-found error
func IsNotFoundError(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeNotFound
}

// UserMessage returns the message to show next to a form. Errors outside
// this package fall back to their Error() text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
