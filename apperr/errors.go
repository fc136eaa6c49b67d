package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindAuth
	KindConflict
	KindInvalid
	KindNotFound
	KindExternal
)

// Error is a classified application error. Label is the machine readable
// code surfaced to clients, Message the human readable one.
type Error struct {
	Kind    Kind
	Label   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on label so wrapped copies of a sentinel still compare equal.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Label == t.Label
}

// Status maps the kind onto an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindAuth:
		return http.StatusUnauthorized
	case KindConflict, KindInvalid:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, label, message string) *Error {
	return &Error{Kind: kind, Label: label, Message: message}
}

// Wrap returns a copy of e carrying cause.
func (e *Error) Wrap(cause error) *Error {
	cp := *e
	cp.Err = cause
	return &cp
}

func Invalid(message string) *Error {
	return New(KindInvalid, "INVALID_REQUEST", message)
}

func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Label: "INTERNAL_ERROR", Message: "Internal server error", Err: err}
}

// Auth
var (
	ErrInvalidCredentials = New(KindAuth, "INVALID_CREDENTIALS", "Invalid credentials")
	ErrInvalidToken       = New(KindAuth, "INVALID_TOKEN", "Invalid token")
	ErrTokenExpired       = New(KindAuth, "TOKEN_EXPIRED", "Token expired")
	ErrSessionRevoked     = New(KindAuth, "SESSION_REVOKED", "Session revoked")
	ErrMissingToken       = New(KindAuth, "MISSING_TOKEN", "Authentication required")
	ErrInvalidDeviceToken = New(KindAuth, "INVALID_DEVICE_TOKEN", "Invalid device token")
	ErrDeviceTokenExpired = New(KindAuth, "DEVICE_TOKEN_EXPIRED", "Device token expired")
	ErrDeviceInactive     = New(KindAuth, "DEVICE_INACTIVE", "Device is not active")
	// ErrUnknownDevice is a valid device token whose device row is gone.
	ErrUnknownDevice      = New(KindAuth, "DEVICE_NOT_FOUND", "Device not found")
)

// Device registry
var (
	ErrDeviceNotFound      = New(KindNotFound, "DEVICE_NOT_FOUND", "Device not found")
	ErrDuplicateDeviceCode = New(KindConflict, "DUPLICATE_DEVICE_CODE", "Device code already exists")
	ErrAlreadyActive       = New(KindConflict, "ALREADY_ACTIVE", "Device is already active")
	ErrAlreadyInactive     = New(KindConflict, "ALREADY_INACTIVE", "Device is already inactive")
	ErrCodeNotFound        = New(KindNotFound, "CODE_NOT_FOUND", "Invalid activation code")
	ErrCodeAlreadyUsed     = New(KindConflict, "CODE_ALREADY_USED", "Activation code has already been used")
	ErrCodeExpired         = New(KindConflict, "CODE_EXPIRED", "Activation code has expired")
)

// Employees and punches
var (
	ErrUserNotFound          = New(KindNotFound, "USER_NOT_FOUND", "User not found")
	ErrUserNotActive         = New(KindConflict, "USER_NOT_ACTIVE", "User is not active")
	ErrDuplicateEmployeeCode = New(KindConflict, "DUPLICATE_EMPLOYEE_CODE", "Employee code already exists")
	ErrAlreadyPunchedIn      = New(KindConflict, "ALREADY_PUNCHED_IN", "User already has an open punch")
	ErrNoOpenSession         = New(KindConflict, "NO_OPEN_SESSION", "No open punch found for user")
	ErrPunchNotFound         = New(KindNotFound, "PUNCH_NOT_FOUND", "Punch record not found")
	ErrAlreadyInvalid        = New(KindConflict, "ALREADY_INVALID", "Punch record is already invalid")
)

// ExternalError is a failure reported by the face recognition vendor.
type ExternalError struct {
	StatusCode int
	Reason     string
	Details    any
	Message    string
	Err        error
}

func (e *ExternalError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("face service: %s (%s)", e.Message, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("face service: %s: %v", e.Message, e.Err)
	}
	return "face service: " + e.Message
}

func (e *ExternalError) Unwrap() error { return e.Err }

// Status is the vendor status when it produced one, 502 otherwise.
func (e *ExternalError) Status() int {
	if e.StatusCode >= 400 {
		return e.StatusCode
	}
	return http.StatusBadGateway
}

// Classify resolves err into an *Error. Unclassified errors become Internal.
func Classify(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var ee *ExternalError
	if errors.As(err, &ee) {
		return &Error{Kind: KindExternal, Label: "EXTERNAL_SERVICE_ERROR", Message: ee.Message, Err: ee}
	}
	return Internal(err)
}
