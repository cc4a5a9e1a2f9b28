package identity

import (
	"errors"
	"fmt"
)

// Provider error codes
const (
	CodeEmailAlreadyExists   = "email-already-exists"
	CodeUserNotFound         = "user-not-found"
	CodeWrongPassword        = "wrong-password"
	CodeInvalidEmail         = "invalid-email"
	CodeWeakPassword         = "weak-password"
	CodeUserDisabled         = "user-disabled"
	CodeTooManyRequests      = "too-many-requests"
	CodeInvalidIDToken       = "invalid-id-token"
	CodeInvalidSession       = "invalid-session-cookie"
	CodeSessionExpired       = "session-cookie-expired"
	CodeSessionRevoked       = "session-cookie-revoked"
	CodeInternal             = "internal-error"
	CodeProviderUnavailable  = "provider-unavailable"
	CodeInvalidSessionMaxAge = "invalid-session-cookie-duration"
)

// ProviderError is a rejection from the identity provider
type ProviderError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("identity: %s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("identity: %s: %s", e.Code, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewError creates a ProviderError
func NewError(code, message string) *ProviderError {
	return &ProviderError{Code: code, Message: message}
}

// WrapError creates a ProviderError carrying the underlying cause
func WrapError(code, message string, err error) *ProviderError {
	return &ProviderError{Code: code, Message: message, Err: err}
}

// ErrorCode returns the provider code in err's chain, or "" when err is not a ProviderError
func ErrorCode(err error) string {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Code
	}
	return ""
}

// HasCode reports whether err is a ProviderError with the given code
func HasCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

func IsNotFound(err error) bool {
	return HasCode(err, CodeUserNotFound)
}
