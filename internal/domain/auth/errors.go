package auth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by credential exchange and session probing.
type ErrorKind string

const (
	KindValidation            ErrorKind = "validation"
	KindCredential            ErrorKind = "credential"
	KindAuthorization         ErrorKind = "authorization"
	KindRateLimit             ErrorKind = "rate_limit"
	KindBackendUnavailable    ErrorKind = "backend_unavailable"
	KindTransientNetwork      ErrorKind = "transient_network"
	KindTokenRecoveryRequired ErrorKind = "token_recovery_required"
)

// Error is the typed outcome of a failed identity backend interaction.
type Error struct {
	Kind    ErrorKind
	Message string
	// Status is the backend HTTP status, zero when the failure happened before a response.
	Status int
	// Code is the backend error code, when the backend supplied one.
	Code  string
	Field string
	Cause error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches another *Error by kind so callers can use errors.Is(err, ErrCredential).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Cause == nil
}

// Sentinels for errors.Is comparisons.
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrCredential            = &Error{Kind: KindCredential}
	ErrAuthorization         = &Error{Kind: KindAuthorization}
	ErrRateLimit             = &Error{Kind: KindRateLimit}
	ErrBackendUnavailable    = &Error{Kind: KindBackendUnavailable}
	ErrTransientNetwork      = &Error{Kind: KindTransientNetwork}
	ErrTokenRecoveryRequired = &Error{Kind: KindTokenRecoveryRequired}
)

// NewError builds an Error of the given kind.
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// ValidationError reports bad local input for field.
func ValidationError(field, message string) *Error {
	return &Error{Kind: KindValidation, Field: field, Message: message}
}

// KindOf returns the ErrorKind carried by err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsValidation(err error) bool { return KindOf(err) == KindValidation }

func IsCredential(err error) bool { return KindOf(err) == KindCredential }

func IsAuthorization(err error) bool { return KindOf(err) == KindAuthorization }

func IsRateLimit(err error) bool { return KindOf(err) == KindRateLimit }

func IsBackendUnavailable(err error) bool { return KindOf(err) == KindBackendUnavailable }

func IsTransientNetwork(err error) bool { return KindOf(err) == KindTransientNetwork }

// IsRecoveryRequired reports whether err signals an invalid or missing refresh credential.
func IsRecoveryRequired(err error) bool { return KindOf(err) == KindTokenRecoveryRequired }

// IsUserFacing reports whether err should be shown to the user verbatim.
// Recovery and transient failures are handled silently.
func IsUserFacing(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindCredential, KindAuthorization, KindRateLimit, KindBackendUnavailable:
		return true
	default:
		return false
	}
}
