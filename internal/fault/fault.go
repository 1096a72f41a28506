// Package fault defines the reason-coded errors returned by the OTP,
// order and payment flows. Callers branch on Code, never on Message.
package fault

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable failure reason.
type Code string

const (
	CodeInvalidInput      Code = "invalid_input"
	CodeNotFound          Code = "not_found"
	CodeRateLimited       Code = "rate_limited"
	CodeDeliveryFailed    Code = "delivery_failed"
	CodeExpired           Code = "expired"
	CodeTooManyAttempts   Code = "too_many_attempts"
	CodeInvalidCode       Code = "invalid_code"
	CodeUnauthorized      Code = "unauthorized"
	CodeBadCredentials    Code = "invalid_credentials"
	CodeConflict          Code = "conflict"
	CodeSignatureMismatch Code = "signature_mismatch"
	CodeGatewayAuth       Code = "gateway_auth_failed"
	CodeGateway           Code = "gateway_error"
	CodeNotConfigured     Code = "not_configured"
	CodeInternal          Code = "internal"
)

// Error is a core failure carrying a reason code and a human-readable message.
// WaitSeconds is set for CodeRateLimited.
type Error struct {
	Code        Code
	Message     string
	WaitSeconds int
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same Code, so the sentinels
// below can be used with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is comparisons.
var (
	ErrInvalidInput      = &Error{Code: CodeInvalidInput}
	ErrNotFound          = &Error{Code: CodeNotFound}
	ErrRateLimited       = &Error{Code: CodeRateLimited}
	ErrDeliveryFailed    = &Error{Code: CodeDeliveryFailed}
	ErrExpired           = &Error{Code: CodeExpired}
	ErrTooManyAttempts   = &Error{Code: CodeTooManyAttempts}
	ErrInvalidCode       = &Error{Code: CodeInvalidCode}
	ErrUnauthorized      = &Error{Code: CodeUnauthorized}
	ErrBadCredentials    = &Error{Code: CodeBadCredentials}
	ErrConflict          = &Error{Code: CodeConflict}
	ErrSignatureMismatch = &Error{Code: CodeSignatureMismatch}
	ErrGatewayAuth       = &Error{Code: CodeGatewayAuth}
	ErrGateway           = &Error{Code: CodeGateway}
	ErrNotConfigured     = &Error{Code: CodeNotConfigured}
	ErrInternal          = &Error{Code: CodeInternal}
)

// New returns an Error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap returns an Error that records cause as its underlying error.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

// RateLimited returns a CodeRateLimited error that tells the caller how long to wait.
func RateLimited(wait int, msg string) *Error {
	return &Error{Code: CodeRateLimited, Message: msg, WaitSeconds: wait}
}

// CodeOf returns the reason code of err, or CodeInternal when err carries none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the human-readable message of err. Errors without a code
// get a generic message so internal details are not leaked.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return "internal server error"
}

// WaitSecondsOf returns the wait hint of a rate-limited error, or 0.
func WaitSecondsOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.WaitSeconds
	}
	return 0
}
