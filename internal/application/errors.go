package application

import (
	"errors"
	"fmt"
)

// Kind classifies an expected, client-facing failure.
type Kind string

const (
	KindInvalidInput         Kind = "INVALID_INPUT"
	KindEmailAlreadyExists   Kind = "EMAIL_ALREADY_EXISTS"
	KindAccountNotFound      Kind = "ACCOUNT_NOT_FOUND"
	KindInvalidCredentials   Kind = "INVALID_CREDENTIALS"
	KindVerificationRequired Kind = "VERIFICATION_REQUIRED"
	KindAlreadyVerified      Kind = "ALREADY_VERIFIED"
	KindRateLimitExceeded    Kind = "RATE_LIMIT_EXCEEDED"
	KindTokenNotFound        Kind = "TOKEN_NOT_FOUND"
	KindTokenAlreadyUsed     Kind = "TOKEN_ALREADY_USED"
	KindTokenExpired         Kind = "TOKEN_EXPIRED"
	KindInvalidRefreshToken  Kind = "INVALID_REFRESH_TOKEN"
)

// Error is an expected failure whose Message is safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error of the same kind, so sentinels work with errors.Is
// even when the message was customized.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrInvalidInput         = &Error{Kind: KindInvalidInput, Message: "Invalid input"}
	ErrEmailAlreadyExists   = &Error{Kind: KindEmailAlreadyExists, Message: "An account with this email already exists"}
	ErrAccountNotFound      = &Error{Kind: KindAccountNotFound, Message: "Account not found"}
	ErrInvalidCredentials   = &Error{Kind: KindInvalidCredentials, Message: "Invalid email or password"}
	ErrVerificationRequired = &Error{Kind: KindVerificationRequired, Message: "Please verify your email before logging in"}
	ErrAlreadyVerified      = &Error{Kind: KindAlreadyVerified, Message: "This account has already been verified"}
	ErrRateLimitExceeded    = &Error{Kind: KindRateLimitExceeded, Message: "Too many verification emails requested"}
	ErrTokenNotFound        = &Error{Kind: KindTokenNotFound, Message: "Invalid verification token"}
	ErrTokenAlreadyUsed     = &Error{Kind: KindTokenAlreadyUsed, Message: "This verification link has already been used"}
	ErrTokenExpired         = &Error{Kind: KindTokenExpired, Message: "Verification link has expired. Please request a new one."}
	ErrInvalidRefreshToken  = &Error{Kind: KindInvalidRefreshToken, Message: "Invalid or expired refresh token"}
)

// AsError extracts the client-facing error, if err is one.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
