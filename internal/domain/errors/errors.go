package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the auth core. Services return these (possibly wrapped
// with %w); the HTTP layer maps them to response classes without leaking the
// precise kind to the caller.
var (
	// Generic
	ErrInternal      = errors.New("internal server error")
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrForbidden     = errors.New("forbidden")
	ErrUnauthorized  = errors.New("unauthorized")

	// Credentials and tokens
	ErrMissingCredential  = errors.New("missing credential")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("expired token")
	ErrDeviceMismatch     = errors.New("token device binding mismatch")
	ErrStaleOrForgedToken = errors.New("stale or forged token")
	ErrTokenReuseDetected = errors.New("refresh token reuse detected")

	// Sessions
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionExpired         = errors.New("session expired")
	ErrSessionLimitReached    = errors.New("session limit reached")
	ErrDeviceUserLimitReached = errors.New("device user limit reached")

	// Users and devices
	ErrUserNotFound       = errors.New("user not found")
	ErrUserBlocked        = errors.New("user blocked")
	ErrDeviceBlocked      = errors.New("device blocked")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrContactNotVerified = errors.New("contact not verified")
	Err2FARequired        = errors.New("two-factor verification required")
	ErrInvalid2FACode     = errors.New("invalid two-factor code")

	// One-time codes
	ErrVerificationCodeInvalid       = errors.New("verification code invalid")
	ErrVerificationCodeExpired       = errors.New("verification code expired")
	ErrVerificationCodeAlreadyIssued = errors.New("verification code already issued")
	ErrVerificationAttemptsExhausted = errors.New("verification attempts exhausted")

	// Service-to-service
	ErrServiceTokenInvalid        = errors.New("service token invalid")
	ErrInternalServiceUnreachable = errors.New("internal service unreachable")
)

// AppError carries an HTTP status and a machine-readable code alongside the
// wrapped cause. Handlers build responses from it; the cause stays in logs.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
	Code       string
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

// NewAppError creates a new application error.
func NewAppError(err error, message string, statusCode int, code string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		StatusCode: statusCode,
		Code:       code,
	}
}

// IsUnauthorized reports whether err belongs to the credential-rejection
// class. Reuse, forgery and plain expiry all collapse here on purpose: the
// caller only ever learns "re-authenticate".
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrMissingCredential) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrExpiredToken) ||
		errors.Is(err, ErrDeviceMismatch) ||
		errors.Is(err, ErrStaleOrForgedToken) ||
		errors.Is(err, ErrTokenReuseDetected) ||
		errors.Is(err, ErrSessionNotFound) ||
		errors.Is(err, ErrSessionExpired) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrServiceTokenInvalid)
}

// IsNotFound reports whether err is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUserNotFound)
}

// IsConflict reports whether err is a conflict error.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrVerificationCodeAlreadyIssued)
}

// IsPolicyRejection reports whether err is a login-policy cap rejection.
func IsPolicyRejection(err error) bool {
	return errors.Is(err, ErrSessionLimitReached) ||
		errors.Is(err, ErrDeviceUserLimitReached)
}

// IsVerificationFailure reports whether err comes from one-time-code
// validation. These are expected, locally handled conditions.
func IsVerificationFailure(err error) bool {
	return errors.Is(err, ErrVerificationCodeInvalid) ||
		errors.Is(err, ErrVerificationCodeExpired) ||
		errors.Is(err, ErrVerificationAttemptsExhausted) ||
		errors.Is(err, ErrInvalid2FACode)
}
