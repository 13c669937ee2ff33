package models

import (
	"time"

	"github.com/google/uuid"
)

// VerificationPurpose tags what a one-time code proves.
type VerificationPurpose string

const (
	PurposeDeviceTrust  VerificationPurpose = "device_trust"
	PurposeEmailVerify  VerificationPurpose = "email_verify"
	PurposePhoneVerify  VerificationPurpose = "phone_verify"
	PurposePasswordless VerificationPurpose = "passwordless_login"
)

// VerificationKind distinguishes numeric OTPs from single-use link tokens.
// Links are only valid for the email channel.
type VerificationKind string

const (
	KindOTP  VerificationKind = "otp"
	KindLink VerificationKind = "link"
)

// VerificationCode is a one-time code record. Only a salted hash (OTP) or an
// HMAC under the server secret (link) is ever stored; the plaintext is
// returned to the caller exactly once, at generation time.
type VerificationCode struct {
	ID          uuid.UUID           `json:"id" db:"id"`
	UserID      uuid.UUID           `json:"user_id" db:"user_id"`
	DeviceID    *uuid.UUID          `json:"device_id,omitempty" db:"device_id"`
	Purpose     VerificationPurpose `json:"purpose" db:"purpose"`
	Kind        VerificationKind    `json:"kind" db:"kind"`
	CodeHash    string              `json:"-" db:"code_hash"`
	Salt        string              `json:"-" db:"salt"`
	ExpiresAt   time.Time           `json:"expires_at" db:"expires_at"`
	Attempts    int                 `json:"attempts" db:"attempts"`
	MaxAttempts int                 `json:"max_attempts" db:"max_attempts"`
	Used        bool                `json:"used" db:"used"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`
}

// Live reports whether the record can still be consumed.
func (v *VerificationCode) Live(now time.Time) bool {
	return !v.Used && v.Attempts < v.MaxAttempts && v.ExpiresAt.After(now)
}

// IssuedCode is what generation hands back for delivery. Plaintext exists
// only in memory, on its way to the notification dispatcher.
type IssuedCode struct {
	Record    *VerificationCode
	Plaintext string
	Reused    bool // true when an unexpired record was reported instead of a new one
}
