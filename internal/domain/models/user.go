package models

import (
	"time"

	"github.com/google/uuid"
)

// UserStatus enumerates account states.
type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusBlocked UserStatus = "blocked"
	UserStatusDeleted UserStatus = "deleted"
)

// User is the identity record. Owned by the account-management flows; the
// auth core reads it for policy decisions only.
type User struct {
	ID            uuid.UUID  `json:"id" db:"id"`
	Email         *string    `json:"email,omitempty" db:"email"`
	Phone         *string    `json:"phone,omitempty" db:"phone"`
	PasswordHash  string     `json:"-" db:"password_hash"`
	Role          string     `json:"role" db:"role"`
	EmailVerified bool       `json:"email_verified" db:"email_verified"`
	PhoneVerified bool       `json:"phone_verified" db:"phone_verified"`
	TwoFAEnabled  bool       `json:"two_fa_enabled" db:"two_fa_enabled"`
	TOTPSecret    *string    `json:"-" db:"totp_secret"`
	Status        UserStatus `json:"status" db:"status"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// PrimaryContact returns the user's preferred contact identifier for
// notification delivery: email first, phone as fallback.
func (u *User) PrimaryContact() (channel ContactChannel, value string, ok bool) {
	if u.Email != nil && *u.Email != "" {
		return ContactChannelEmail, *u.Email, true
	}
	if u.Phone != nil && *u.Phone != "" {
		return ContactChannelPhone, *u.Phone, true
	}
	return "", "", false
}

// ContactChannel identifies a delivery channel for codes and links.
type ContactChannel string

const (
	ContactChannelEmail ContactChannel = "email"
	ContactChannelPhone ContactChannel = "phone"
)

// ContactPolicy is the auth-mode policy resolved once at config load. It
// decides which contact identifiers a login may use and which must be
// verified before a session is established.
type ContactPolicy int

const (
	ContactPolicyEmailOnly ContactPolicy = iota
	ContactPolicyPhoneOnly
	ContactPolicyBoth
	ContactPolicyEither
)

// ParseContactPolicy maps a config string to a ContactPolicy. Unknown values
// fall back to ContactPolicyEither.
func ParseContactPolicy(mode string) ContactPolicy {
	switch mode {
	case "email":
		return ContactPolicyEmailOnly
	case "phone":
		return ContactPolicyPhoneOnly
	case "both":
		return ContactPolicyBoth
	default:
		return ContactPolicyEither
	}
}

// Satisfied reports whether the user's verification flags meet the policy.
func (p ContactPolicy) Satisfied(u *User) bool {
	switch p {
	case ContactPolicyEmailOnly:
		return u.EmailVerified
	case ContactPolicyPhoneOnly:
		return u.PhoneVerified
	case ContactPolicyBoth:
		return u.EmailVerified && u.PhoneVerified
	default:
		return u.EmailVerified || u.PhoneVerified
	}
}
