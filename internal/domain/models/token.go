package models

import (
	"time"

	"github.com/google/uuid"
)

// TokenPurpose tags what a signed token may be used for. Verification always
// checks the purpose; an access token can never pass as a refresh token.
type TokenPurpose string

const (
	PurposeAccess  TokenPurpose = "access"
	PurposeRefresh TokenPurpose = "refresh"
	PurposeService TokenPurpose = "service"
)

// TokenClaims is the verified payload of a signed token.
type TokenClaims struct {
	SubjectID uuid.UUID    // user id, or nil UUID for service tokens
	Binding   string       // device UUID for user tokens, instance id for service tokens
	Purpose   TokenPurpose
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenPair is an access+refresh pair handed to the client after login or
// rotation.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // access token TTL, seconds
	TokenType    string `json:"token_type"`
}

// VerificationOutcome is the orchestrator's state for one authenticated
// request.
type VerificationOutcome int

const (
	OutcomeRejected VerificationOutcome = iota
	OutcomeAccessValid
	OutcomeNeedsRotation
	OutcomeReuseDetected
	OutcomeSessionExpired
)

func (o VerificationOutcome) String() string {
	switch o {
	case OutcomeAccessValid:
		return "access_valid"
	case OutcomeNeedsRotation:
		return "needs_rotation"
	case OutcomeReuseDetected:
		return "reuse_detected"
	case OutcomeSessionExpired:
		return "session_expired"
	default:
		return "rejected"
	}
}

// RequestAuth is what a successful verification attaches to the request
// context: the resolved identity plus, after rotation, the fresh pair.
type RequestAuth struct {
	UserID   uuid.UUID
	DeviceID uuid.UUID
	Session  *Session
	Rotated  *TokenPair // nil unless the request triggered a rotation
}
