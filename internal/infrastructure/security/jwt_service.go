package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	domainErrors "github.com/arcadia-online/auth-service/internal/domain/errors"
	"github.com/arcadia-online/auth-service/internal/domain/models"
)

// tokenClaims is the JWT claim shape shared by access, refresh and service
// tokens. The binding claim carries the device UUID for user tokens and the
// instance id for service tokens.
type tokenClaims struct {
	Binding string `json:"bnd"`
	Purpose string `json:"prp"`
	jwt.RegisteredClaims
}

// JWTService is the stateless token codec: HMAC-SHA256 over a configured
// secret, purpose-tagged claims. It holds no per-request state.
type JWTService struct {
	secret []byte
	issuer string
}

// NewJWTService creates the codec. The secret must be non-empty; there is no
// development fallback.
func NewJWTService(secret, issuer string) (*JWTService, error) {
	if secret == "" {
		return nil, errors.New("token secret must be configured")
	}
	return &JWTService{secret: []byte(secret), issuer: issuer}, nil
}

// Issue signs a token for subject bound to binding with the given purpose
// and TTL.
func (s *JWTService) Issue(subjectID uuid.UUID, binding string, ttl time.Duration, purpose models.TokenPurpose) (string, error) {
	now := time.Now()
	claims := &tokenClaims{
		Binding: binding,
		Purpose: string(purpose),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subjectID.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", purpose, err)
	}
	return signed, nil
}

// Verify checks signature, expiry, issuer and purpose, and returns the typed
// claims. Expiry is reported as ErrExpiredToken so callers can enter the
// rotation path; every other failure is ErrInvalidToken.
func (s *JWTService) Verify(tokenString string, expected models.TokenPurpose) (*models.TokenClaims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithIssuer(s.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domainErrors.ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, domainErrors.ErrInvalidToken
	}
	if claims.Purpose != string(expected) {
		return nil, fmt.Errorf("%w: purpose %q, expected %q", domainErrors.ErrInvalidToken, claims.Purpose, expected)
	}
	return claimsToModel(claims)
}

// DecodeUnverified extracts the payload without any signature or expiry
// check. Use it only to recover a subject id for a store lookup after Verify
// already failed; nothing it returns may be trusted for authorization.
func (s *JWTService) DecodeUnverified(tokenString string) (*models.TokenClaims, error) {
	claims := &tokenClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", domainErrors.ErrInvalidToken, err)
	}
	return claimsToModel(claims)
}

func claimsToModel(c *tokenClaims) (*models.TokenClaims, error) {
	subject, err := uuid.Parse(c.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed subject", domainErrors.ErrInvalidToken)
	}
	out := &models.TokenClaims{
		SubjectID: subject,
		Binding:   c.Binding,
		Purpose:   models.TokenPurpose(c.Purpose),
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out, nil
}
