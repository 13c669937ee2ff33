package security

import (
	"fmt"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTPService wraps pquerna/otp for the optional time-based 2FA login step.
type TOTPService struct {
	issuer string
}

func NewTOTPService(issuer string) *TOTPService {
	return &TOTPService{issuer: issuer}
}

// GenerateSecret creates a new TOTP secret for an account. The returned URL
// is the otpauth:// provisioning URI.
func (s *TOTPService) GenerateSecret(accountName string) (secret string, url string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.issuer,
		AccountName: accountName,
		Algorithm:   otp.AlgorithmSHA1,
		Digits:      otp.DigitsSix,
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// Validate checks a TOTP code against the stored secret.
func (s *TOTPService) Validate(code, secret string) bool {
	return totp.Validate(code, secret)
}
