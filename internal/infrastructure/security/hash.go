package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"
)

// GenerateSecureToken generates a random hex string of 2*byteLength chars.
func GenerateSecureToken(byteLength int) (string, error) {
	if byteLength <= 0 {
		byteLength = 32
	}
	b := make([]byte, byteLength)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to read random bytes for token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateNumericOTP generates a numeric one-time code of the given length
// with crypto/rand, left-padded with zeros.
func GenerateNumericOTP(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return fmt.Sprintf("%0*d", length, n), nil
}

// HashToken hashes a plain token string with SHA-256, hex encoded. Used for
// refresh credentials and service tokens, which carry enough entropy that a
// fast hash is sufficient.
func HashToken(plainToken string) string {
	sum := sha256.Sum256([]byte(plainToken))
	return hex.EncodeToString(sum[:])
}

// HashOTP hashes a numeric code under a per-record salt.
func HashOTP(code, salt string) string {
	sum := sha256.Sum256([]byte(salt + ":" + code))
	return hex.EncodeToString(sum[:])
}

// HMACLink computes the HMAC-SHA256 of a link token under the server-held
// secret. Link tokens are high-entropy, so no per-record salt is needed.
func HMACLink(token string, secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}

// ConstantTimeEquals compares two hex digests without leaking timing.
func ConstantTimeEquals(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
