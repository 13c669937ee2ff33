package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSecureToken(t *testing.T) {
	token, err := GenerateSecureToken(32)
	require.NoError(t, err)
	assert.Len(t, token, 64)

	other, err := GenerateSecureToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}

func TestGenerateNumericOTP(t *testing.T) {
	code, err := GenerateNumericOTP(6)
	require.NoError(t, err)
	require.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9')
	}
}

func TestGenerateNumericOTP_DefaultsLength(t *testing.T) {
	code, err := GenerateNumericOTP(0)
	require.NoError(t, err)
	assert.Len(t, code, 6)
}

func TestHashToken_Deterministic(t *testing.T) {
	assert.Equal(t, HashToken("abc"), HashToken("abc"))
	assert.NotEqual(t, HashToken("abc"), HashToken("abd"))
	assert.Len(t, HashToken("abc"), 64)
}

func TestHashOTP_SaltChangesDigest(t *testing.T) {
	assert.Equal(t, HashOTP("123456", "salt"), HashOTP("123456", "salt"))
	assert.NotEqual(t, HashOTP("123456", "salt"), HashOTP("123456", "other"))
	assert.NotEqual(t, HashOTP("123456", "salt"), HashOTP("654321", "salt"))
}

func TestHMACLink_KeyChangesDigest(t *testing.T) {
	assert.Equal(t, HMACLink("token", []byte("k1")), HMACLink("token", []byte("k1")))
	assert.NotEqual(t, HMACLink("token", []byte("k1")), HMACLink("token", []byte("k2")))
}

func TestConstantTimeEquals(t *testing.T) {
	assert.True(t, ConstantTimeEquals("aabb", "aabb"))
	assert.False(t, ConstantTimeEquals("aabb", "aabc"))
	assert.False(t, ConstantTimeEquals("aabb", "aab"))
}
