package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHashParams() Argon2idParams {
	// Deliberately small so the suite stays fast.
	return Argon2idParams{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestNewPasswordHasher_RejectsZeroParams(t *testing.T) {
	_, err := NewPasswordHasher(Argon2idParams{})
	assert.Error(t, err)
}

func TestPasswordHasher_RoundTrip(t *testing.T) {
	hasher, err := NewPasswordHasher(testHashParams())
	require.NoError(t, err)

	encoded, err := hasher.Hash("hunter2hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$"))

	ok, err := hasher.Verify("hunter2hunter2", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPasswordHasher_WrongPassword(t *testing.T) {
	hasher, err := NewPasswordHasher(testHashParams())
	require.NoError(t, err)

	encoded, err := hasher.Hash("the right one")
	require.NoError(t, err)

	ok, err := hasher.Verify("the wrong one", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasher_SaltVariesBetweenHashes(t *testing.T) {
	hasher, err := NewPasswordHasher(testHashParams())
	require.NoError(t, err)

	first, err := hasher.Hash("same password")
	require.NoError(t, err)
	second, err := hasher.Hash("same password")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestPasswordHasher_VerifyHonoursEmbeddedParams(t *testing.T) {
	// Hashes created under older settings keep verifying after the
	// configured parameters change.
	old, err := NewPasswordHasher(Argon2idParams{Memory: 4 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	require.NoError(t, err)
	encoded, err := old.Hash("migrating password")
	require.NoError(t, err)

	current, err := NewPasswordHasher(testHashParams())
	require.NoError(t, err)
	ok, err := current.Verify("migrating password", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPasswordHasher_RejectsMalformedHash(t *testing.T) {
	hasher, err := NewPasswordHasher(testHashParams())
	require.NoError(t, err)

	_, err = hasher.Verify("anything", "not-an-encoded-hash")
	assert.Error(t, err)

	_, err = hasher.Verify("anything", "$bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA")
	assert.Error(t, err)
}
