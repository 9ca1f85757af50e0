// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, "secret1", hash)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.True(t, IsPasswordHash(hash))

	ok, err := VerifyPassword("secret1", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("secret2", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_Salted(t *testing.T) {
	a, err := HashPassword("secret1")
	require.NoError(t, err)
	b, err := HashPassword("secret1")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	for _, bad := range []string{
		"",
		"secret1",
		"$bcrypt$v=19$m=1,t=1,p=1$aa$bb",
		"$argon2id$v=1$m=1,t=1,p=1$aa$bb",
		"$argon2id$v=19$m=65536,t=0,p=4$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=65536,t=1,p=0$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=0,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5a2V5a2V5a2V5",
	} {
		ok, err := VerifyPassword("secret1", bad)
		assert.ErrorIs(t, err, ErrMalformedHash, bad)
		assert.False(t, ok, bad)
		assert.False(t, IsPasswordHash(bad), bad)
	}
}

func TestGenerateSecureToken(t *testing.T) {
	tok, err := GenerateSecureToken(20)
	require.NoError(t, err)
	assert.Len(t, tok, 40)

	other, err := GenerateSecureToken(20)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)
}

func TestHashToken(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	assert.Equal(t, want, HashToken("abc"))
	assert.True(t, CompareTokenHash("abc", want))
	assert.False(t, CompareTokenHash("abd", want))
}
