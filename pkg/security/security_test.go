package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	_, err := h.Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.ErrorIs(t, h.Compare(hash, "battery staple"), ErrPasswordMismatch)
}

func TestGenerateKey(t *testing.T) {
	a, err := GenerateKey()
	require.NoError(t, err)
	b, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, a, 40)
	assert.NotEqual(t, a, b)
}

func TestSecretBox(t *testing.T) {
	enc, err := NewAESEncryptor([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	box := NewSecretBox(enc)

	sealed, err := box.Seal("smtp-pass")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, "enc:"))

	plain, err := box.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "smtp-pass", plain)

	legacy, err := box.Open("plain-value")
	require.NoError(t, err)
	assert.Equal(t, "plain-value", legacy)

	_, err = NewSecretBox(nil).Open(sealed)
	assert.ErrorIs(t, err, ErrDecryption)

	_, err = NewAESEncryptor([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}
