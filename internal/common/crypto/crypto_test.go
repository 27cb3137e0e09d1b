// Package crypto 加密工具单元测试
package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAES_ValidKey(t *testing.T) {
	for _, key := range []string{
		"1234567890123456",
		"123456789012345678901234",
		"12345678901234567890123456789012",
	} {
		a, err := NewAES(key)
		require.NoError(t, err)
		assert.NotNil(t, a)
	}
}

func TestNewAES_InvalidKey(t *testing.T) {
	for _, key := range []string{"", "short", "12345678901234567"} {
		_, err := NewAES(key)
		assert.ErrorIs(t, err, ErrInvalidKeySize)
	}
}

func TestNewAESFromSecret(t *testing.T) {
	t.Run("同一主密钥派生出相同密钥", func(t *testing.T) {
		a, err := NewAESFromSecret("master-secret", "salt")
		require.NoError(t, err)
		b, err := NewAESFromSecret("master-secret", "salt")
		require.NoError(t, err)

		ciphertext, err := a.Encrypt("12345678901")
		require.NoError(t, err)
		plaintext, err := b.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, "12345678901", plaintext)
	})

	t.Run("不同盐无法解密", func(t *testing.T) {
		a, err := NewAESFromSecret("master-secret", "salt-a")
		require.NoError(t, err)
		b, err := NewAESFromSecret("master-secret", "salt-b")
		require.NoError(t, err)

		ciphertext, err := a.Encrypt("pix@example.com")
		require.NoError(t, err)
		_, err = b.Decrypt(ciphertext)
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("空主密钥", func(t *testing.T) {
		_, err := NewAESFromSecret("", "salt")
		assert.ErrorIs(t, err, ErrEmptySecret)
	})
}

func TestDeriveKeyInfoSeparation(t *testing.T) {
	k1, err := deriveKey("secret", "salt", "info-a", 32)
	require.NoError(t, err)
	k2, err := deriveKey("secret", "salt", "info-b", 32)
	require.NoError(t, err)

	assert.Len(t, k1, 32)
	assert.NotEqual(t, k1, k2)
}

func TestAES_EncryptDecrypt(t *testing.T) {
	a, err := NewAES("12345678901234567890123456789012")
	require.NoError(t, err)

	for _, plaintext := range []string{"", "12345678901", "中文内容", strings.Repeat("x", 1000)} {
		ciphertext, err := a.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		decrypted, err := a.Decrypt(ciphertext)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestAES_Encrypt_RandomNonce(t *testing.T) {
	a, err := NewAES("1234567890123456")
	require.NoError(t, err)

	c1, err := a.Encrypt("same")
	require.NoError(t, err)
	c2, err := a.Encrypt("same")
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}

func TestAES_Decrypt_Invalid(t *testing.T) {
	a, err := NewAES("1234567890123456")
	require.NoError(t, err)

	_, err = a.Decrypt("not base64!!")
	assert.Error(t, err)

	_, err = a.Decrypt("YWJj")
	assert.ErrorIs(t, err, ErrCiphertextShort)

	ciphertext, err := a.Encrypt("payload")
	require.NoError(t, err)
	tampered := []byte(ciphertext)
	tampered[len(tampered)-3] ^= 1
	_, err = a.Decrypt(string(tampered))
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "*******4321", MaskPhone("11987654321"))
	assert.Equal(t, "1234", MaskPhone("1234"))
	assert.Equal(t, "123******01", MaskDocument("12345678901"))
	assert.Equal(t, "ab***@example.com", MaskEmail("abcdef@example.com"))
	assert.Equal(t, "ab@x.com", MaskEmail("ab@x.com"))
	assert.Equal(t, "123e...4000", MaskRandom("123e4567-e89b-12d3-a456-426614174000"))
}
