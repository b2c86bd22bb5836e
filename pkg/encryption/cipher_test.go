package encryption

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCipher_RoundTrip(t *testing.T) {
	c, err := NewCipher("test-secret")
	assert.NoError(t, err)

	plaintext := "5Kb8kLf9zgWQnogidDA76MzPL6TsZZY36hWXMssSzNydYXYB9KF"
	encrypted, err := c.Encrypt(plaintext)
	assert.NoError(t, err)
	assert.NotEqual(t, plaintext, encrypted)

	decrypted, err := c.Decrypt(encrypted)
	assert.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestCipher_DistinctNonces(t *testing.T) {
	c, _ := NewCipher("test-secret")
	a, _ := c.Encrypt("same input")
	b, _ := c.Encrypt("same input")
	assert.NotEqual(t, a, b)
}

func TestCipher_WrongKeyFails(t *testing.T) {
	c1, _ := NewCipher("secret-one")
	c2, _ := NewCipher("secret-two")

	encrypted, _ := c1.Encrypt("payload")
	_, err := c2.Decrypt(encrypted)
	assert.Error(t, err)
}

func TestCipher_EmptySecretRejected(t *testing.T) {
	_, err := NewCipher("")
	assert.Error(t, err)
}

func TestCipher_GarbageCiphertext(t *testing.T) {
	c, _ := NewCipher("secret")
	_, err := c.Decrypt("not-base64!!!")
	assert.Error(t, err)
	_, err = c.Decrypt("YWJj") // too short once decoded
	assert.Error(t, err)
}
