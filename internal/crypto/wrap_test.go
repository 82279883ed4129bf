package crypto_test

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldvault/coldvault/internal/crypto"
)

func roundTrip(t *testing.T, encrypter, decrypter *crypto.StreamCipher, plain []byte) {
	t.Helper()

	enc, err := encrypter.EncryptStream(bytes.NewReader(plain), -1)
	require.NoError(t, err)
	ciphertext, err := io.ReadAll(enc)
	require.NoError(t, err)

	dec, err := decrypter.DecryptStream(bytes.NewReader(ciphertext), -1, "")
	require.NoError(t, err)
	got, err := io.ReadAll(dec)
	require.NoError(t, err)

	assert.Equal(t, plain, got)
}

func TestWrapUnwrapKeys(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cipher := testCipher(t, true)

	wrapped, err := cipher.WrapKeys(&priv.PublicKey)
	require.NoError(t, err)
	assert.NotEmpty(t, wrapped.EncryptionKey)
	assert.NotEmpty(t, wrapped.SigningKey)

	restored, err := crypto.UnwrapKeys(priv, wrapped)
	require.NoError(t, err)
	assert.True(t, restored.CanSign())

	// The restored cipher must decrypt what the original encrypted.
	plain := randomBytes(t, 2000)
	roundTrip(t, cipher, restored, plain)
}

func TestWrapKeysWithoutSigning(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cipher := testCipher(t, false)

	wrapped, err := cipher.WrapKeys(&priv.PublicKey)
	require.NoError(t, err)
	assert.Empty(t, wrapped.SigningKey)

	restored, err := crypto.UnwrapKeys(priv, wrapped)
	require.NoError(t, err)
	assert.False(t, restored.CanSign())
}

func TestSignBlob(t *testing.T) {
	blob := randomBytes(t, 512)

	verifyKey, signature, err := crypto.SignBlob(blob)
	require.NoError(t, err)

	ok, err := crypto.VerifyBlob(blob, verifyKey, signature)
	require.NoError(t, err)
	assert.True(t, ok)

	tampered := append([]byte(nil), blob...)
	tampered[0] ^= 0x01
	ok, err = crypto.VerifyBlob(tampered, verifyKey, signature)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = crypto.VerifyBlob(blob, "not-hex", signature)
	assert.Error(t, err)
}
