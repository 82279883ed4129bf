package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldvault/coldvault/internal/crypto"
)

// cheapParams returns a valid record with test-friendly cost settings.
func cheapParams(t *testing.T, signing bool) *crypto.KeyParams {
	t.Helper()

	params, err := crypto.DefaultParams(signing)
	require.NoError(t, err)

	params.Ops = 1
	params.Mem = 64
	return params
}

func TestDeriveKeysDeterministic(t *testing.T) {
	params := cheapParams(t, true)

	first, err := crypto.DeriveKeys([]byte("correct horse battery staple"), params)
	require.NoError(t, err)

	second, err := crypto.DeriveKeys([]byte("correct horse battery staple"), params)
	require.NoError(t, err)

	assert.Equal(t, first.EncryptionKey, second.EncryptionKey)
	assert.Equal(t, first.SigningKey, second.SigningKey)
	assert.Len(t, first.EncryptionKey, crypto.KeySize)
	assert.Len(t, first.SigningKey, crypto.SigningKeySize)
}

func TestDeriveKeysPasswordSensitivity(t *testing.T) {
	params := cheapParams(t, false)

	a, err := crypto.DeriveKeys([]byte("password-a"), params)
	require.NoError(t, err)

	b, err := crypto.DeriveKeys([]byte("password-b"), params)
	require.NoError(t, err)

	assert.NotEqual(t, a.EncryptionKey, b.EncryptionKey)
	assert.Nil(t, a.SigningKey)
}

func TestDeriveKeysConstructs(t *testing.T) {
	for _, construct := range []string{crypto.ConstructArgon2id, crypto.ConstructArgon2i} {
		t.Run(construct, func(t *testing.T) {
			params := cheapParams(t, false)
			params.Construct = construct

			keys, err := crypto.DeriveKeys([]byte("pw"), params)
			require.NoError(t, err)
			assert.Len(t, keys.EncryptionKey, crypto.KeySize)
		})
	}
}

func TestDeriveKeysUnsupportedConstruct(t *testing.T) {
	params := cheapParams(t, false)
	params.Construct = "scrypt"

	_, err := crypto.DeriveKeys([]byte("pw"), params)
	require.Error(t, err)
	assert.ErrorIs(t, err, crypto.ErrUnsupportedConstruct)

	var derivErr *crypto.DerivationError
	assert.ErrorAs(t, err, &derivErr)
	assert.Equal(t, "scrypt", derivErr.Construct)
}

func TestDeriveKeysGeneratesDefaults(t *testing.T) {
	params, err := crypto.DefaultParams(true)
	require.NoError(t, err)

	assert.Equal(t, crypto.ConstructArgon2id, params.Construct)
	assert.Len(t, params.EncryptionSalt, crypto.SaltSize)
	assert.Len(t, params.SigningSalt, crypto.SaltSize)
	assert.NotEqual(t, params.EncryptionSalt, params.SigningSalt)
	assert.True(t, params.SigningEnabled())

	noSign, err := crypto.DefaultParams(false)
	require.NoError(t, err)
	assert.Zero(t, noSign.SigningKeySize)
	assert.Empty(t, noSign.SigningSalt)
}

func TestKeyParamsValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*crypto.KeyParams)
	}{
		{"bad encryption key size", func(p *crypto.KeyParams) { p.EncryptionKeySize = 16 }},
		{"bad signing key size", func(p *crypto.KeyParams) { p.SigningKeySize = 32 }},
		{"short salt", func(p *crypto.KeyParams) { p.EncryptionSalt = p.EncryptionSalt[:8] }},
		{"zero ops", func(p *crypto.KeyParams) { p.Ops = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := cheapParams(t, true)
			tt.mutate(params)
			assert.Error(t, params.Validate())
		})
	}
}

func TestKeyParamsRoundTripFile(t *testing.T) {
	params := cheapParams(t, true)
	path := t.TempDir() + "/key_params.json"

	require.NoError(t, params.Save(path))

	loaded, err := crypto.LoadParams(path)
	require.NoError(t, err)
	assert.Equal(t, params, loaded)

	// The reloaded record must regenerate identical keys.
	orig, err := crypto.DeriveKeys([]byte("pw"), params)
	require.NoError(t, err)
	again, err := crypto.DeriveKeys([]byte("pw"), loaded)
	require.NoError(t, err)
	assert.Equal(t, orig.EncryptionKey, again.EncryptionKey)
	assert.Equal(t, orig.SigningKey, again.SigningKey)
}
