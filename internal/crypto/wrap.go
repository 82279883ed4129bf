package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/ssh"
)

// WrappedKeys holds the symmetric keys encrypted to a recipient's RSA
// public key (OAEP/SHA-256), hex-encoded. Safe to store or transmit
// without the password.
type WrappedKeys struct {
	EncryptionKey string `json:"encryption_key"`
	SigningKey    string `json:"signing_key,omitempty"`
}

// WrapKeys encrypts the cipher's symmetric keys to a public key.
func (c *StreamCipher) WrapKeys(pub *rsa.PublicKey) (*WrappedKeys, error) {
	enc, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, c.encKey[:], nil)
	if err != nil {
		return nil, fmt.Errorf("wrap encryption key: %w", err)
	}

	w := &WrappedKeys{EncryptionKey: hex.EncodeToString(enc)}

	if c.signKey != nil {
		sig, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, c.signKey, nil)
		if err != nil {
			return nil, fmt.Errorf("wrap signing key: %w", err)
		}
		w.SigningKey = hex.EncodeToString(sig)
	}

	return w, nil
}

// UnwrapKeys rebuilds a StreamCipher from wrapped keys and the matching
// RSA private key.
func UnwrapKeys(priv *rsa.PrivateKey, w *WrappedKeys) (*StreamCipher, error) {
	encWrapped, err := hex.DecodeString(w.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("decode wrapped encryption key: %w", err)
	}

	encKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, encWrapped, nil)
	if err != nil {
		return nil, fmt.Errorf("unwrap encryption key: %w", err)
	}

	var signKey []byte
	if w.SigningKey != "" {
		sigWrapped, err := hex.DecodeString(w.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("decode wrapped signing key: %w", err)
		}
		signKey, err = rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, sigWrapped, nil)
		if err != nil {
			return nil, fmt.Errorf("unwrap signing key: %w", err)
		}
	}

	return NewStreamCipherFromKeys(encKey, signKey)
}

// ParsePublicKey reads an RSA public key in SSH authorized_keys format.
func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	key, _, _, _, err := ssh.ParseAuthorizedKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	cryptoKey, ok := key.(ssh.CryptoPublicKey)
	if !ok {
		return nil, errors.New("public key is not a crypto key")
	}

	rsaKey, ok := cryptoKey.CryptoPublicKey().(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("expected RSA public key, got %s", key.Type())
	}

	return rsaKey, nil
}

// LoadPrivateKey reads a PEM private key file, decrypting it with
// passphrase when one is given.
func LoadPrivateKey(path string, passphrase []byte) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}

	var parsed interface{}
	if len(passphrase) > 0 {
		parsed, err = ssh.ParseRawPrivateKeyWithPassphrase(data, passphrase)
	} else {
		parsed, err = ssh.ParseRawPrivateKey(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	rsaKey, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("expected RSA private key, got %T", parsed)
	}

	return rsaKey, nil
}
