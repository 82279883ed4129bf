package crypto

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
)

// SignStream computes the hex HMAC-SHA512 over a ciphertext stream,
// independent of encryption. Use it to re-sign archives that are
// already stored. At most maxBytes are consumed when maxBytes >= 0.
func (c *StreamCipher) SignStream(src io.Reader, maxBytes int64) (string, error) {
	mac, err := c.newMAC(true)
	if err != nil {
		return "", err
	}

	if err := consumeChunks(src, maxBytes, mac.Write); err != nil {
		return "", err
	}

	return hex.EncodeToString(mac.Sum(nil)), nil
}

// VerifyStream checks a hex signature over a ciphertext stream.
func (c *StreamCipher) VerifyStream(src io.Reader, signature string, maxBytes int64) (bool, error) {
	mac, err := c.newMAC(true)
	if err != nil {
		return false, err
	}

	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false, fmt.Errorf("decode signature: %w", err)
	}

	if err := consumeChunks(src, maxBytes, mac.Write); err != nil {
		return false, err
	}

	return hmac.Equal(mac.Sum(nil), expected), nil
}

// consumeChunks feeds src to fn in ChunkSize reads, bounded by limit.
func consumeChunks(src io.Reader, limit int64, fn func([]byte) (int, error)) error {
	for {
		chunk := make([]byte, ChunkSize)
		if limit >= 0 && limit < int64(len(chunk)) {
			chunk = chunk[:limit]
		}

		n, err := readFullChunk(src, chunk)
		if n > 0 {
			if _, werr := fn(chunk[:n]); werr != nil {
				return werr
			}
			if limit >= 0 {
				limit -= int64(n)
			}
		}
		if err == io.EOF || limit == 0 {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// SignBlob signs a small object with a throwaway Ed25519 keypair. The
// private key is discarded; the returned hex verification key is all a
// later verifier needs. Useful where an HMAC shared secret is
// undesirable for a single object.
func SignBlob(data []byte) (verifyKey string, signature []byte, err error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", nil, fmt.Errorf("generate signing keypair: %w", err)
	}

	return hex.EncodeToString(pub), ed25519.Sign(priv, data), nil
}

// VerifyBlob checks an Ed25519 blob signature from SignBlob.
func VerifyBlob(data []byte, verifyKey string, signature []byte) (bool, error) {
	pub, err := hex.DecodeString(verifyKey)
	if err != nil {
		return false, fmt.Errorf("decode verify key: %w", err)
	}
	if len(pub) != ed25519.PublicKeySize {
		return false, fmt.Errorf("verify key must be %d bytes, got %d", ed25519.PublicKeySize, len(pub))
	}

	return ed25519.Verify(ed25519.PublicKey(pub), data, signature), nil
}
