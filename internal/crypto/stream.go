package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// ChunkSize is the on-wire size of one encrypted chunk. The last
	// chunk of a stream may be shorter.
	ChunkSize = 16384

	// NonceSize is the secretbox nonce length prepended to each chunk.
	NonceSize = 24

	// Overhead is the per-chunk ciphertext expansion: the prepended
	// nonce plus the Poly1305 tag.
	Overhead = NonceSize + secretbox.Overhead // 40

	// PlainChunkSize is how much plaintext fits in one encrypted chunk.
	PlainChunkSize = ChunkSize - Overhead

	// KeySize is the secretbox key length.
	KeySize = 32
)

var (
	ErrMissingSigningKey = errors.New("signing requested but no signing key configured")
	ErrSignatureMismatch = errors.New("stream signature mismatch")
	ErrNotAligned        = errors.New("encrypted block size not aligned to cipher chunk size")
	ErrDecryptionFailed  = errors.New("chunk decryption failed")
)

// StreamCipher performs chunked authenticated encryption of byte
// streams of any size, with optional whole-stream HMAC signing.
//
// Encryption draws a fresh random nonce base per call, so encrypting
// the same plaintext twice yields different ciphertext; chunk i within
// one call uses nonce base + i. Each returned reader carries its own
// state, so one cipher may drive concurrent streams; chunk-parallel
// callers read each stream's Signature rather than LastSignature,
// which only identifies a stream when calls are sequential.
type StreamCipher struct {
	encKey  [KeySize]byte
	signKey []byte // nil selects the no-signing path

	mu            sync.Mutex
	lastSignature string
}

// NewStreamCipher builds a cipher from derived keys.
func NewStreamCipher(keys *DerivedKeys) (*StreamCipher, error) {
	return NewStreamCipherFromKeys(keys.EncryptionKey, keys.SigningKey)
}

// NewStreamCipherFromKeys builds a cipher from raw key material.
// signKey may be nil to disable stream signing.
func NewStreamCipherFromKeys(encKey, signKey []byte) (*StreamCipher, error) {
	if len(encKey) != KeySize {
		return nil, fmt.Errorf("%w: encryption key must be %d bytes, got %d",
			ErrInvalidKeySize, KeySize, len(encKey))
	}
	if signKey != nil && len(signKey) != SigningKeySize {
		return nil, fmt.Errorf("%w: signing key must be %d bytes, got %d",
			ErrInvalidKeySize, SigningKeySize, len(signKey))
	}

	c := &StreamCipher{}
	copy(c.encKey[:], encKey)
	if signKey != nil {
		c.signKey = append([]byte(nil), signKey...)
	}
	return c, nil
}

// CanSign reports whether a signing key is configured.
func (c *StreamCipher) CanSign() bool {
	return c.signKey != nil
}

// LastSignature returns the hex HMAC of the ciphertext produced by the
// most recently exhausted EncryptStream, or empty if signing is
// disabled or no stream has completed.
func (c *StreamCipher) LastSignature() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSignature
}

func (c *StreamCipher) setLastSignature(sig string) {
	c.mu.Lock()
	c.lastSignature = sig
	c.mu.Unlock()
}

// newMAC selects the stream MAC once per operation: nil when signing
// is off, HMAC-SHA512 otherwise. require makes a missing key an error
// instead of a silent skip.
func (c *StreamCipher) newMAC(require bool) (hash.Hash, error) {
	if c.signKey == nil {
		if require {
			return nil, ErrMissingSigningKey
		}
		return nil, nil
	}
	return hmac.New(sha512.New, c.signKey), nil
}

// UnencryptedBlockSize returns how many plaintext bytes produce exactly
// encBlockSize ciphertext bytes through EncryptStream. encBlockSize
// must be a whole number of chunks.
func UnencryptedBlockSize(encBlockSize int64) (int64, error) {
	if encBlockSize <= 0 || encBlockSize%ChunkSize != 0 {
		return 0, fmt.Errorf("%w: cannot divide %d by %d", ErrNotAligned, encBlockSize, ChunkSize)
	}
	return encBlockSize / ChunkSize * PlainChunkSize, nil
}

// EncryptStream wraps src in a reader producing encrypted chunks. At
// most maxBytes of plaintext are consumed when maxBytes >= 0. Each
// emitted chunk is ChunkSize bytes (the final one may be shorter) laid
// out as nonce || box. When a signing key is configured the ciphertext
// HMAC lands in the reader's Signature (and in LastSignature) once the
// stream is exhausted.
func (c *StreamCipher) EncryptStream(src io.Reader, maxBytes int64) (*EncryptReader, error) {
	mac, err := c.newMAC(false)
	if err != nil {
		return nil, err
	}

	r := &EncryptReader{
		cipher:    c,
		src:       src,
		remaining: maxBytes,
		mac:       mac,
	}
	if _, err := io.ReadFull(rand.Reader, r.nonceBase[:]); err != nil {
		return nil, fmt.Errorf("generate nonce base: %w", err)
	}
	return r, nil
}

// EncryptReader streams one encryption pass. It owns all per-stream
// state, so readers from the same cipher can run in parallel.
type EncryptReader struct {
	cipher    *StreamCipher
	src       io.Reader
	remaining int64 // plaintext budget, < 0 means unlimited
	nonceBase [NonceSize]byte
	index     uint64
	mac       hash.Hash
	signature string
	buf       []byte
	done      bool
	err       error
}

// Signature returns this stream's hex ciphertext HMAC, or empty until
// the stream is exhausted or when signing is disabled.
func (r *EncryptReader) Signature() string {
	return r.signature
}

func (r *EncryptReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.done {
			return 0, io.EOF
		}
		r.fill()
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *EncryptReader) fill() {
	plain := make([]byte, PlainChunkSize)
	if r.remaining >= 0 && r.remaining < int64(len(plain)) {
		plain = plain[:r.remaining]
	}

	n, err := readFullChunk(r.src, plain)
	if err != nil && err != io.EOF {
		r.err = err
		return
	}

	if n == 0 {
		r.finish()
		return
	}

	if r.remaining >= 0 {
		r.remaining -= int64(n)
	}

	nonce := chunkNonce(&r.nonceBase, r.index)
	r.index++

	out := make([]byte, 0, NonceSize+n+secretbox.Overhead)
	out = append(out, nonce[:]...)
	out = secretbox.Seal(out, plain[:n], &nonce, &r.cipher.encKey)

	if r.mac != nil {
		r.mac.Write(out)
	}
	r.buf = out

	if err == io.EOF || r.remaining == 0 {
		r.finish()
	}
}

func (r *EncryptReader) finish() {
	r.done = true
	if r.mac != nil {
		r.signature = hex.EncodeToString(r.mac.Sum(nil))
		r.cipher.setLastSignature(r.signature)
	}
}

// DecryptStream wraps an encrypted src in a reader producing plaintext.
// At most maxBytes of ciphertext are consumed when maxBytes >= 0.
//
// A non-empty signature demands HMAC verification over all consumed
// ciphertext; the final Read fails with ErrSignatureMismatch on a bad
// signature and ErrMissingSigningKey applies when no key is configured.
// An empty signature skips verification entirely; that skip is the
// caller's explicit decision.
func (c *StreamCipher) DecryptStream(src io.Reader, maxBytes int64, signature string) (io.Reader, error) {
	var (
		mac      hash.Hash
		expected []byte
		err      error
	)

	if signature != "" {
		mac, err = c.newMAC(true)
		if err != nil {
			return nil, err
		}
		expected, err = hex.DecodeString(signature)
		if err != nil {
			return nil, fmt.Errorf("decode signature: %w", err)
		}
	}

	return &decryptReader{
		cipher:    c,
		src:       src,
		remaining: maxBytes,
		mac:       mac,
		expected:  expected,
	}, nil
}

type decryptReader struct {
	cipher    *StreamCipher
	src       io.Reader
	remaining int64
	mac       hash.Hash
	expected  []byte
	buf       []byte
	done      bool
	err       error
}

func (r *decryptReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.done {
			return 0, io.EOF
		}
		r.fill()
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *decryptReader) fill() {
	chunk := make([]byte, ChunkSize)
	if r.remaining >= 0 && r.remaining < int64(len(chunk)) {
		chunk = chunk[:r.remaining]
	}

	n, err := readFullChunk(r.src, chunk)
	if err != nil && err != io.EOF {
		r.err = err
		return
	}

	if n == 0 {
		r.finish()
		return
	}

	if r.remaining >= 0 {
		r.remaining -= int64(n)
	}

	chunk = chunk[:n]
	if r.mac != nil {
		r.mac.Write(chunk)
	}

	if n <= Overhead {
		r.err = fmt.Errorf("%w: truncated chunk of %d bytes", ErrDecryptionFailed, n)
		return
	}

	var nonce [NonceSize]byte
	copy(nonce[:], chunk[:NonceSize])

	plain, ok := secretbox.Open(nil, chunk[NonceSize:], &nonce, &r.cipher.encKey)
	if !ok {
		r.err = ErrDecryptionFailed
		return
	}
	r.buf = plain

	if err == io.EOF || r.remaining == 0 {
		r.finish()
	}
}

func (r *decryptReader) finish() {
	r.done = true
	if r.mac != nil && !hmac.Equal(r.mac.Sum(nil), r.expected) {
		r.err = ErrSignatureMismatch
	}
}

// readFullChunk reads len(buf) bytes unless the stream ends first.
// Returns io.EOF alongside a short (or zero) count at end of stream.
func readFullChunk(src io.Reader, buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, io.EOF
	}
	n, err := io.ReadFull(src, buf)
	switch err {
	case nil:
		return n, nil
	case io.ErrUnexpectedEOF:
		return n, io.EOF
	default:
		return n, err
	}
}

// chunkNonce derives the nonce for chunk index i by adding i to the
// random base, interpreted as a big-endian integer. The base must be
// fresh for every index reset; that is what keeps nonces unique.
func chunkNonce(base *[NonceSize]byte, index uint64) [NonceSize]byte {
	var nonce [NonceSize]byte
	carry := index
	for i := NonceSize - 1; i >= 0; i-- {
		sum := uint64(base[i]) + (carry & 0xFF)
		nonce[i] = byte(sum)
		carry = carry>>8 + sum>>8
	}
	return nonce
}
