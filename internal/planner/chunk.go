package planner

import (
	"fmt"
	"io"
	"os"

	"github.com/coldvault/coldvault/internal/crypto"
	"github.com/coldvault/coldvault/internal/treehash"
)

// Chunk is one physical transfer unit of a planned upload: a plaintext
// byte range of the source file plus the fixed post-encryption part
// size it must fill. PlainEnd is inclusive; an empty boundary chunk
// has PlainEnd == PlainStart-1.
//
// Chunks encrypt their range in isolation with a fresh nonce base, so
// they can be produced and uploaded out of order and re-read after a
// crash without any shared cipher state.
type Chunk struct {
	FilePath   string `json:"file_path"`
	Index      int    `json:"index"`
	PartSize   int64  `json:"part_size"`
	PlainStart int64  `json:"plain_start"`
	PlainEnd   int64  `json:"plain_end"`
	Completed  bool   `json:"completed"`
	Checksum   string `json:"checksum,omitempty"`
	Signature  string `json:"signature,omitempty"`

	cipher *crypto.StreamCipher
	data   []byte
}

// SetCipher re-attaches key material after a snapshot restore. Keys are
// never serialized with the chunk.
func (c *Chunk) SetCipher(cipher *crypto.StreamCipher) {
	c.cipher = cipher
}

// PlainSize returns the plaintext length of the range.
func (c *Chunk) PlainSize() int64 {
	return c.PlainEnd - c.PlainStart + 1
}

// TransferSize returns the exact number of bytes Data will produce.
func (c *Chunk) TransferSize() int64 {
	size := c.PlainSize()
	if c.cipher == nil || size == 0 {
		return size
	}
	nChunks := (size + crypto.PlainChunkSize - 1) / crypto.PlainChunkSize
	return size + nChunks*crypto.Overhead
}

// ByteRange renders the remote content range header for this part, in
// post-encryption coordinates.
func (c *Chunk) ByteRange() string {
	start := int64(c.Index) * c.PartSize
	return fmt.Sprintf("bytes %d-%d/*", start, start+c.TransferSize()-1)
}

// Data returns the transfer bytes, reading and encrypting the range on
// first use. Each chunk opens its own file handle and encrypt stream;
// concurrent chunks never share a cursor or cipher state. The stream
// signature, when signing is enabled, lands in Signature.
func (c *Chunk) Data() ([]byte, error) {
	if c.data != nil || c.PlainSize() == 0 {
		return c.data, nil
	}

	f, err := os.Open(c.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	var src io.Reader = io.NewSectionReader(f, c.PlainStart, c.PlainSize())
	var enc *crypto.EncryptReader
	if c.cipher != nil {
		enc, err = c.cipher.EncryptStream(src, c.PlainSize())
		if err != nil {
			return nil, fmt.Errorf("encrypt chunk %d: %w", c.Index, err)
		}
		src = enc
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("read chunk %d: %w", c.Index, err)
	}

	c.data = data
	if enc != nil {
		c.Signature = enc.Signature()
	}
	return c.data, nil
}

// ComputeChecksum returns the tree hash of the transfer bytes, cached
// across calls. A completed chunk keeps only the cached value.
func (c *Chunk) ComputeChecksum() (string, error) {
	if c.Checksum == "" {
		data, err := c.Data()
		if err != nil {
			return "", err
		}
		c.Checksum = treehash.HashBytes(data)
	}

	if c.Completed {
		c.data = nil
	}
	return c.Checksum, nil
}

// MarkCompleted flags the chunk done and releases its buffer; the
// cached checksum survives for retry comparisons.
func (c *Chunk) MarkCompleted() {
	c.Completed = true
	c.data = nil
}
