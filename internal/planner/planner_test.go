package planner_test

import (
	"bytes"
	"crypto/rand"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldvault/coldvault/internal/crypto"
	"github.com/coldvault/coldvault/internal/planner"
	"github.com/coldvault/coldvault/internal/treehash"
)

func testCipher(t *testing.T, signing bool) *crypto.StreamCipher {
	t.Helper()

	params, err := crypto.DefaultParams(signing)
	require.NoError(t, err)
	params.Ops = 1
	params.Mem = 64

	keys, err := crypto.DeriveKeys([]byte("planner test password"), params)
	require.NoError(t, err)

	cipher, err := crypto.NewStreamCipher(keys)
	require.NoError(t, err)
	return cipher
}

func writeTempFile(t *testing.T, size int) string {
	t.Helper()

	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "source.bin")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func TestPlanWithoutCipher(t *testing.T) {
	path := writeTempFile(t, 8)

	chunks, err := planner.Plan(path, 5, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	assert.Equal(t, int64(0), chunks[0].PlainStart)
	assert.Equal(t, int64(4), chunks[0].PlainEnd)
	assert.Equal(t, int64(5), chunks[1].PlainStart)
	assert.Equal(t, int64(7), chunks[1].PlainEnd)
	assert.Equal(t, int64(3), chunks[1].PlainSize())
}

func TestPlanExactMultipleEmitsBoundaryChunk(t *testing.T) {
	path := writeTempFile(t, 10)

	chunks, err := planner.Plan(path, 5, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	last := chunks[2]
	assert.Equal(t, int64(10), last.PlainStart)
	assert.Equal(t, int64(9), last.PlainEnd)
	assert.Zero(t, last.PlainSize())

	data, err := last.Data()
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestPlanZeroByteFile(t *testing.T) {
	path := writeTempFile(t, 0)

	chunks, err := planner.Plan(path, 5, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Zero(t, chunks[0].PlainSize())
}

func TestPlanTenMiBWithCipher(t *testing.T) {
	const (
		fileSize = 10 * 1024 * 1024
		partSize = 1024 * 1024
	)

	path := writeTempFile(t, fileSize)
	cipher := testCipher(t, false)

	step, err := crypto.UnencryptedBlockSize(partSize)
	require.NoError(t, err)

	chunks, err := planner.Plan(path, partSize, cipher)
	require.NoError(t, err)

	// Chunk count must cover the file exactly: full steps plus one
	// shorter tail chunk.
	wantChunks := int(fileSize/step) + 1
	require.Len(t, chunks, wantChunks)
	assert.Greater(t, int64(wantChunks)*step, int64(fileSize))

	last := chunks[len(chunks)-1]
	assert.Less(t, last.PlainSize(), step)
	assert.Positive(t, last.PlainSize())

	// The partition must be gapless.
	var covered int64
	for i, c := range chunks {
		assert.Equal(t, covered, c.PlainStart, "chunk %d", i)
		covered += c.PlainSize()
	}
	assert.Equal(t, int64(fileSize), covered)

	// Every full chunk encrypts to exactly the target part size.
	data, err := chunks[0].Data()
	require.NoError(t, err)
	assert.Equal(t, partSize, len(data))
	assert.Equal(t, int64(partSize), chunks[0].TransferSize())
}

func TestChunkDataEncryptsIndependently(t *testing.T) {
	path := writeTempFile(t, 3*crypto.PlainChunkSize)
	cipher := testCipher(t, false)

	chunks, err := planner.Plan(path, crypto.ChunkSize, cipher)
	require.NoError(t, err)
	require.Len(t, chunks, 4) // 3 full + boundary chunk

	// Each chunk decrypts back to its own plaintext range.
	source, err := os.ReadFile(path)
	require.NoError(t, err)

	for _, c := range chunks[:3] {
		data, err := c.Data()
		require.NoError(t, err)

		dec, err := cipher.DecryptStream(bytes.NewReader(data), -1, "")
		require.NoError(t, err)
		plain, err := io.ReadAll(dec)
		require.NoError(t, err)

		assert.Equal(t, source[c.PlainStart:c.PlainEnd+1], plain)
	}
}

func TestChunkChecksumCachedAcrossRelease(t *testing.T) {
	path := writeTempFile(t, 1000)

	chunks, err := planner.Plan(path, 2000, nil)
	require.NoError(t, err)
	chunk := chunks[0]

	sum, err := chunk.ComputeChecksum()
	require.NoError(t, err)

	data, err := chunk.Data()
	require.NoError(t, err)
	assert.Equal(t, treehash.HashBytes(data), sum)

	chunk.MarkCompleted()

	// The buffer is gone but the checksum survives for retry
	// comparisons.
	again, err := chunk.ComputeChecksum()
	require.NoError(t, err)
	assert.Equal(t, sum, again)
}

func TestChunkByteRange(t *testing.T) {
	path := writeTempFile(t, 1000)

	chunks, err := planner.Plan(path, 400, nil)
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "bytes 0-399/*", chunks[0].ByteRange())
	assert.Equal(t, "bytes 400-799/*", chunks[1].ByteRange())
	assert.Equal(t, "bytes 800-999/*", chunks[2].ByteRange())
}

func TestPlanMisalignedPartSizeWithCipher(t *testing.T) {
	path := writeTempFile(t, 100)

	_, err := planner.Plan(path, crypto.ChunkSize+1, testCipher(t, false))
	assert.ErrorIs(t, err, crypto.ErrNotAligned)
}

func TestPlanMissingFile(t *testing.T) {
	_, err := planner.Plan(filepath.Join(t.TempDir(), "absent"), 5, nil)
	assert.Error(t, err)
}
