package treehash_test

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldvault/coldvault/internal/treehash"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()

	data := make([]byte, n)
	_, err := rand.Read(data)
	require.NoError(t, err)
	return data
}

func TestHashBytesSingleLeaf(t *testing.T) {
	// Anything up to one leaf hashes to a plain SHA-256.
	for _, size := range []int{1, 100, treehash.LeafSize} {
		data := randomBytes(t, size)
		want := sha256.Sum256(data)
		assert.Equal(t, hex.EncodeToString(want[:]), treehash.HashBytes(data), "size %d", size)
	}
}

func TestHashBytesEmpty(t *testing.T) {
	want := sha256.Sum256(nil)
	assert.Equal(t, hex.EncodeToString(want[:]), treehash.HashBytes(nil))
}

func TestHashBytesTwoLeaves(t *testing.T) {
	data := randomBytes(t, treehash.LeafSize+5000)

	left := sha256.Sum256(data[:treehash.LeafSize])
	right := sha256.Sum256(data[treehash.LeafSize:])
	root := sha256.Sum256(append(left[:], right[:]...))

	assert.Equal(t, hex.EncodeToString(root[:]), treehash.HashBytes(data))
}

func TestHashBytesThreeLeaves(t *testing.T) {
	// Odd leaf is promoted unpaired to the next level.
	data := randomBytes(t, 2*treehash.LeafSize+1)

	l0 := sha256.Sum256(data[:treehash.LeafSize])
	l1 := sha256.Sum256(data[treehash.LeafSize : 2*treehash.LeafSize])
	l2 := sha256.Sum256(data[2*treehash.LeafSize:])

	pair := sha256.Sum256(append(l0[:], l1[:]...))
	root := sha256.Sum256(append(pair[:], l2[:]...))

	assert.Equal(t, hex.EncodeToString(root[:]), treehash.HashBytes(data))
}

func TestHashReaderMatchesBytes(t *testing.T) {
	data := randomBytes(t, 3*treehash.LeafSize+12345)

	got, err := treehash.Hash(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, treehash.HashBytes(data), got)
}
