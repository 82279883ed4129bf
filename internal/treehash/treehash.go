// Package treehash implements the hierarchical SHA-256 checksum used
// by cold-archival storage for part and whole-archive verification: a
// binary tree over 1 MiB leaves, odd nodes promoted unpaired.
package treehash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// LeafSize is the fixed leaf span of the hash tree.
const LeafSize = 1 << 20

// Hash consumes r and returns the hex tree hash of its content.
func Hash(r io.Reader) (string, error) {
	var leaves [][sha256.Size]byte

	buf := make([]byte, LeafSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			leaves = append(leaves, sha256.Sum256(buf[:n]))
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read for tree hash: %w", err)
		}
	}

	return hex.EncodeToString(reduce(leaves)), nil
}

// HashBytes returns the hex tree hash of a byte slice.
func HashBytes(data []byte) string {
	var leaves [][sha256.Size]byte
	for start := 0; start < len(data); start += LeafSize {
		end := start + LeafSize
		if end > len(data) {
			end = len(data)
		}
		leaves = append(leaves, sha256.Sum256(data[start:end]))
	}

	return hex.EncodeToString(reduce(leaves))
}

// reduce folds leaf digests pairwise up to the root. The empty input
// hashes to SHA-256 of nothing, matching the backend's convention.
func reduce(level [][sha256.Size]byte) []byte {
	if len(level) == 0 {
		sum := sha256.Sum256(nil)
		return sum[:]
	}

	for len(level) > 1 {
		next := make([][sha256.Size]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				joined := append(level[i][:], level[i+1][:]...)
				next = append(next, sha256.Sum256(joined))
			} else {
				next = append(next, level[i])
			}
		}
		level = next
	}

	return level[0][:]
}
