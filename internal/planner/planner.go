// Package planner splits source files into upload-sized parts,
// reconciling the cipher's per-chunk expansion with the backend's
// fixed part size, and audits catalogued chunk partitions.
package planner

import (
	"fmt"
	"os"

	"github.com/coldvault/coldvault/internal/crypto"
)

// Plan maps the file's plaintext into parts of targetPartSize
// post-encryption bytes. With a cipher, the plaintext step per part
// shrinks to what expands into exactly targetPartSize; without one the
// step is the part size itself.
//
// A file whose size is an exact multiple of the step gets a trailing
// empty boundary chunk, and a zero-byte file yields exactly one.
// Callers must expect these, not skip them.
func Plan(filePath string, targetPartSize int64, cipher *crypto.StreamCipher) ([]*Chunk, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	total := info.Size()

	step := targetPartSize
	if cipher != nil {
		step, err = crypto.UnencryptedBlockSize(targetPartSize)
		if err != nil {
			return nil, err
		}
	}
	if step <= 0 {
		return nil, fmt.Errorf("part size %d leaves no room for content", targetPartSize)
	}

	var chunks []*Chunk
	position := int64(0)
	for {
		end := position + step
		if end > total {
			end = total
		}

		chunks = append(chunks, &Chunk{
			FilePath:   filePath,
			Index:      len(chunks),
			PartSize:   targetPartSize,
			PlainStart: position,
			PlainEnd:   end - 1,
			cipher:     cipher,
		})

		if end-position < step || end == position {
			// A short or empty chunk is always the last.
			break
		}
		position = end
		if position < total {
			continue
		}

		// Exact multiple of the step: emit the empty boundary chunk.
		chunks = append(chunks, &Chunk{
			FilePath:   filePath,
			Index:      len(chunks),
			PartSize:   targetPartSize,
			PlainStart: position,
			PlainEnd:   position - 1,
			cipher:     cipher,
		})
		break
	}

	return chunks, nil
}
