package planner

import (
	"sort"

	"github.com/coldvault/coldvault/internal/models"
)

// ValidateRange checks that the catalogued chunks of a file form a
// contiguous, non-overlapping partition of [0, fileSize).
//
// It takes the symmetric difference of the chunk start offsets and the
// chunk end offsets: in a correct partition every interior boundary is
// both one chunk's end and the next chunk's start and cancels out,
// leaving exactly 0 and fileSize.
func ValidateRange(chunks []models.StoredChunk, fileSize int64) error {
	starts := make(map[int64]struct{}, len(chunks))
	ends := make(map[int64]struct{}, len(chunks))
	for _, c := range chunks {
		starts[c.StartOffset] = struct{}{}
		ends[c.End()] = struct{}{}
	}

	var unpaired []int64
	for s := range starts {
		if _, ok := ends[s]; !ok {
			unpaired = append(unpaired, s)
		}
	}
	for e := range ends {
		if _, ok := starts[e]; !ok {
			unpaired = append(unpaired, e)
		}
	}
	sort.Slice(unpaired, func(i, j int) bool { return unpaired[i] < unpaired[j] })

	fail := func(kind error) error {
		return &models.BoundaryError{Kind: kind, FileSize: fileSize, Unpaired: unpaired}
	}

	if !containsOffset(unpaired, 0) {
		return fail(models.ErrMissingLeadingChunk)
	}
	if !containsOffset(unpaired, fileSize) {
		return fail(models.ErrSizeMismatch)
	}
	if len(unpaired) > 2 {
		return fail(models.ErrNonContiguousChunks)
	}

	return nil
}

func containsOffset(offsets []int64, want int64) bool {
	for _, o := range offsets {
		if o == want {
			return true
		}
	}
	return false
}
