package catalog_test

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldvault/coldvault/internal/catalog"
	"github.com/coldvault/coldvault/internal/events"
	"github.com/coldvault/coldvault/internal/models"
	"github.com/coldvault/coldvault/internal/planner"
)

func newCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	return cat
}

func TestEnsureProject(t *testing.T) {
	cat := newCatalog(t)

	p1, err := cat.EnsureProject("photos")
	require.NoError(t, err)
	assert.Equal(t, "photos", p1.Name)
	assert.NotZero(t, p1.ID)

	// Idempotent.
	p2, err := cat.EnsureProject("photos")
	require.NoError(t, err)
	assert.Equal(t, p1.ID, p2.ID)

	_, err = cat.Project("missing")
	assert.ErrorIs(t, err, catalog.ErrProjectNotFound)
}

func TestUpsertFile(t *testing.T) {
	cat := newCatalog(t)

	p, err := cat.EnsureProject("docs")
	require.NoError(t, err)

	f1, err := cat.UpsertFile(p.ID, "report.pdf", "/data/report.pdf", 1000)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), f1.Size)
	assert.False(t, f1.Outdated)

	require.NoError(t, cat.MarkOutdated(f1.ID))
	stale, err := cat.File(p.ID, "report.pdf")
	require.NoError(t, err)
	assert.True(t, stale.Outdated)

	// Re-upserting refreshes size and clears the outdated flag.
	f2, err := cat.UpsertFile(p.ID, "report.pdf", "/data/report.pdf", 2000)
	require.NoError(t, err)
	assert.Equal(t, f1.ID, f2.ID)
	assert.Equal(t, int64(2000), f2.Size)
	assert.False(t, f2.Outdated)

	_, err = cat.File(p.ID, "missing.pdf")
	assert.ErrorIs(t, err, catalog.ErrFileNotFound)
}

func TestReplaceChunksAndValidate(t *testing.T) {
	cat := newCatalog(t)

	p, err := cat.EnsureProject("backups")
	require.NoError(t, err)
	f, err := cat.UpsertFile(p.ID, "archive.bin", "/data/archive.bin", 8)
	require.NoError(t, err)

	chunks := []models.StoredChunk{
		{FileID: f.ID, UploadID: "u1", Checksum: "c1", StartOffset: 0, Size: 5, Encrypted: true},
		{FileID: f.ID, UploadID: "u1", Checksum: "c2", StartOffset: 5, Size: 3, Encrypted: true},
	}
	require.NoError(t, cat.ReplaceChunks(f.ID, chunks))

	stored, err := cat.ChunksForFile(f.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, int64(0), stored[0].StartOffset)
	assert.Equal(t, "c2", stored[1].Checksum)
	assert.True(t, stored[0].Encrypted)

	// The recorded partition audits clean against the file size.
	assert.NoError(t, planner.ValidateRange(stored, 8))

	// Replacing is atomic: the new set fully supersedes the old.
	require.NoError(t, cat.ReplaceChunks(f.ID, chunks[:1]))
	stored, err = cat.ChunksForFile(f.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.ErrorIs(t, planner.ValidateRange(stored, 8), models.ErrSizeMismatch)
}

func TestInventoryRequests(t *testing.T) {
	cat := newCatalog(t)

	req, err := cat.RecordInventoryRequest("vault-a", "job-1")
	require.NoError(t, err)
	assert.False(t, req.Retrieved)

	_, err = cat.RecordInventoryRequest("vault-b", "job-2")
	require.NoError(t, err)

	pending, err := cat.PendingInventoryRequests("vault-a")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "job-1", pending[0].JobID)

	require.NoError(t, cat.MarkInventoryRetrieved(req.ID))

	pending, err = cat.PendingInventoryRequests("vault-a")
	require.NoError(t, err)
	assert.Empty(t, pending)
}
