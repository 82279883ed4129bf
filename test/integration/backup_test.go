//go:build integration
// +build integration

package integration_test

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldvault/coldvault/internal/backend"
	"github.com/coldvault/coldvault/internal/client"
	"github.com/coldvault/coldvault/internal/models"
	"github.com/coldvault/coldvault/internal/upload"
	"github.com/coldvault/coldvault/test/testutil"
)

// TestFullBackupFlow drives the whole pipeline against the mock
// backend: plan, encrypt, upload, catalog, audit, and verifies the
// uploaded ciphertext actually decrypts back to the source.
func TestFullBackupFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testutil.TestConfig(t)
	cfg.Upload.PartSize = 16384
	logger := testutil.NewTestLogger()

	mock := backend.NewMockBackend()
	c, err := client.NewWithBackend(cfg, mock, logger)
	require.NoError(t, err)
	defer c.Close()

	cipher := testutil.RandomCipher(t, false)
	path, plain := testutil.RandomFile(t, 60000)

	sess, err := c.Backup.Backup(context.Background(), "photos", path, cipher)
	require.NoError(t, err)
	assert.Equal(t, upload.StateFinalized, sess.State)
	require.NoError(t, c.Backup.Verify("photos", "source.bin"))

	// Reassemble the uploaded parts in range order and decrypt.
	ranges := make([]string, 0, len(mock.Parts))
	for r := range mock.Parts {
		ranges = append(ranges, r)
	}
	sort.Slice(ranges, func(i, j int) bool {
		return rangeStart(t, ranges[i]) < rangeStart(t, ranges[j])
	})

	var ciphertext bytes.Buffer
	for _, r := range ranges {
		ciphertext.Write(mock.Parts[r])
	}

	var recovered bytes.Buffer
	for _, chunk := range sess.Chunks {
		if chunk.PlainSize() == 0 {
			continue
		}
		part := make([]byte, chunk.TransferSize())
		_, err := io.ReadFull(&ciphertext, part)
		require.NoError(t, err)

		dec, err := cipher.DecryptStream(bytes.NewReader(part), -1, "")
		require.NoError(t, err)
		_, err = recovered.ReadFrom(dec)
		require.NoError(t, err)
	}

	assert.Equal(t, plain, recovered.Bytes())
}

// TestCrashResumeFlow interrupts a backup, resumes from the snapshot,
// and finishes without re-sending completed parts.
func TestCrashResumeFlow(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	cfg := testutil.TestConfig(t)
	cfg.Upload.PartSize = 16384
	cfg.Upload.MaxPasses = 1
	logger := testutil.NewTestLogger()

	mock := backend.NewMockBackend()
	c, err := client.NewWithBackend(cfg, mock, logger)
	require.NoError(t, err)
	defer c.Close()

	cipher := testutil.RandomCipher(t, false)
	path, _ := testutil.RandomFile(t, 80000)

	// One part stays faulty through the only pass.
	mock.FailPart("bytes 16384-32767/*", 5)
	sess, err := c.Backup.Backup(context.Background(), "photos", path, cipher)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrRetriesExhausted)

	sentBefore := len(mock.UploadCalls)

	// Fault clears; resume stands in for a restarted process.
	mock.FailPart("bytes 16384-32767/*", 0)
	resumed, err := c.Backup.Resume(context.Background(), sess.ID, cipher)
	require.NoError(t, err)
	assert.Equal(t, upload.StateFinalized, resumed.State)

	// Only the failed part was re-sent after the restart.
	assert.Equal(t, sentBefore+1, len(mock.UploadCalls))
	require.NoError(t, c.Backup.Verify("photos", "source.bin"))
}

func rangeStart(t *testing.T, byteRange string) int64 {
	t.Helper()

	var start, end int64
	n, err := fmt.Sscanf(byteRange, "bytes %d-%d/*", &start, &end)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	return start
}
