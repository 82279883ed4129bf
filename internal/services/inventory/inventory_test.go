package inventory_test

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldvault/coldvault/internal/backend"
	"github.com/coldvault/coldvault/internal/catalog"
	"github.com/coldvault/coldvault/internal/events"
	"github.com/coldvault/coldvault/internal/services/inventory"
)

func newService(t *testing.T) (*inventory.Service, *backend.MockBackend) {
	t.Helper()

	var buf bytes.Buffer
	logger := events.NewTestLogger(events.ErrorLevel, "json", &buf)

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	mock := backend.NewMockBackend()
	return inventory.NewService(mock, cat, logger), mock
}

func TestRequestLogsJob(t *testing.T) {
	svc, mock := newService(t)

	req, err := svc.Request(context.Background(), "vault-a")
	require.NoError(t, err)
	assert.NotEmpty(t, req.JobID)
	assert.False(t, req.Retrieved)
	assert.Len(t, mock.JobRequests, 1)
}

func TestFetchWhileRunning(t *testing.T) {
	svc, mock := newService(t)

	req, err := svc.Request(context.Background(), "vault-a")
	require.NoError(t, err)
	mock.SetRunning(req.JobID)

	out, got, err := svc.Fetch(context.Background(), "vault-a")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Nil(t, got)
}

func TestFetchFinishedJob(t *testing.T) {
	svc, mock := newService(t)

	req, err := svc.Request(context.Background(), "vault-a")
	require.NoError(t, err)
	mock.AddJobOutput(req.JobID, &backend.JobOutput{
		ContentType: "application/json",
		Status:      200,
		Body:        []byte(`{"ArchiveList":[]}`),
	})

	out, got, err := svc.Fetch(context.Background(), "vault-a")
	require.NoError(t, err)
	require.NotNil(t, out)
	require.NotNil(t, got)
	assert.Equal(t, req.JobID, got.JobID)
	assert.True(t, got.Retrieved)
	assert.JSONEq(t, `{"ArchiveList":[]}`, string(out.Body))

	// Retrieved jobs drop out of the pending log.
	out, got, err = svc.Fetch(context.Background(), "vault-a")
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Nil(t, got)
}

func TestFetchSkipsRunningReturnsFinished(t *testing.T) {
	svc, mock := newService(t)

	first, err := svc.Request(context.Background(), "vault-a")
	require.NoError(t, err)
	second, err := svc.Request(context.Background(), "vault-a")
	require.NoError(t, err)

	mock.SetRunning(first.JobID)
	mock.AddJobOutput(second.JobID, &backend.JobOutput{
		ContentType: "application/json",
		Status:      200,
		Body:        []byte(`{}`),
	})

	out, got, err := svc.Fetch(context.Background(), "vault-a")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, second.JobID, got.JobID)
}
