package backend

import (
	"context"
	"fmt"
	"sync"
)

// MockBackend provides an in-memory Backend for testing.
type MockBackend struct {
	mu sync.Mutex

	// Response configuration
	UploadID     string
	ArchiveID    string
	AckChecksums map[string]string // byteRange -> checksum returned instead of the submitted one
	CompleteAck  string            // overrides the acked checksum on complete when set
	JobOutputs   map[string]*JobOutput
	RunningJobs  []string

	// Error injection
	InitiateError error
	UploadError   error
	UploadErrors  map[string]error // byteRange -> error, consumed once per call budget
	UploadFailN   map[string]int   // byteRange -> remaining failures before success
	CompleteError error
	JobError      error

	// Request tracking
	InitiateCalls []InitiateCall
	UploadCalls   []UploadCall
	CompleteCalls []CompleteCall
	JobRequests   []string

	// State
	Parts map[string][]byte // byteRange -> uploaded data
}

// InitiateCall tracks multipart initiation requests.
type InitiateCall struct {
	Vault       string
	PartSize    int64
	Description string
}

// UploadCall tracks part upload requests.
type UploadCall struct {
	Vault     string
	UploadID  string
	ByteRange string
	Size      int
	Checksum  string
}

// CompleteCall tracks completion requests.
type CompleteCall struct {
	Vault     string
	UploadID  string
	TotalSize int64
	Checksum  string
}

// NewMockBackend creates a mock backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		UploadID:     "mock-upload-id",
		ArchiveID:    "mock-archive-id",
		AckChecksums: make(map[string]string),
		JobOutputs:   make(map[string]*JobOutput),
		UploadErrors: make(map[string]error),
		UploadFailN:  make(map[string]int),
		Parts:        make(map[string][]byte),
	}
}

// InitiateMultipart mocks upload initiation.
func (m *MockBackend) InitiateMultipart(ctx context.Context, vault string, partSize int64, description string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InitiateCalls = append(m.InitiateCalls, InitiateCall{
		Vault:       vault,
		PartSize:    partSize,
		Description: description,
	})

	if m.InitiateError != nil {
		return "", m.InitiateError
	}

	return m.UploadID, nil
}

// UploadPart mocks part upload. The submitted checksum is echoed back
// unless an override is configured for the byte range.
func (m *MockBackend) UploadPart(ctx context.Context, vault, uploadID, byteRange string, data []byte, checksum string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UploadCalls = append(m.UploadCalls, UploadCall{
		Vault:     vault,
		UploadID:  uploadID,
		ByteRange: byteRange,
		Size:      len(data),
		Checksum:  checksum,
	})

	if m.UploadError != nil {
		return "", m.UploadError
	}

	if n, ok := m.UploadFailN[byteRange]; ok && n > 0 {
		m.UploadFailN[byteRange] = n - 1
		return "", fmt.Errorf("injected failure for %s", byteRange)
	}

	if err, ok := m.UploadErrors[byteRange]; ok {
		delete(m.UploadErrors, byteRange)
		return "", err
	}

	m.Parts[byteRange] = append([]byte(nil), data...)

	if ack, ok := m.AckChecksums[byteRange]; ok {
		return ack, nil
	}
	return checksum, nil
}

// CompleteMultipart mocks upload completion.
func (m *MockBackend) CompleteMultipart(ctx context.Context, vault, uploadID string, totalSize int64, checksum string) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CompleteCalls = append(m.CompleteCalls, CompleteCall{
		Vault:     vault,
		UploadID:  uploadID,
		TotalSize: totalSize,
		Checksum:  checksum,
	})

	if m.CompleteError != nil {
		return "", "", m.CompleteError
	}

	ack := checksum
	if m.CompleteAck != "" {
		ack = m.CompleteAck
	}
	return m.ArchiveID, ack, nil
}

// ListInProgressJobs mocks job listing.
func (m *MockBackend) ListInProgressJobs(ctx context.Context, vault string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.JobError != nil {
		return nil, m.JobError
	}

	return append([]string(nil), m.RunningJobs...), nil
}

// RequestInventoryJob mocks inventory job initiation.
func (m *MockBackend) RequestInventoryJob(ctx context.Context, vault string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.JobError != nil {
		return "", m.JobError
	}

	jobID := fmt.Sprintf("mock-job-%d", len(m.JobRequests))
	m.JobRequests = append(m.JobRequests, jobID)
	return jobID, nil
}

// FetchJobOutput mocks job output retrieval. Jobs listed as running
// return nil output.
func (m *MockBackend) FetchJobOutput(ctx context.Context, vault, jobID string) (*JobOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.JobError != nil {
		return nil, m.JobError
	}

	for _, id := range m.RunningJobs {
		if id == jobID {
			return nil, nil
		}
	}

	if out, ok := m.JobOutputs[jobID]; ok {
		return out, nil
	}
	return nil, fmt.Errorf("no mock output for job %s", jobID)
}

// Helper methods for test setup

// SetRunning marks a job as still in progress.
func (m *MockBackend) SetRunning(jobIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunningJobs = jobIDs
}

// AddJobOutput configures the output for a finished job.
func (m *MockBackend) AddJobOutput(jobID string, out *JobOutput) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.JobOutputs[jobID] = out
}

// FailPart makes the next n uploads of a byte range fail.
func (m *MockBackend) FailPart(byteRange string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UploadFailN[byteRange] = n
}

// WrongAck makes a byte range upload ack with a bogus checksum.
func (m *MockBackend) WrongAck(byteRange, checksum string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AckChecksums[byteRange] = checksum
}

// CallsForRange counts upload attempts for a byte range.
func (m *MockBackend) CallsForRange(byteRange string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	count := 0
	for _, call := range m.UploadCalls {
		if call.ByteRange == byteRange {
			count++
		}
	}
	return count
}
