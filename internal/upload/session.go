// Package upload drives resumable multipart uploads: it owns the
// session state machine, per-part transfer with bounded retry, and
// crash-recoverable snapshots.
package upload

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/coldvault/coldvault/internal/crypto"
	"github.com/coldvault/coldvault/internal/planner"
)

// State tracks a session's position in the upload lifecycle.
type State string

const (
	StateUnstarted   State = "unstarted"
	StateInitialized State = "initialized"
	StateUploading   State = "uploading"
	StateFinalized   State = "finalized"
	StateFailed      State = "failed"
)

// Session aggregates everything one file-upload attempt needs to
// survive a crash: backend identifiers, the planned chunk list with
// completion flags, and the raw backend responses keyed by phase.
// Key material is deliberately absent; callers re-supply the cipher
// on restore.
type Session struct {
	ID          string                    `json:"id"`
	Vault       string                    `json:"vault"`
	FilePath    string                    `json:"file_path"`
	PartSize    int64                     `json:"part_size"`
	Description string                    `json:"description"`
	UploadID    string                    `json:"upload_id,omitempty"`
	ArchiveID   string                    `json:"archive_id,omitempty"`
	State       State                     `json:"state"`
	Chunks      []*planner.Chunk          `json:"chunks"`
	Responses   map[string][]string       `json:"responses"`
	CreatedAt   time.Time                 `json:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at"`
}

// NewSession creates a session over an already-planned chunk list.
func NewSession(vault, filePath string, partSize int64, description string, chunks []*planner.Chunk) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:          uuid.NewString(),
		Vault:       vault,
		FilePath:    filePath,
		PartSize:    partSize,
		Description: description,
		State:       StateUnstarted,
		Chunks:      chunks,
		Responses:   make(map[string][]string),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Pending counts chunks not yet completed.
func (s *Session) Pending() int {
	pending := 0
	for _, c := range s.Chunks {
		if !c.Completed {
			pending++
		}
	}
	return pending
}

// TransferSize returns the total post-encryption archive size.
func (s *Session) TransferSize() int64 {
	var total int64
	for _, c := range s.Chunks {
		total += c.TransferSize()
	}
	return total
}

// Snapshot serializes the session for crash recovery. Cipher keys are
// never part of the snapshot.
func (s *Session) Snapshot() ([]byte, error) {
	s.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal session snapshot: %w", err)
	}
	return data, nil
}

// RestoreSession rebuilds a session from a snapshot and re-attaches
// key material to its chunks. A session that crashed mid-flight comes
// back in a resumable state: failed or uploading collapses to
// initialized when an upload id exists, unstarted otherwise.
func RestoreSession(data []byte, cipher *crypto.StreamCipher) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal session snapshot: %w", err)
	}

	if s.Responses == nil {
		s.Responses = make(map[string][]string)
	}
	for _, c := range s.Chunks {
		c.SetCipher(cipher)
	}

	switch s.State {
	case StateFinalized:
		// Terminal; nothing to resume.
	case StateFailed, StateUploading, StateInitialized:
		if s.UploadID != "" {
			s.State = StateInitialized
		} else {
			s.State = StateUnstarted
		}
	default:
		s.State = StateUnstarted
	}

	return &s, nil
}
