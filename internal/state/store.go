// Package state persists upload session snapshots between runs. A
// snapshot is opaque JSON produced by the upload package; the store
// wraps it in an envelope carrying a schema version and checksum so
// corruption is detected before a resume attempt trusts the content.
package state

import (
	"encoding/json"
	"errors"
	"time"
)

// Store manages session snapshot persistence.
type Store interface {
	// Load retrieves a session snapshot by id.
	Load(sessionID string) ([]byte, error)

	// SaveSnapshot persists a session snapshot.
	SaveSnapshot(sessionID string, data []byte) error

	// Delete removes a session snapshot and its backup.
	Delete(sessionID string) error

	// List returns all known session IDs.
	List() ([]string, error)

	// Lock acquires an exclusive lock for a session.
	Lock(sessionID string) (UnlockFunc, error)

	// Close releases resources.
	Close() error
}

// UnlockFunc releases a session lock.
type UnlockFunc func()

// Errors
var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSnapshotLocked   = errors.New("snapshot is locked")
	ErrSnapshotCorrupt  = errors.New("snapshot file is corrupt")
)

// envelope wraps a raw snapshot with store metadata.
type envelope struct {
	Snapshot      json.RawMessage `json:"snapshot"`
	SchemaVersion int             `json:"schema_version"`
	CreatedAt     time.Time       `json:"created_at"`
	Checksum      string          `json:"checksum,omitempty"`
}

// CurrentSchemaVersion for migrations.
const CurrentSchemaVersion = 1
