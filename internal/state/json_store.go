package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/coldvault/coldvault/internal/events"
)

// JSONStore implements file-based snapshot storage.
type JSONStore struct {
	baseDir string
	logger  *events.Logger

	// Locking
	mu    sync.RWMutex
	locks map[string]*sync.Mutex
}

// NewJSONStore creates a JSON-based snapshot store.
func NewJSONStore(baseDir string, logger *events.Logger) (*JSONStore, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create state directory: %w", err)
	}

	return &JSONStore{
		baseDir: baseDir,
		logger:  logger.WithField("component", "json_state_store"),
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// Load reads a snapshot, falling back to the backup copy when the
// primary file is corrupt or fails its checksum.
func (s *JSONStore) Load(sessionID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	path := s.snapshotPath(sessionID)

	s.logger.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"path":       path,
	}).Debug("Loading snapshot")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, ErrSnapshotNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if snapshot, err := s.loadBackup(sessionID); err == nil {
			s.logger.Warn("Loaded snapshot from backup due to corruption")
			return snapshot, nil
		}
		return nil, ErrSnapshotCorrupt
	}

	if env.Checksum != "" {
		calculated := checksumOf(env)
		if calculated != env.Checksum {
			s.logger.WithFields(map[string]interface{}{
				"expected": env.Checksum,
				"actual":   calculated,
			}).Error("Snapshot checksum mismatch")

			if snapshot, err := s.loadBackup(sessionID); err == nil {
				return snapshot, nil
			}
			return nil, ErrSnapshotCorrupt
		}
	}

	if env.SchemaVersion != CurrentSchemaVersion {
		s.logger.WithField("version", env.SchemaVersion).Warn("Snapshot schema version mismatch")
	}

	return env.Snapshot, nil
}

// SaveSnapshot writes a snapshot atomically, keeping the previous
// version as a backup.
func (s *JSONStore) SaveSnapshot(sessionID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.snapshotPath(sessionID)

	s.logger.WithFields(map[string]interface{}{
		"session_id": sessionID,
		"bytes":      len(data),
	}).Debug("Saving snapshot")

	env := envelope{
		Snapshot:      json.RawMessage(data),
		SchemaVersion: CurrentSchemaVersion,
		CreatedAt:     time.Now(),
	}
	env.Checksum = checksumOf(env)

	jsonData, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot envelope: %w", err)
	}

	// Keep the previous version around in case the write is interrupted.
	if _, err := os.Stat(path); err == nil {
		backupPath := path + ".backup"
		if err := s.copyFile(path, backupPath); err != nil {
			s.logger.WithError(err).Warn("Failed to create backup")
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, jsonData, 0600); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}

	if file, err := os.Open(tmpPath); err == nil {
		_ = file.Sync()
		file.Close()
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot file: %w", err)
	}

	return nil
}

// Delete removes a session's snapshot and backup.
func (s *JSONStore) Delete(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.WithField("session_id", sessionID).Info("Deleting snapshot")

	path := s.snapshotPath(sessionID)
	_ = os.Remove(path)
	_ = os.Remove(path + ".backup")

	return nil
}

// List returns all session IDs with snapshots.
func (s *JSONStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read state directory: %w", err)
	}

	var sessionIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if filepath.Ext(name) == ".json" && !strings.HasSuffix(name, ".backup.json") {
			sessionIDs = append(sessionIDs, strings.TrimSuffix(name, ".json"))
		}
	}

	return sessionIDs, nil
}

// Lock acquires a lock for a session.
func (s *JSONStore) Lock(sessionID string) (UnlockFunc, error) {
	s.mu.Lock()
	lock, exists := s.locks[sessionID]
	if !exists {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		lock.Lock()
		close(done)
	}()

	select {
	case <-done:
		return func() { lock.Unlock() }, nil
	case <-time.After(5 * time.Second):
		return nil, ErrSnapshotLocked
	}
}

// Close releases resources.
func (s *JSONStore) Close() error {
	return nil
}

// Helper methods

func (s *JSONStore) snapshotPath(sessionID string) string {
	return filepath.Join(s.baseDir, sessionID+".json")
}

func (s *JSONStore) loadBackup(sessionID string) ([]byte, error) {
	data, err := os.ReadFile(s.snapshotPath(sessionID) + ".backup")
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	return env.Snapshot, nil
}

func (s *JSONStore) copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}

// checksumOf hashes the envelope with its checksum field cleared.
func checksumOf(env envelope) string {
	env.Checksum = ""
	data, _ := json.Marshal(env)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
