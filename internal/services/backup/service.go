// Package backup wires key derivation, chunk planning, the upload
// orchestrator and the catalog into the end-to-end backup flow.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/coldvault/coldvault/internal/backend"
	"github.com/coldvault/coldvault/internal/catalog"
	"github.com/coldvault/coldvault/internal/config"
	"github.com/coldvault/coldvault/internal/crypto"
	"github.com/coldvault/coldvault/internal/events"
	"github.com/coldvault/coldvault/internal/models"
	"github.com/coldvault/coldvault/internal/planner"
	"github.com/coldvault/coldvault/internal/state"
	"github.com/coldvault/coldvault/internal/upload"
)

// Service manages backup operations.
type Service struct {
	cfg     *config.Config
	backend backend.Backend
	catalog *catalog.Catalog
	store   state.Store
	logger  *events.Logger
}

// NewService creates a backup service.
func NewService(cfg *config.Config, be backend.Backend, cat *catalog.Catalog, store state.Store, logger *events.Logger) *Service {
	return &Service{
		cfg:     cfg,
		backend: be,
		catalog: cat,
		store:   store,
		logger:  logger.WithField("service", "backup"),
	}
}

// PrepareKeys loads the persisted key derivation record, creating one
// on first use, and derives the cipher from the password. Derivation
// is deliberately expensive; call it once per run.
func (s *Service) PrepareKeys(password []byte) (*crypto.StreamCipher, error) {
	path := s.cfg.Storage.KeyParams

	params, err := crypto.LoadParams(path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.WithField("path", path).Info("Creating key derivation record")

		params, err = crypto.ParamsForConstruct(s.cfg.KDF.Construct, s.cfg.KDF.EnableSigning)
		if err != nil {
			return nil, err
		}
		if err := params.Save(path); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	keys, err := crypto.DeriveKeys(password, params)
	if err != nil {
		return nil, err
	}

	return crypto.NewStreamCipher(keys)
}

// Backup plans, encrypts and uploads one file, then records its chunk
// partition in the catalog. The returned session is valid even on
// error; a snapshot has already been persisted for resume.
func (s *Service) Backup(ctx context.Context, project, filePath string, cipher *crypto.StreamCipher) (*upload.Session, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}

	chunks, err := planner.Plan(filePath, s.cfg.Upload.PartSize, cipher)
	if err != nil {
		return nil, err
	}

	description := project + "/" + filepath.Base(filePath)
	sess := upload.NewSession(s.cfg.Vault.Name, filePath, s.cfg.Upload.PartSize, description, chunks)

	s.logger.WithFields(map[string]interface{}{
		"session":   sess.ID,
		"file":      filePath,
		"size":      info.Size(),
		"chunks":    len(chunks),
		"encrypted": cipher != nil,
	}).Info("Starting backup")

	orch := upload.NewOrchestrator(sess, s.backend, s.logger,
		upload.WithConcurrency(s.cfg.Upload.MaxConcurrent))

	if err := orch.Run(ctx, s.store, s.cfg.Upload.MaxPasses); err != nil {
		return sess, err
	}

	if err := s.recordResult(sess, cipher != nil, info.Size()); err != nil {
		return sess, err
	}

	_ = s.store.Delete(sess.ID)
	return sess, nil
}

// Resume reloads a snapshotted session and drives it to completion.
// The caller re-supplies the cipher; keys are never part of the
// snapshot.
func (s *Service) Resume(ctx context.Context, sessionID string, cipher *crypto.StreamCipher) (*upload.Session, error) {
	data, err := s.store.Load(sessionID)
	if err != nil {
		return nil, err
	}

	sess, err := upload.RestoreSession(data, cipher)
	if err != nil {
		return nil, err
	}
	if sess.State == upload.StateFinalized {
		return sess, models.ErrSessionFinalized
	}

	s.logger.WithFields(map[string]interface{}{
		"session": sess.ID,
		"file":    sess.FilePath,
		"pending": sess.Pending(),
	}).Info("Resuming backup")

	info, err := os.Stat(sess.FilePath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}

	orch := upload.NewOrchestrator(sess, s.backend, s.logger,
		upload.WithConcurrency(s.cfg.Upload.MaxConcurrent))

	if err := orch.Run(ctx, s.store, s.cfg.Upload.MaxPasses); err != nil {
		return sess, err
	}

	if err := s.recordResult(sess, cipher != nil, info.Size()); err != nil {
		return sess, err
	}

	_ = s.store.Delete(sess.ID)
	return sess, nil
}

// Sessions lists snapshot IDs available for resume.
func (s *Service) Sessions() ([]string, error) {
	return s.store.List()
}

// Verify audits a catalogued file's chunk partition for gaps and
// overlaps.
func (s *Service) Verify(project, fileName string) error {
	p, err := s.catalog.Project(project)
	if err != nil {
		return err
	}

	f, err := s.catalog.File(p.ID, fileName)
	if err != nil {
		return err
	}

	chunks, err := s.catalog.ChunksForFile(f.ID)
	if err != nil {
		return err
	}

	if err := planner.ValidateRange(chunks, f.Size); err != nil {
		s.logger.WithError(err).WithField("file", fileName).Error("Chunk partition audit failed")
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"file":   fileName,
		"chunks": len(chunks),
	}).Info("Chunk partition verified")
	return nil
}

// recordResult writes the finished session's chunk partition to the
// catalog and audits it immediately. Empty boundary chunks transfer
// no plaintext and are not catalogued.
func (s *Service) recordResult(sess *upload.Session, encrypted bool, fileSize int64) error {
	project, fileName := splitDescription(sess.Description)

	p, err := s.catalog.EnsureProject(project)
	if err != nil {
		return err
	}

	f, err := s.catalog.UpsertFile(p.ID, fileName, sess.FilePath, fileSize)
	if err != nil {
		return err
	}

	var stored []models.StoredChunk
	for _, chunk := range sess.Chunks {
		if chunk.PlainSize() == 0 {
			continue
		}
		stored = append(stored, models.StoredChunk{
			FileID:      f.ID,
			UploadID:    sess.UploadID,
			Checksum:    chunk.Checksum,
			Signature:   chunk.Signature,
			StartOffset: chunk.PlainStart,
			Size:        chunk.PlainSize(),
			Encrypted:   encrypted,
		})
	}

	if err := s.catalog.ReplaceChunks(f.ID, stored); err != nil {
		return err
	}

	// A zero-byte file uploads a single empty boundary chunk and has
	// no partition to audit.
	if fileSize == 0 && len(stored) == 0 {
		return nil
	}
	return planner.ValidateRange(stored, fileSize)
}

// splitDescription recovers project and file name from the archive
// description written by Backup.
func splitDescription(description string) (project, fileName string) {
	if i := strings.IndexByte(description, '/'); i >= 0 {
		return description[:i], description[i+1:]
	}
	return "default", description
}
