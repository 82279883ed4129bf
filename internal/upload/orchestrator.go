package upload

import (
	"context"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coldvault/coldvault/internal/backend"
	"github.com/coldvault/coldvault/internal/events"
	"github.com/coldvault/coldvault/internal/models"
	"github.com/coldvault/coldvault/internal/planner"
	"github.com/coldvault/coldvault/internal/treehash"
)

// DefaultMaxPasses bounds the upload retry loop.
const DefaultMaxPasses = 3

// SnapshotSink persists session snapshots for later resume.
type SnapshotSink interface {
	SaveSnapshot(id string, data []byte) error
}

// Orchestrator drives one session through the backend's multipart
// protocol. Chunk transfers may run concurrently; completion
// bookkeeping stays single-writer per chunk because each worker owns
// exactly one chunk at a time.
type Orchestrator struct {
	mu      sync.Mutex
	session *Session
	backend backend.Backend
	logger  *events.Logger

	maxConcurrent int
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sets the number of parallel part transfers.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxConcurrent = n
		}
	}
}

// NewOrchestrator creates an orchestrator for a session.
func NewOrchestrator(session *Session, be backend.Backend, logger *events.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		session:       session,
		backend:       be,
		logger:        logger.WithField("session", session.ID),
		maxConcurrent: 1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Session exposes the orchestrated session.
func (o *Orchestrator) Session() *Session {
	return o.session
}

// Initialize asks the backend for an upload id. A session restored
// with an id already assigned skips the call; a backend that fails or
// returns an empty id is fatal, never retried.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	if o.session.State == StateFinalized {
		return models.ErrSessionFinalized
	}

	if o.session.UploadID != "" {
		o.session.State = StateInitialized
		o.logger.WithField("upload_id", o.session.UploadID).Debug("Resuming initialized session")
		return nil
	}

	uploadID, err := o.backend.InitiateMultipart(ctx, o.session.Vault, o.session.PartSize, o.session.Description)
	if err != nil {
		o.session.State = StateFailed
		return &models.UploadError{
			Code:  models.ErrCodeTransfer,
			Phase: "initialize",
			Vault: o.session.Vault,
			Path:  o.session.FilePath,
			Err:   err,
		}
	}
	if uploadID == "" {
		o.session.State = StateFailed
		return &models.UploadError{
			Code:  models.ErrCodeConfig,
			Phase: "initialize",
			Vault: o.session.Vault,
			Path:  o.session.FilePath,
			Err:   models.ErrInitializationFailed,
		}
	}

	o.session.UploadID = uploadID
	o.session.State = StateInitialized
	o.recordResponse("initialize", uploadID)

	o.logger.WithFields(map[string]interface{}{
		"upload_id": uploadID,
		"chunks":    len(o.session.Chunks),
		"part_size": o.session.PartSize,
	}).Info("Multipart upload initialized")

	return nil
}

// UploadOnce makes one pass over the incomplete chunks. Backend errors
// and checksum mismatches leave the chunk incomplete for the next
// pass; only context cancellation aborts the pass.
func (o *Orchestrator) UploadOnce(ctx context.Context) error {
	if o.session.UploadID == "" {
		return &models.UploadError{
			Code:  models.ErrCodeConfig,
			Phase: "upload",
			Vault: o.session.Vault,
			Path:  o.session.FilePath,
			Err:   models.ErrInitializationFailed,
		}
	}
	o.session.State = StateUploading

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrent)

	for _, chunk := range o.session.Chunks {
		if chunk.Completed {
			continue
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			o.uploadChunk(ctx, chunk)
			return ctx.Err()
		})
	}

	return g.Wait()
}

// uploadChunk sends one part and reconciles the backend's checksum
// acknowledgment. The worker is the chunk's only writer.
func (o *Orchestrator) uploadChunk(ctx context.Context, chunk *planner.Chunk) {
	logger := o.logger.WithFields(map[string]interface{}{
		"chunk": chunk.Index,
		"range": chunk.ByteRange(),
	})

	checksum, err := chunk.ComputeChecksum()
	if err != nil {
		logger.WithError(err).Warn("Failed to read chunk")
		return
	}
	data, err := chunk.Data()
	if err != nil {
		logger.WithError(err).Warn("Failed to read chunk")
		return
	}

	acked, err := o.backend.UploadPart(ctx, o.session.Vault, o.session.UploadID, chunk.ByteRange(), data, checksum)
	if err != nil {
		logger.WithError(err).Warn("Part upload failed, will retry")
		return
	}
	o.recordResponse("upload", acked)

	if acked != checksum {
		logger.WithError(&models.IntegrityError{
			Path:     o.session.FilePath,
			Expected: checksum,
			Actual:   acked,
		}).Warn("Checksum not acknowledged, will retry")
		return
	}

	chunk.MarkCompleted()
	logger.Debug("Part completed")
}

// UploadLoop repeats UploadOnce until every chunk completes or the
// pass budget runs out.
func (o *Orchestrator) UploadLoop(ctx context.Context, maxPasses int) error {
	if maxPasses <= 0 {
		maxPasses = DefaultMaxPasses
	}

	for pass := 1; pass <= maxPasses; pass++ {
		pending := o.session.Pending()
		if pending == 0 {
			return nil
		}

		o.logger.WithFields(map[string]interface{}{
			"pass":    pass,
			"pending": pending,
		}).Info("Upload pass")

		if err := o.UploadOnce(ctx); err != nil {
			return err
		}
	}

	if o.session.Pending() == 0 {
		return nil
	}

	o.session.State = StateFailed
	return &models.UploadError{
		Code:  models.ErrCodeExhausted,
		Phase: "upload",
		Vault: o.session.Vault,
		Path:  o.session.FilePath,
		Err:   fmt.Errorf("%w after %d passes, %d chunks pending",
			models.ErrRetriesExhausted, maxPasses, o.session.Pending()),
	}
}

// Finalize commits the upload. The whole-file tree hash is computed
// over the source content, independent of the per-chunk checksums. A
// checksum the backend does not acknowledge is terminal: the backend
// has consumed its part bookkeeping, so there is nothing to retry.
func (o *Orchestrator) Finalize(ctx context.Context) error {
	if o.session.State == StateFinalized {
		return models.ErrSessionFinalized
	}
	if o.session.UploadID == "" || o.session.Pending() > 0 {
		return &models.UploadError{
			Code:  models.ErrCodeConfig,
			Phase: "finalize",
			Vault: o.session.Vault,
			Path:  o.session.FilePath,
			Err:   fmt.Errorf("session not ready: %d chunks pending", o.session.Pending()),
		}
	}

	f, err := os.Open(o.session.FilePath)
	if err != nil {
		return fmt.Errorf("open source file: %w", err)
	}
	defer f.Close()

	checksum, err := treehash.Hash(f)
	if err != nil {
		return fmt.Errorf("compute archive checksum: %w", err)
	}

	archiveID, acked, err := o.backend.CompleteMultipart(ctx, o.session.Vault, o.session.UploadID, o.session.TransferSize(), checksum)
	if err != nil {
		o.session.State = StateFailed
		return &models.UploadError{
			Code:  models.ErrCodeTransfer,
			Phase: "finalize",
			Vault: o.session.Vault,
			Path:  o.session.FilePath,
			Err:   err,
		}
	}
	o.recordResponse("finalize", acked)

	if acked != checksum {
		o.session.State = StateFailed
		return &models.UploadError{
			Code:  models.ErrCodeExhausted,
			Phase: "finalize",
			Vault: o.session.Vault,
			Path:  o.session.FilePath,
			Err: fmt.Errorf("%w: %w", models.ErrFinalizeMismatch, &models.IntegrityError{
				Path:     o.session.FilePath,
				Expected: checksum,
				Actual:   acked,
			}),
		}
	}

	o.session.ArchiveID = archiveID
	o.session.State = StateFinalized

	o.logger.WithFields(map[string]interface{}{
		"archive_id": archiveID,
		"size":       o.session.TransferSize(),
	}).Info("Upload finalized")

	return nil
}

// Run drives the full lifecycle. Any failure dumps a snapshot to the
// sink before propagating, so partial progress survives for resume.
func (o *Orchestrator) Run(ctx context.Context, sink SnapshotSink, maxPasses int) error {
	err := o.Initialize(ctx)
	if err == nil {
		err = o.UploadLoop(ctx, maxPasses)
	}
	if err == nil {
		err = o.Finalize(ctx)
	}
	if err == nil {
		return nil
	}

	if sink != nil {
		if data, snapErr := o.session.Snapshot(); snapErr != nil {
			o.logger.WithError(snapErr).Error("Failed to serialize session snapshot")
		} else if saveErr := sink.SaveSnapshot(o.session.ID, data); saveErr != nil {
			o.logger.WithError(saveErr).Error("Failed to persist session snapshot")
		} else {
			o.logger.Info("Session snapshot saved for resume")
		}
	}

	return err
}

// recordResponse appends a raw backend response to the session log.
func (o *Orchestrator) recordResponse(phase, resp string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session.Responses[phase] = append(o.session.Responses[phase], resp)
}
