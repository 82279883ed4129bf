// Package backend abstracts the cold-archival storage API. Any
// provider offering initiate/upload-part/complete multipart semantics
// with tree-hash checksum acknowledgments can sit behind it.
package backend

import "context"

// JobOutput is the result of a completed retrieval job.
type JobOutput struct {
	ContentType string
	Status      int
	Body        []byte
}

// Backend is the remote operation contract consumed by the upload
// orchestrator and the inventory service. Implementations own the wire
// protocol; callers own retry policy and integrity decisions.
type Backend interface {
	// InitiateMultipart starts a multipart upload and returns the
	// backend-assigned upload id.
	InitiateMultipart(ctx context.Context, vault string, partSize int64, description string) (string, error)

	// UploadPart transfers one part and returns the checksum the
	// backend acknowledged for it.
	UploadPart(ctx context.Context, vault, uploadID, byteRange string, data []byte, checksum string) (string, error)

	// CompleteMultipart commits the upload and returns the archive id
	// plus the checksum the backend acknowledged for the whole archive.
	CompleteMultipart(ctx context.Context, vault, uploadID string, totalSize int64, checksum string) (archiveID, ackedChecksum string, err error)

	// ListInProgressJobs returns ids of retrieval jobs still running.
	ListInProgressJobs(ctx context.Context, vault string) ([]string, error)

	// RequestInventoryJob starts an inventory retrieval job.
	RequestInventoryJob(ctx context.Context, vault string) (string, error)

	// FetchJobOutput returns the output of a finished job, or nil
	// while the job is still running.
	FetchJobOutput(ctx context.Context, vault, jobID string) (*JobOutput, error)
}
