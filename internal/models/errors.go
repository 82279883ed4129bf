package models

import (
	"errors"
	"fmt"
)

// Error codes for structured error handling.
const (
	ErrCodeConfig    = "CONFIG_ERROR"    // bad configuration, never retried
	ErrCodeTransfer  = "TRANSFER_ERROR"  // transient, retried within the pass limit
	ErrCodeIntegrity = "INTEGRITY_ERROR" // fatal, never auto-corrected
	ErrCodeExhausted = "EXHAUSTED"       // fatal, requires operator intervention
)

// Sentinel errors
var (
	ErrInitializationFailed = errors.New("backend returned no upload id")
	ErrRetriesExhausted     = errors.New("upload retries exhausted")
	ErrFinalizeMismatch     = errors.New("finalize checksum not acknowledged")
	ErrSessionFinalized     = errors.New("session already finalized")

	// Chunk boundary audit results.
	ErrMissingLeadingChunk = errors.New("no chunk starts at offset zero")
	ErrSizeMismatch        = errors.New("no chunk ends at the file size")
	ErrNonContiguousChunks = errors.New("chunk ranges leave a gap or overlap")
)

// UploadError provides detailed upload failure information.
type UploadError struct {
	Code  string
	Phase string
	Vault string
	Path  string
	Err   error
}

func (e *UploadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("upload %s [%s]: vault %s: %s: %v", e.Phase, e.Code, e.Vault, e.Path, e.Err)
	}
	return fmt.Sprintf("upload %s [%s]: vault %s: %v", e.Phase, e.Code, e.Vault, e.Err)
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// IntegrityError represents a checksum or signature mismatch.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: expected %s, got %s",
		e.Path, e.Expected, e.Actual)
}

// BoundaryError reports a broken chunk partition for a catalogued file.
// Kind is one of ErrMissingLeadingChunk, ErrSizeMismatch or
// ErrNonContiguousChunks; Unpaired holds the boundary offsets that did
// not cancel out.
type BoundaryError struct {
	Kind     error
	FileSize int64
	Unpaired []int64
}

func (e *BoundaryError) Error() string {
	return fmt.Sprintf("chunk boundaries [%s]: %v (file size %d, unpaired offsets %v)",
		ErrCodeIntegrity, e.Kind, e.FileSize, e.Unpaired)
}

func (e *BoundaryError) Unwrap() error {
	return e.Kind
}
