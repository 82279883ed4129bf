package models

import "time"

// Project groups backed-up files under a name.
type Project struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// File is a catalogued source file.
type File struct {
	ID        int64  `json:"id"`
	ProjectID int64  `json:"project_id"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	Size      int64  `json:"size"`
	Outdated  bool   `json:"outdated"`
}

// StoredChunk records one uploaded part of a file.
//
// StartOffset and Size are plaintext coordinates; together the chunks
// of a file must partition [0, file size) without gap or overlap.
type StoredChunk struct {
	ID          int64  `json:"id"`
	FileID      int64  `json:"file_id"`
	UploadID    string `json:"upload_id,omitempty"`
	Checksum    string `json:"checksum,omitempty"`
	Signature   string `json:"signature,omitempty"`
	StartOffset int64  `json:"start_offset"`
	Size        int64  `json:"size"`
	Encrypted   bool   `json:"encrypted"`
}

// End returns the exclusive end offset of the chunk.
func (c StoredChunk) End() int64 {
	return c.StartOffset + c.Size
}

// InventoryRequest tracks an inventory retrieval job sent to the backend.
type InventoryRequest struct {
	ID        int64     `json:"id"`
	VaultName string    `json:"vault_name"`
	JobID     string    `json:"job_id"`
	SentAt    time.Time `json:"sent_at"`
	Retrieved bool      `json:"retrieved"`
}
