// Package catalog keeps the local bookkeeping database: which
// projects and files exist, which chunks of each file were uploaded,
// and which inventory jobs are outstanding. It records facts only;
// the planner audits them.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/coldvault/coldvault/internal/events"
	"github.com/coldvault/coldvault/internal/models"
)

// Errors
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrFileNotFound    = errors.New("file not found")
)

// Catalog is a SQLite-backed record of backed-up content.
type Catalog struct {
	db     *sql.DB
	logger *events.Logger
}

// Open creates or opens the catalog database.
func Open(dbPath string, logger *events.Logger) (*Catalog, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	c := &Catalog{
		db:     db,
		logger: logger.WithField("component", "catalog"),
	}

	if err := c.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return c, nil
}

// initialize creates tables and indexes.
func (c *Catalog) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS projects (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        name TEXT NOT NULL UNIQUE,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS files (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        project_id INTEGER NOT NULL,
        name TEXT NOT NULL,
        path TEXT NOT NULL,
        size INTEGER NOT NULL DEFAULT 0,
        outdated INTEGER NOT NULL DEFAULT 0,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        UNIQUE (project_id, name),
        FOREIGN KEY (project_id) REFERENCES projects(id) ON DELETE CASCADE
    );

    CREATE TABLE IF NOT EXISTS chunks (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        file_id INTEGER NOT NULL,
        upload_id TEXT,
        checksum TEXT,
        signature TEXT,
        start_offset INTEGER NOT NULL,
        size INTEGER NOT NULL,
        encrypted INTEGER NOT NULL DEFAULT 0,
        created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_chunks_file ON chunks(file_id);

    CREATE TABLE IF NOT EXISTS inventory_requests (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        vault_name TEXT NOT NULL,
        job_id TEXT NOT NULL,
        sent_at TIMESTAMP NOT NULL,
        retrieved INTEGER NOT NULL DEFAULT 0
    );

    CREATE INDEX IF NOT EXISTS idx_inventory_vault ON inventory_requests(vault_name);
    `

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	if _, err := c.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	return nil
}

// EnsureProject returns the named project, creating it if missing.
func (c *Catalog) EnsureProject(name string) (*models.Project, error) {
	if _, err := c.db.Exec(`
        INSERT INTO projects (name) VALUES (?)
        ON CONFLICT(name) DO NOTHING
    `, name); err != nil {
		return nil, fmt.Errorf("upsert project: %w", err)
	}

	var p models.Project
	err := c.db.QueryRow(`SELECT id, name FROM projects WHERE name = ?`, name).
		Scan(&p.ID, &p.Name)
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	return &p, nil
}

// Project looks up a project by name.
func (c *Catalog) Project(name string) (*models.Project, error) {
	var p models.Project
	err := c.db.QueryRow(`SELECT id, name FROM projects WHERE name = ?`, name).
		Scan(&p.ID, &p.Name)
	if err == sql.ErrNoRows {
		return nil, ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}
	return &p, nil
}

// UpsertFile records a file under a project. An existing file with
// the same name is refreshed in place; its chunks are kept until the
// caller supersedes them.
func (c *Catalog) UpsertFile(projectID int64, name, path string, size int64) (*models.File, error) {
	c.logger.WithFields(map[string]interface{}{
		"project_id": projectID,
		"name":       name,
		"size":       size,
	}).Debug("Recording file")

	if _, err := c.db.Exec(`
        INSERT INTO files (project_id, name, path, size, outdated)
        VALUES (?, ?, ?, ?, 0)
        ON CONFLICT(project_id, name) DO UPDATE SET
            path = excluded.path,
            size = excluded.size,
            outdated = 0
    `, projectID, name, path, size); err != nil {
		return nil, fmt.Errorf("upsert file: %w", err)
	}

	var f models.File
	var outdated int
	err := c.db.QueryRow(`
        SELECT id, project_id, name, path, size, outdated
        FROM files WHERE project_id = ? AND name = ?
    `, projectID, name).Scan(&f.ID, &f.ProjectID, &f.Name, &f.Path, &f.Size, &outdated)
	if err != nil {
		return nil, fmt.Errorf("query file: %w", err)
	}
	f.Outdated = outdated != 0
	return &f, nil
}

// File looks up a file by project and name.
func (c *Catalog) File(projectID int64, name string) (*models.File, error) {
	var f models.File
	var outdated int
	err := c.db.QueryRow(`
        SELECT id, project_id, name, path, size, outdated
        FROM files WHERE project_id = ? AND name = ?
    `, projectID, name).Scan(&f.ID, &f.ProjectID, &f.Name, &f.Path, &f.Size, &outdated)
	if err == sql.ErrNoRows {
		return nil, ErrFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query file: %w", err)
	}
	f.Outdated = outdated != 0
	return &f, nil
}

// MarkOutdated flags a file as superseded by newer local content.
func (c *Catalog) MarkOutdated(fileID int64) error {
	_, err := c.db.Exec(`UPDATE files SET outdated = 1 WHERE id = ?`, fileID)
	if err != nil {
		return fmt.Errorf("mark file outdated: %w", err)
	}
	return nil
}

// ReplaceChunks swaps a file's chunk records for a new set in one
// transaction, so an audit never sees a half-written partition.
func (c *Catalog) ReplaceChunks(fileID int64, chunks []models.StoredChunk) error {
	c.logger.WithFields(map[string]interface{}{
		"file_id": fileID,
		"chunks":  len(chunks),
	}).Debug("Replacing chunk records")

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	stmt, err := tx.Prepare(`
        INSERT INTO chunks (file_id, upload_id, checksum, signature, start_offset, size, encrypted)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `)
	if err != nil {
		return fmt.Errorf("prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		encrypted := 0
		if chunk.Encrypted {
			encrypted = 1
		}
		if _, err := stmt.Exec(fileID, chunk.UploadID, chunk.Checksum, chunk.Signature,
			chunk.StartOffset, chunk.Size, encrypted); err != nil {
			return fmt.Errorf("insert chunk at %d: %w", chunk.StartOffset, err)
		}
	}

	return tx.Commit()
}

// ChunksForFile returns a file's chunk records ordered by offset.
func (c *Catalog) ChunksForFile(fileID int64) ([]models.StoredChunk, error) {
	rows, err := c.db.Query(`
        SELECT id, file_id, upload_id, checksum, signature, start_offset, size, encrypted
        FROM chunks WHERE file_id = ?
        ORDER BY start_offset
    `, fileID)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.StoredChunk
	for rows.Next() {
		var chunk models.StoredChunk
		var uploadID, checksum, signature sql.NullString
		var encrypted int
		if err := rows.Scan(&chunk.ID, &chunk.FileID, &uploadID, &checksum, &signature,
			&chunk.StartOffset, &chunk.Size, &encrypted); err != nil {
			return nil, fmt.Errorf("scan chunk row: %w", err)
		}
		chunk.UploadID = uploadID.String
		chunk.Checksum = checksum.String
		chunk.Signature = signature.String
		chunk.Encrypted = encrypted != 0
		chunks = append(chunks, chunk)
	}

	return chunks, rows.Err()
}

// RecordInventoryRequest logs an inventory job sent to the backend.
func (c *Catalog) RecordInventoryRequest(vault, jobID string) (*models.InventoryRequest, error) {
	sentAt := time.Now().UTC()

	res, err := c.db.Exec(`
        INSERT INTO inventory_requests (vault_name, job_id, sent_at, retrieved)
        VALUES (?, ?, ?, 0)
    `, vault, jobID, sentAt)
	if err != nil {
		return nil, fmt.Errorf("insert inventory request: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("inventory request id: %w", err)
	}

	return &models.InventoryRequest{
		ID:        id,
		VaultName: vault,
		JobID:     jobID,
		SentAt:    sentAt,
	}, nil
}

// PendingInventoryRequests lists unretrieved jobs for a vault, oldest
// first.
func (c *Catalog) PendingInventoryRequests(vault string) ([]models.InventoryRequest, error) {
	rows, err := c.db.Query(`
        SELECT id, vault_name, job_id, sent_at, retrieved
        FROM inventory_requests
        WHERE vault_name = ? AND retrieved = 0
        ORDER BY sent_at
    `, vault)
	if err != nil {
		return nil, fmt.Errorf("query inventory requests: %w", err)
	}
	defer rows.Close()

	var reqs []models.InventoryRequest
	for rows.Next() {
		var req models.InventoryRequest
		var retrieved int
		if err := rows.Scan(&req.ID, &req.VaultName, &req.JobID, &req.SentAt, &retrieved); err != nil {
			return nil, fmt.Errorf("scan inventory row: %w", err)
		}
		req.Retrieved = retrieved != 0
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

// MarkInventoryRetrieved flags a request as fetched.
func (c *Catalog) MarkInventoryRetrieved(id int64) error {
	_, err := c.db.Exec(`UPDATE inventory_requests SET retrieved = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark inventory retrieved: %w", err)
	}
	return nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	return c.db.Close()
}
