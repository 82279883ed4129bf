package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Vault selection
	Vault VaultConfig `json:"vault"`

	// Local storage paths
	Storage StorageConfig `json:"storage"`

	// Upload behavior
	Upload UploadConfig `json:"upload"`

	// Key derivation defaults
	KDF KDFConfig `json:"kdf"`

	// Logging
	Log LogConfig `json:"log"`
}

// VaultConfig selects the remote vault and region.
type VaultConfig struct {
	Name    string `json:"name"`
	Region  string `json:"region,omitempty"`
	Account string `json:"account,omitempty"` // empty means the caller's own account
}

// StorageConfig for local file paths.
type StorageConfig struct {
	DataDir     string `json:"data_dir"`     // Base directory for all local data
	StateDir    string `json:"state_dir"`    // Upload session snapshots
	CatalogPath string `json:"catalog_path"` // SQLite catalog database
	KeyParams   string `json:"key_params"`   // Persisted key derivation record
}

// UploadConfig for multipart transfer behavior.
type UploadConfig struct {
	PartSize      int64         `json:"part_size"`      // Post-encryption part size in bytes
	MaxPasses     int           `json:"max_passes"`     // Upload loop retry passes
	MaxConcurrent int           `json:"max_concurrent"` // Concurrent part uploads
	Timeout       time.Duration `json:"timeout"`        // Per backend call
}

// KDFConfig selects the password hashing construct for new key records.
type KDFConfig struct {
	Construct     string `json:"construct"`      // argon2id or argon2i
	EnableSigning bool   `json:"enable_signing"` // derive an HMAC signing key too
}

// LogConfig for logging behavior.
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // text, json
	File   string `json:"file"`   // Log file path (empty = stdout)
}

const (
	// DefaultPartSize is the post-encryption size of one multipart part.
	// Must be a multiple of the cipher chunk size so that a whole number
	// of encrypted chunks fills one part exactly.
	DefaultPartSize = 2 * 1024 * 1024

	chunkSize = 16384
)

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() *Config {
	dataDir := ".coldvault"

	return &Config{
		Vault: VaultConfig{
			Name: "myvault",
		},
		Storage: StorageConfig{
			DataDir:     dataDir,
			StateDir:    filepath.Join(dataDir, "sessions"),
			CatalogPath: filepath.Join(dataDir, "catalog.sqlite"),
			KeyParams:   filepath.Join(dataDir, "key_params.json"),
		},
		Upload: UploadConfig{
			PartSize:      DefaultPartSize,
			MaxPasses:     3,
			MaxConcurrent: 1,
			Timeout:       5 * time.Minute,
		},
		KDF: KDFConfig{
			Construct:     "argon2id",
			EnableSigning: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Vault.Name == "" {
		return errors.New("vault.name is required")
	}

	if c.Upload.PartSize <= 0 {
		return errors.New("upload.part_size must be positive")
	}

	if c.Upload.PartSize%chunkSize != 0 {
		return fmt.Errorf("upload.part_size must be a multiple of %d", chunkSize)
	}

	if c.Upload.MaxPasses <= 0 {
		return errors.New("upload.max_passes must be positive")
	}

	if c.Upload.MaxConcurrent <= 0 {
		return errors.New("upload.max_concurrent must be positive")
	}

	switch c.KDF.Construct {
	case "argon2id", "argon2i":
	default:
		return fmt.Errorf("kdf.construct %q is not supported", c.KDF.Construct)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	return nil
}

// EnsureDirs creates the local storage directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Storage.DataDir, c.Storage.StateDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
