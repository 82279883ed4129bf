// Package testutil provides helpers shared by the benchmark and
// integration suites.
package testutil

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/coldvault/coldvault/internal/config"
	"github.com/coldvault/coldvault/internal/crypto"
	"github.com/coldvault/coldvault/internal/events"
)

// NewTestLogger creates a quiet logger for testing.
func NewTestLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.ErrorLevel, "json", &buf)
}

// TestConfig returns a config rooted in a temp directory.
func TestConfig(t *testing.T) *config.Config {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Vault.Name = "test-vault"
	cfg.Storage.DataDir = tmpDir
	cfg.Storage.StateDir = filepath.Join(tmpDir, "sessions")
	cfg.Storage.CatalogPath = filepath.Join(tmpDir, "catalog.sqlite")
	cfg.Storage.KeyParams = filepath.Join(tmpDir, "key_params.json")

	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("ensure dirs: %v", err)
	}
	return cfg
}

// RandomFile writes size random bytes to a temp file and returns its
// path and content.
func RandomFile(t *testing.T, size int) (string, []byte) {
	t.Helper()

	data := make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("generate data: %v", err)
	}

	path := filepath.Join(t.TempDir(), "source.bin")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path, data
}

// RandomCipher builds a cipher with a random key, skipping the
// expensive password derivation.
func RandomCipher(t *testing.T, signing bool) *crypto.StreamCipher {
	t.Helper()

	encKey := make([]byte, crypto.KeySize)
	if _, err := rand.Read(encKey); err != nil {
		t.Fatalf("generate key: %v", err)
	}

	var signKey []byte
	if signing {
		signKey = make([]byte, crypto.SigningKeySize)
		if _, err := rand.Read(signKey); err != nil {
			t.Fatalf("generate signing key: %v", err)
		}
	}

	cipher, err := crypto.NewStreamCipherFromKeys(encKey, signKey)
	if err != nil {
		t.Fatalf("create cipher: %v", err)
	}
	return cipher
}
