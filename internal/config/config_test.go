package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coldvault/coldvault/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "myvault", cfg.Vault.Name)
	assert.Equal(t, int64(config.DefaultPartSize), cfg.Upload.PartSize)
	assert.Equal(t, 3, cfg.Upload.MaxPasses)
	assert.Equal(t, "argon2id", cfg.KDF.Construct)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:   "valid default",
			mutate: func(c *config.Config) {},
		},
		{
			name:    "missing vault name",
			mutate:  func(c *config.Config) { c.Vault.Name = "" },
			wantErr: "vault.name",
		},
		{
			name:    "negative part size",
			mutate:  func(c *config.Config) { c.Upload.PartSize = -1 },
			wantErr: "part_size",
		},
		{
			name:    "misaligned part size",
			mutate:  func(c *config.Config) { c.Upload.PartSize = 100000 },
			wantErr: "multiple",
		},
		{
			name:    "zero passes",
			mutate:  func(c *config.Config) { c.Upload.MaxPasses = 0 },
			wantErr: "max_passes",
		},
		{
			name:    "unknown construct",
			mutate:  func(c *config.Config) { c.KDF.Construct = "bcrypt" },
			wantErr: "not supported",
		},
		{
			name:    "bad log level",
			mutate:  func(c *config.Config) { c.Log.Level = "verbose" },
			wantErr: "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoaderFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coldvault.json")

	data := `{
        "vault": {"name": "archive-vault", "region": "eu-central-1"},
        "upload": {"part_size": 4194304, "max_passes": 5, "max_concurrent": 2, "timeout": 60000000000}
    }`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := config.NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "archive-vault", cfg.Vault.Name)
	assert.Equal(t, "eu-central-1", cfg.Vault.Region)
	assert.Equal(t, int64(4*1024*1024), cfg.Upload.PartSize)
	assert.Equal(t, 5, cfg.Upload.MaxPasses)
	assert.Equal(t, time.Minute, cfg.Upload.Timeout)

	// File values must not clobber unrelated defaults.
	assert.Equal(t, "argon2id", cfg.KDF.Construct)
}

func TestLoaderEnvOverride(t *testing.T) {
	t.Setenv("COLDVAULT_VAULT", "env-vault")
	t.Setenv("COLDVAULT_PART_SIZE", "1048576")
	t.Setenv("COLDVAULT_LOG_LEVEL", "debug")

	cfg, err := config.NewLoader(filepath.Join(t.TempDir(), "missing.json")).Load()
	require.Error(t, err) // explicit path must exist

	t.Setenv("COLDVAULT_VAULT", "env-vault")
	cfg, err = config.NewLoader("").Load()
	require.NoError(t, err)

	assert.Equal(t, "env-vault", cfg.Vault.Name)
	assert.Equal(t, int64(1024*1024), cfg.Upload.PartSize)
	assert.Equal(t, "debug", cfg.Log.Level)
}
