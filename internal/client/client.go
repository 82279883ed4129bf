// Package client assembles the backend, catalog, state store and
// services into the high-level API the CLI drives.
package client

import (
	"context"

	"github.com/coldvault/coldvault/internal/backend"
	"github.com/coldvault/coldvault/internal/catalog"
	"github.com/coldvault/coldvault/internal/config"
	"github.com/coldvault/coldvault/internal/events"
	"github.com/coldvault/coldvault/internal/services/backup"
	"github.com/coldvault/coldvault/internal/services/inventory"
	"github.com/coldvault/coldvault/internal/state"
)

// Client provides the high-level API for coldvault operations.
type Client struct {
	Backup    *backup.Service
	Inventory *inventory.Service

	config  *config.Config
	logger  *events.Logger
	catalog *catalog.Catalog
	store   state.Store
}

// New creates a client against the real cold-storage backend.
func New(ctx context.Context, cfg *config.Config, logger *events.Logger) (*Client, error) {
	be, err := backend.NewGlacier(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewWithBackend(cfg, be, logger)
}

// NewWithBackend creates a client over any backend implementation.
func NewWithBackend(cfg *config.Config, be backend.Backend, logger *events.Logger) (*Client, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}

	cat, err := catalog.Open(cfg.Storage.CatalogPath, logger)
	if err != nil {
		return nil, err
	}

	store, err := state.NewJSONStore(cfg.Storage.StateDir, logger)
	if err != nil {
		cat.Close()
		return nil, err
	}

	return &Client{
		Backup:    backup.NewService(cfg, be, cat, store, logger),
		Inventory: inventory.NewService(be, cat, logger),
		config:    cfg,
		logger:    logger,
		catalog:   cat,
		store:     store,
	}, nil
}

// Close releases the catalog and state store.
func (c *Client) Close() error {
	err := c.store.Close()
	if cerr := c.catalog.Close(); err == nil {
		err = cerr
	}
	return err
}
