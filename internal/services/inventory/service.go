// Package inventory requests and fetches vault inventory jobs,
// keeping a local log so a fetch can pick up a job requested days
// earlier by a different process.
package inventory

import (
	"context"

	"github.com/coldvault/coldvault/internal/backend"
	"github.com/coldvault/coldvault/internal/catalog"
	"github.com/coldvault/coldvault/internal/events"
	"github.com/coldvault/coldvault/internal/models"
)

// Service manages inventory retrieval jobs.
type Service struct {
	backend backend.Backend
	catalog *catalog.Catalog
	logger  *events.Logger
}

// NewService creates an inventory service.
func NewService(be backend.Backend, cat *catalog.Catalog, logger *events.Logger) *Service {
	return &Service{
		backend: be,
		catalog: cat,
		logger:  logger.WithField("service", "inventory"),
	}
}

// Request starts an inventory job and logs it. Cold storage takes
// hours to prepare the output; Fetch collects it later.
func (s *Service) Request(ctx context.Context, vault string) (*models.InventoryRequest, error) {
	jobID, err := s.backend.RequestInventoryJob(ctx, vault)
	if err != nil {
		return nil, err
	}

	req, err := s.catalog.RecordInventoryRequest(vault, jobID)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"vault":  vault,
		"job_id": jobID,
	}).Info("Inventory job requested")

	return req, nil
}

// Fetch returns the output of the oldest finished inventory job for
// the vault, marking it retrieved. Both return values are nil when
// every logged job is still running; an error when no job was ever
// requested is the catalog's business, signalled by an empty log.
func (s *Service) Fetch(ctx context.Context, vault string) (*backend.JobOutput, *models.InventoryRequest, error) {
	pending, err := s.catalog.PendingInventoryRequests(vault)
	if err != nil {
		return nil, nil, err
	}

	for _, req := range pending {
		out, err := s.backend.FetchJobOutput(ctx, vault, req.JobID)
		if err != nil {
			return nil, nil, err
		}
		if out == nil {
			s.logger.WithField("job_id", req.JobID).Debug("Inventory job still running")
			continue
		}

		if err := s.catalog.MarkInventoryRetrieved(req.ID); err != nil {
			return nil, nil, err
		}

		s.logger.WithFields(map[string]interface{}{
			"vault":  vault,
			"job_id": req.JobID,
			"bytes":  len(out.Body),
		}).Info("Inventory retrieved")

		req.Retrieved = true
		return out, &req, nil
	}

	return nil, nil, nil
}
