package service

import (
	"context"
	"fmt"

	"leaflet_scraper/internal/models"
	"leaflet_scraper/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Runner drives one complete scrape: collect, write the output document and
// optionally mirror the result into a database.
type Runner struct {
	Service    LeafletService
	Sink       models.Sink
	OutputName string
	// Mirror is optional.
	Mirror repository.LeafletRepository
	Logger logrus.FieldLogger
}

// Run performs the scrape. Nothing is written unless every store succeeded.
func (r *Runner) Run(ctx context.Context) (*models.Collection, error) {
	logger := r.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	collection, err := r.Service.ScrapeAll(ctx)
	if err != nil {
		return nil, err
	}

	if err := collection.Persist(r.Sink, r.OutputName); err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"stores":   len(collection.Shops()),
		"leaflets": collection.Len(),
	}).Info("Leaflets saved")

	if r.Mirror == nil {
		return collection, nil
	}

	runID := uuid.NewString()
	inserted, err := r.Mirror.InsertLeaflets(ctx, runID, collection.Serialize())
	if err != nil {
		return nil, fmt.Errorf("failed to mirror run %s: %w", runID, err)
	}
	logger.WithField("run_id", runID).Infof("Mirrored %d leaflets to the database", inserted)
	return collection, nil
}
