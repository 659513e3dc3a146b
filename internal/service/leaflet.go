package service

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"leaflet_scraper/internal/models"
	"leaflet_scraper/internal/parser"
	"leaflet_scraper/internal/repository"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultBaseURL       = "https://www.prospektmaschine.de"
	DefaultDirectoryPath = "/hypermarkte/"
)

// LeafletService defines the business logic contract.
type LeafletService interface {
	GetStores(ctx context.Context) ([]models.Store, error)
	GetStoreLeaflets(ctx context.Context, store models.Store) ([]models.Leaflet, error)
	ScrapeAll(ctx context.Context) (*models.Collection, error)
}

// Options configures where the directory lives and how many stores are scraped at once.
type Options struct {
	BaseURL       string
	DirectoryPath string
	// Workers above 1 scrape stores concurrently; results still keep directory order.
	Workers int
	Logger  logrus.FieldLogger
}

// leafletService depends on the Fetcher for page access and the
// LeafletParser for turning pages into stores and leaflets.
type leafletService struct {
	Repo   repository.Fetcher
	Parser parser.LeafletParser
	opts   Options
}

// NewLeafletService creates a new service instance with both dependencies.
func NewLeafletService(repo repository.Fetcher, p parser.LeafletParser, opts Options) LeafletService {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.DirectoryPath == "" {
		opts.DirectoryPath = DefaultDirectoryPath
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &leafletService{
		Repo:   repo,
		Parser: p,
		opts:   opts,
	}
}

func (s *leafletService) directoryURL() (string, error) {
	base, err := url.Parse(s.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", s.opts.BaseURL, err)
	}
	ref, err := url.Parse(s.opts.DirectoryPath)
	if err != nil {
		return "", fmt.Errorf("invalid directory path %q: %w", s.opts.DirectoryPath, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// GetStores fetches the directory page and returns its retailers in page order.
func (s *leafletService) GetStores(ctx context.Context) ([]models.Store, error) {
	dirURL, err := s.directoryURL()
	if err != nil {
		return nil, err
	}

	htmlReader, err := s.Repo.Fetch(ctx, dirURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch store directory: %w", err)
	}
	if closer, ok := htmlReader.(io.Closer); ok {
		defer closer.Close()
	}

	stores, err := s.Parser.ParseStores(ctx, htmlReader, s.opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to extract stores from %s: %w", dirURL, err)
	}
	s.opts.Logger.WithField("url", dirURL).Infof("Found %d stores", len(stores))
	return stores, nil
}

// GetStoreLeaflets fetches a store's listing page and extracts its leaflets in page order.
func (s *leafletService) GetStoreLeaflets(ctx context.Context, store models.Store) ([]models.Leaflet, error) {
	logger := s.opts.Logger.WithFields(logrus.Fields{"store": store.Name, "url": store.URL})
	logger.Info("Starting scrape")

	htmlReader, err := s.Repo.Fetch(ctx, store.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch leaflets for %s: %w", store.Name, err)
	}
	if closer, ok := htmlReader.(io.Closer); ok {
		defer closer.Close()
	}

	leaflets, err := s.Parser.ParseLeaflets(ctx, htmlReader, store.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to extract leaflets for %s: %w", store.Name, err)
	}

	logger.Infof("Extracted %d leaflets", len(leaflets))
	return leaflets, nil
}

// ScrapeAll scrapes every store of the directory and collects the leaflets
// in directory order. The first failing store aborts the whole scrape.
func (s *leafletService) ScrapeAll(ctx context.Context) (*models.Collection, error) {
	stores, err := s.GetStores(ctx)
	if err != nil {
		return nil, err
	}

	collection := models.NewCollection()
	if s.opts.Workers == 1 {
		for _, store := range stores {
			leaflets, err := s.GetStoreLeaflets(ctx, store)
			if err != nil {
				return nil, err
			}
			collection.Append(store.Name, leaflets)
		}
		return collection, nil
	}

	// Each worker writes only its own slot, so the join below keeps directory order.
	results := make([][]models.Leaflet, len(stores))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for i, store := range stores {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			leaflets, err := s.GetStoreLeaflets(gCtx, store)
			if err != nil {
				return err
			}
			results[i] = leaflets
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, store := range stores {
		collection.Append(store.Name, results[i])
	}
	return collection, nil
}
