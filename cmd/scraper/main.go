package main

import (
	"context"
	"fmt"

	"leaflet_scraper/internal/config"
	"leaflet_scraper/internal/logger"
	"leaflet_scraper/internal/parser"
	"leaflet_scraper/internal/repository"
	"leaflet_scraper/internal/service"

	"github.com/DataHenHQ/useragent"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// 1. Load configuration
	log := logger.New("info")
	appConfig, err := config.Init(log)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log = logger.New(appConfig.LogLevel)
	ctx := context.Background()

	// 2. Page access
	fetcher, err := newFetcher(appConfig, log)
	if err != nil {
		log.Fatalf("Failed to set up fetcher: %v", err)
	}

	// 3. Optional database mirror
	var mirror repository.LeafletRepository
	if appConfig.DBConn != "" {
		db, err := gorm.Open(postgres.Open(appConfig.DBConn), &gorm.Config{
			PrepareStmt: true,
		})
		if err != nil {
			log.Fatalf("Error connecting to database with GORM: %v", err)
		}
		repo := repository.NewPostgresLeafletRepository(db)
		if err := repo.Init(ctx); err != nil {
			log.Fatalf("Failed to run database auto-migration: %v", err)
		}
		log.Info("Database mirror enabled")
		mirror = repo
	}

	// 4. Dependency Injection
	par := parser.NewLeafletParser(appConfig.Schema,
		parser.WithSkipMalformed(appConfig.SkipMalformed),
		parser.WithLogger(log),
	)
	leafletService := service.NewLeafletService(fetcher, par, service.Options{
		BaseURL:       appConfig.BaseURL,
		DirectoryPath: appConfig.DirectoryPath,
		Workers:       appConfig.Workers,
		Logger:        log,
	})
	runner := &service.Runner{
		Service:    leafletService,
		Sink:       repository.NewJSONFileSink(afero.NewOsFs()),
		OutputName: appConfig.OutputFile,
		Mirror:     mirror,
		Logger:     log,
	}

	// 5. Scrape and persist
	collection, err := runner.Run(ctx)
	if err != nil {
		log.Fatalf("Scrape aborted, nothing was written: %v", err)
	}

	fmt.Printf("\n--- SCRAPE COMPLETE ---\n")
	fmt.Printf("Saved %d leaflets from %d stores to %s.\n", collection.Len(), len(collection.Shops()), appConfig.OutputFile)
}

func newFetcher(cfg *config.Config, log logrus.FieldLogger) (repository.Fetcher, error) {
	userAgent := cfg.UserAgent
	if cfg.RandomUserAgent {
		ua, err := useragent.Desktop()
		if err != nil {
			return nil, fmt.Errorf("could not generate random UA: %w", err)
		}
		userAgent = ua
	}

	if cfg.Headless {
		log.Info("Using headless browser for page access")
		return repository.NewHeadlessFetcher(cfg.Timeout, userAgent, log), nil
	}
	return repository.NewHTTPFetcher(cfg.Timeout, userAgent), nil
}
