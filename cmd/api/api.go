package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"leaflet_scraper/internal/config"
	"leaflet_scraper/internal/logger"
	"leaflet_scraper/internal/models"
	"leaflet_scraper/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DocumentSource returns the most recent leaflet document.
type DocumentSource interface {
	Latest(ctx context.Context) (*models.Document, error)
}

type databaseSource struct {
	repo repository.LeafletRepository
}

func (s databaseSource) Latest(ctx context.Context) (*models.Document, error) {
	return s.repo.GetLatestLeaflets(ctx)
}

type fileSource struct {
	sink *repository.JSONFileSink
	name string
}

func (s fileSource) Latest(ctx context.Context) (*models.Document, error) {
	return s.sink.Load(s.name)
}

type LeafletApi struct {
	source DocumentSource
	log    logrus.FieldLogger
}

// leafletsHandler serves the latest leaflet document as JSON.
func (a LeafletApi) leafletsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	doc, err := a.source.Latest(ctx)
	if err != nil {
		http.Error(w, "Could not retrieve leaflets", http.StatusInternalServerError)
		a.log.WithError(err).Error("Error fetching leaflets")
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		a.log.WithError(err).Error("Error encoding JSON")
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok"))
}

func newMux(api LeafletApi) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/leaflets", api.leafletsHandler)
	mux.HandleFunc("GET /healthz", healthHandler)
	return mux
}

func main() {
	const port = "8080"
	log := logger.New("info")
	conf, err := config.Init(log)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	log = logger.New(conf.LogLevel)

	var source DocumentSource
	if conf.DBConn != "" {
		db, err := gorm.Open(postgres.Open(conf.DBConn), &gorm.Config{})
		if err != nil {
			log.Fatalf("Fatal Error: Could not connect to the database: %v", err)
		}
		repo := repository.NewPostgresLeafletRepository(db)
		if err := repo.Init(context.Background()); err != nil {
			log.Fatalf("Fatal Error: Database migration failed: %v", err)
		}
		count, err := repo.CountLeaflets(context.Background())
		if err != nil {
			log.Fatalf("Error counting leaflets: %v", err)
		}
		log.Infof("Serving leaflets from PostgreSQL (%d rows)", count)
		source = databaseSource{repo: repo}
	} else {
		log.Infof("Serving leaflets from %s", conf.OutputFile)
		source = fileSource{sink: repository.NewJSONFileSink(afero.NewOsFs()), name: conf.OutputFile}
	}

	api := LeafletApi{source: source, log: log}
	log.Infof("Server starting on http://localhost:%s", port)
	log.Fatal(http.ListenAndServe(":"+port, newMux(api)))
}
