package repository

import (
	"context"
	"errors"
	"fmt"

	"leaflet_scraper/internal/models"

	"gorm.io/gorm"
)

// LeafletRepository defines the interface for mirroring leaflet documents into a database.
type LeafletRepository interface {
	// Init method for GORM AutoMigrate
	Init(ctx context.Context) error
	InsertLeaflets(ctx context.Context, runID string, doc *models.Document) (int, error)
	CountLeaflets(ctx context.Context) (int, error)
	GetLatestLeaflets(ctx context.Context) (*models.Document, error)
}

// PostgresLeafletRepository implements the LeafletRepository interface for PostgreSQL using GORM.
type PostgresLeafletRepository struct {
	db *gorm.DB
}

// NewPostgresLeafletRepository creates a new instance.
func NewPostgresLeafletRepository(db *gorm.DB) *PostgresLeafletRepository {
	return &PostgresLeafletRepository{
		db: db,
	}
}

// Init handles GORM's automatic table creation/migration.
func (r *PostgresLeafletRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&models.LeafletRow{})
}

// InsertLeaflets appends every leaflet of doc as a row tagged with runID.
// Earlier runs are left untouched.
func (r *PostgresLeafletRepository) InsertLeaflets(ctx context.Context, runID string, doc *models.Document) (int, error) {
	rows := rowsFromDocument(runID, doc)
	if len(rows) == 0 {
		return 0, nil
	}

	result := r.db.WithContext(ctx).CreateInBatches(&rows, 100)
	if result.Error != nil {
		return 0, fmt.Errorf("gorm bulk insert failed: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// CountLeaflets returns the total number of leaflet rows across all runs.
func (r *PostgresLeafletRepository) CountLeaflets(ctx context.Context) (int, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.LeafletRow{}).Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("gorm count failed: %w", result.Error)
	}
	return int(count), nil
}

// GetLatestLeaflets rebuilds the document of the most recently inserted run.
// An empty table yields an empty document.
func (r *PostgresLeafletRepository) GetLatestLeaflets(ctx context.Context) (*models.Document, error) {
	db := r.db.WithContext(ctx)

	var last models.LeafletRow
	err := db.Order("id DESC").Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewDocument(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find latest run: %w", err)
	}

	var rows []models.LeafletRow
	if err := db.Where("run_id = ?", last.RunID).Order("position ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to retrieve leaflets of run %s: %w", last.RunID, err)
	}
	return documentFromRows(rows), nil
}

func rowsFromDocument(runID string, doc *models.Document) []models.LeafletRow {
	var rows []models.LeafletRow
	for _, shop := range doc.Shops() {
		for _, l := range doc.Leaflets(shop) {
			rows = append(rows, models.LeafletRow{
				RunID:      runID,
				Position:   len(rows),
				ShopName:   shop,
				Title:      l.Title,
				Thumbnail:  l.Thumbnail,
				ValidFrom:  l.ValidFrom,
				ValidTo:    l.ValidTo,
				ParsedTime: l.ParsedTime,
			})
		}
	}
	return rows
}

// documentFromRows expects rows ordered by position.
func documentFromRows(rows []models.LeafletRow) *models.Document {
	doc := models.NewDocument()
	for _, row := range rows {
		doc.Add(row.ShopName, row.Data())
	}
	return doc
}
