package models

import (
	"time"

	"gorm.io/gorm"
)

// ParsedTimeLayout is the layout of Leaflet.ParsedTime.
const ParsedTimeLayout = "2006-01-02 15:04:05"

// Store struct holds the display name of a retailer and the absolute URL of its listing page.
type Store struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Leaflet is the metadata of one promotional leaflet. It is immutable once
// constructed; the capture time is taken by NewLeaflet.
type Leaflet struct {
	title      string
	thumbnail  string
	shopName   string
	validFrom  string
	validTo    string
	parsedTime string
}

// NewLeaflet creates a leaflet and stamps it with the current wall-clock time.
func NewLeaflet(title, thumbnail, shopName, validFrom, validTo string) Leaflet {
	return Leaflet{
		title:      title,
		thumbnail:  thumbnail,
		shopName:   shopName,
		validFrom:  validFrom,
		validTo:    validTo,
		parsedTime: time.Now().Format(ParsedTimeLayout),
	}
}

func (l Leaflet) Title() string      { return l.title }
func (l Leaflet) Thumbnail() string  { return l.thumbnail }
func (l Leaflet) ShopName() string   { return l.shopName }
func (l Leaflet) ValidFrom() string  { return l.validFrom }
func (l Leaflet) ValidTo() string    { return l.validTo }
func (l Leaflet) ParsedTime() string { return l.parsedTime }

// Data converts the leaflet into its serializable form.
func (l Leaflet) Data() LeafletData {
	return LeafletData{
		Title:      l.title,
		Thumbnail:  l.thumbnail,
		ShopName:   l.shopName,
		ValidFrom:  l.validFrom,
		ValidTo:    l.validTo,
		ParsedTime: l.parsedTime,
	}
}

// LeafletData is the key-value form of a Leaflet as written to the output document.
//
// swagger:model Leaflet
type LeafletData struct {
	// the leaflet title
	//
	// required: true
	Title string `json:"title"`
	// the thumbnail image url, absolute or relative to the site
	//
	// required: true
	Thumbnail string `json:"thumbnail"`
	// the name of the retailer as shown in the directory
	//
	// required: true
	ShopName string `json:"shop_name"`
	// start of validity, DD.MM or DD.MM.YYYY, empty when unknown
	ValidFrom string `json:"valid_from"`
	// end of validity, DD.MM.YYYY, empty when unknown
	ValidTo string `json:"valid_to"`
	// capture time, YYYY-MM-DD HH:MM:SS
	ParsedTime string `json:"parsed_time"`
}

// LeafletRow is the database form of a leaflet. Rows are appended per run and
// grouped by RunID, so repeated runs never overwrite each other.
type LeafletRow struct {
	// GORM will automatically add ID, CreatedAt, UpdatedAt, DeletedAt
	gorm.Model

	RunID      string `gorm:"type:varchar(36);index"`
	Position   int    `gorm:"not null"`
	ShopName   string `gorm:"type:varchar(100);index"`
	Title      string `gorm:"type:varchar(255)"`
	Thumbnail  string `gorm:"type:varchar(2048)"`
	ValidFrom  string `gorm:"type:varchar(10)"`
	ValidTo    string `gorm:"type:varchar(10)"`
	ParsedTime string `gorm:"type:varchar(19)"`
}

// TableName keeps the table name stable regardless of the struct name.
func (LeafletRow) TableName() string {
	return "leaflets"
}

// Data converts a row back into its serializable form.
func (r LeafletRow) Data() LeafletData {
	return LeafletData{
		Title:      r.Title,
		Thumbnail:  r.Thumbnail,
		ShopName:   r.ShopName,
		ValidFrom:  r.ValidFrom,
		ValidTo:    r.ValidTo,
		ParsedTime: r.ParsedTime,
	}
}
