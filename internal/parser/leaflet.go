package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"leaflet_scraper/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
)

// ErrMissingElement is returned when a listing fragment lacks a required element or attribute.
var ErrMissingElement = errors.New("required element not found")

// LeafletParser defines the contract for turning fetched pages into stores and leaflets.
// It knows the HTML structure through its Schema and nothing about fetching.
type LeafletParser interface {
	ParseStores(ctx context.Context, reader io.Reader, baseURL string) ([]models.Store, error)
	ParseLeaflets(ctx context.Context, reader io.Reader, shopName string) ([]models.Leaflet, error)
}

// leafletParser is the schema-driven implementation.
type leafletParser struct {
	schema        Schema
	skipMalformed bool
	logger        logrus.FieldLogger
}

// Option configures the parser.
type Option func(*leafletParser)

// WithSkipMalformed makes ParseLeaflets log and drop listings that are missing
// required elements instead of failing the whole page.
func WithSkipMalformed(skip bool) Option {
	return func(p *leafletParser) {
		p.skipMalformed = skip
	}
}

// WithLogger sets the logger used for skipped listings.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *leafletParser) {
		p.logger = logger
	}
}

// NewLeafletParser creates a parser for the given schema.
func NewLeafletParser(schema Schema, opts ...Option) LeafletParser {
	p := &leafletParser{
		schema: schema,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func parseDocument(reader io.Reader) (*goquery.Document, error) {
	root, err := html.Parse(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

// ParseStores extracts the retailer links of the directory page in document
// order. Link targets are resolved against baseURL.
func (p *leafletParser) ParseStores(ctx context.Context, reader io.Reader, baseURL string) ([]models.Store, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	doc, err := parseDocument(reader)
	if err != nil {
		return nil, err
	}

	var stores []models.Store
	var linkErr error
	doc.Find(p.schema.RetailerLink.Selector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		name := strings.TrimSpace(sel.Text())
		href, ok := sel.Attr(p.schema.RetailerLink.Attr)
		if !ok {
			linkErr = fmt.Errorf("retailer link %d (%q): %w: attribute %q", i, name, ErrMissingElement, p.schema.RetailerLink.Attr)
			return false
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			linkErr = fmt.Errorf("retailer link %d (%q) has invalid href %q: %w", i, name, href, err)
			return false
		}
		stores = append(stores, models.Store{
			Name: name,
			URL:  base.ResolveReference(ref).String(),
		})
		return true
	})
	if linkErr != nil {
		return nil, linkErr
	}
	return stores, nil
}

// ParseLeaflets extracts one leaflet per listing fragment, in document order.
// A page without listings yields an empty slice.
func (p *leafletParser) ParseLeaflets(ctx context.Context, reader io.Reader, shopName string) ([]models.Leaflet, error) {
	doc, err := parseDocument(reader)
	if err != nil {
		return nil, err
	}

	leaflets := []models.Leaflet{}
	var listingErr error
	doc.Find(p.schema.Listing.Selector).EachWithBreak(func(i int, sel *goquery.Selection) bool {
		leaflet, err := p.extractLeaflet(sel, shopName)
		if err == nil {
			leaflets = append(leaflets, leaflet)
			return true
		}
		if p.skipMalformed {
			p.logger.WithFields(logrus.Fields{
				"store":   shopName,
				"listing": i,
			}).WithError(err).Warn("Skipping malformed listing")
			return true
		}
		listingErr = fmt.Errorf("listing %d of %s: %w", i, shopName, err)
		return false
	})
	if listingErr != nil {
		return nil, listingErr
	}
	return leaflets, nil
}

// extractLeaflet builds a leaflet from a single listing fragment. Thumbnail and
// date elements are required; an unrecognised date is not an error.
func (p *leafletParser) extractLeaflet(sel *goquery.Selection, shopName string) (models.Leaflet, error) {
	thumbnail, ok := p.schema.Thumbnail.lookup(sel)
	if !ok {
		return models.Leaflet{}, fmt.Errorf("%w: thumbnail (%s[%s])", ErrMissingElement, p.schema.Thumbnail.Selector, p.schema.Thumbnail.Attr)
	}
	dateText, ok := p.schema.Date.lookup(sel)
	if !ok {
		return models.Leaflet{}, fmt.Errorf("%w: date (%s)", ErrMissingElement, p.schema.Date.Selector)
	}

	validFrom, validTo := ParseDateRange(dateText)
	return models.NewLeaflet(p.schema.Title, thumbnail, shopName, validFrom, validTo), nil
}
