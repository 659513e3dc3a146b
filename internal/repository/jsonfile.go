package repository

import (
	"bytes"
	"encoding/json"
	"fmt"

	"leaflet_scraper/internal/models"

	"github.com/spf13/afero"
)

const jsonIndent = "    "

// JSONFileSink stores leaflet documents as pretty-printed UTF-8 JSON files.
type JSONFileSink struct {
	fs afero.Fs
}

// NewJSONFileSink creates a sink on top of fs. Use afero.NewOsFs() for the
// working directory.
func NewJSONFileSink(fs afero.Fs) *JSONFileSink {
	return &JSONFileSink{fs: fs}
}

// Save encodes doc and replaces the file at name. Non-ASCII and HTML
// characters are written as is.
func (s *JSONFileSink) Save(name string, doc *models.Document) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", jsonIndent)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode leaflet document: %w", err)
	}

	if err := afero.WriteFile(s.fs, name, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// Load reads a document previously written by Save.
func (s *JSONFileSink) Load(name string) (*models.Document, error) {
	raw, err := afero.ReadFile(s.fs, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	doc := models.NewDocument()
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	return doc, nil
}
