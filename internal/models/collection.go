package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DefaultOutputName is used by Collection.Persist when no name is given.
const DefaultOutputName = "leaflets.json"

// Sink persists a serialized collection under a resource name, replacing any
// previous content stored under that name.
type Sink interface {
	Save(name string, doc *Document) error
}

// Collection groups leaflets by shop name. Shops keep the order in which they
// were first appended.
type Collection struct {
	shops    []string
	leaflets map[string][]Leaflet
}

// NewCollection creates an empty collection.
func NewCollection() *Collection {
	return &Collection{
		leaflets: make(map[string][]Leaflet),
	}
}

// Append adds the leaflets to the shop's sequence, creating the shop if it is
// not present yet. An empty slice still registers the shop.
func (c *Collection) Append(key string, leaflets []Leaflet) {
	if _, ok := c.leaflets[key]; !ok {
		c.shops = append(c.shops, key)
		c.leaflets[key] = make([]Leaflet, 0, len(leaflets))
	}
	c.leaflets[key] = append(c.leaflets[key], leaflets...)
}

// Shops returns the shop names in insertion order.
func (c *Collection) Shops() []string {
	return append([]string(nil), c.shops...)
}

// Leaflets returns the leaflets stored for a shop.
func (c *Collection) Leaflets(shop string) []Leaflet {
	return append([]Leaflet(nil), c.leaflets[shop]...)
}

// Len returns the total number of leaflets across all shops.
func (c *Collection) Len() int {
	n := 0
	for _, l := range c.leaflets {
		n += len(l)
	}
	return n
}

// Serialize converts the collection into a Document. It does not modify the collection.
func (c *Collection) Serialize() *Document {
	doc := NewDocument()
	for _, shop := range c.shops {
		data := make([]LeafletData, 0, len(c.leaflets[shop]))
		for _, l := range c.leaflets[shop] {
			data = append(data, l.Data())
		}
		doc.Add(shop, data...)
	}
	return doc
}

// Persist writes the serialized collection to the sink. An empty name falls
// back to DefaultOutputName.
func (c *Collection) Persist(sink Sink, name string) error {
	if name == "" {
		name = DefaultOutputName
	}
	if err := sink.Save(name, c.Serialize()); err != nil {
		return fmt.Errorf("failed to persist leaflets to %s: %w", name, err)
	}
	return nil
}

// Document is the serialized form of a Collection: shop name to leaflet data,
// encoded as a JSON object whose keys keep insertion order.
type Document struct {
	shops    []string
	leaflets map[string][]LeafletData
}

// NewDocument creates an empty document.
func NewDocument() *Document {
	return &Document{
		leaflets: make(map[string][]LeafletData),
	}
}

// Add appends data to a shop, registering the shop on first use.
func (d *Document) Add(shop string, data ...LeafletData) {
	if d.leaflets == nil {
		d.leaflets = make(map[string][]LeafletData)
	}
	if _, ok := d.leaflets[shop]; !ok {
		d.shops = append(d.shops, shop)
		d.leaflets[shop] = []LeafletData{}
	}
	d.leaflets[shop] = append(d.leaflets[shop], data...)
}

// Shops returns the shop names in document order.
func (d *Document) Shops() []string {
	return append([]string(nil), d.shops...)
}

// Leaflets returns the data stored for a shop.
func (d *Document) Leaflets(shop string) []LeafletData {
	return d.leaflets[shop]
}

func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, shop := range d.shops {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(shop); err != nil {
			return nil, fmt.Errorf("failed to encode shop name %q: %w", shop, err)
		}
		buf.WriteByte(':')
		data := d.leaflets[shop]
		if data == nil {
			data = []LeafletData{}
		}
		if err := enc.Encode(data); err != nil {
			return nil, fmt.Errorf("failed to encode leaflets of %q: %w", shop, err)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *Document) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("leaflet document must be a JSON object, got %v", tok)
	}

	*d = Document{leaflets: make(map[string][]LeafletData)}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		shop, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in leaflet document", tok)
		}
		var data []LeafletData
		if err := dec.Decode(&data); err != nil {
			return fmt.Errorf("failed to decode leaflets of %q: %w", shop, err)
		}
		d.Add(shop, data...)
	}
	_, err = dec.Token()
	return err
}
