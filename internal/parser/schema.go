package parser

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
)

// Rule describes how a single field is looked up: the first element matching
// Selector, then either its text content (Attr empty) or the named attribute.
type Rule struct {
	Selector string `mapstructure:"selector"`
	Attr     string `mapstructure:"attr"`
}

// lookup applies the rule below sel. ok is false when no element matches or
// the element lacks the attribute.
func (r Rule) lookup(sel *goquery.Selection) (value string, ok bool) {
	node := sel.Find(r.Selector).First()
	if node.Length() == 0 {
		return "", false
	}
	if r.Attr == "" {
		return node.Text(), true
	}
	return node.Attr(r.Attr)
}

// Schema maps the semantic fields of a leaflet site onto its markup.
// Swapping the schema retargets the pipeline at a structurally different site.
type Schema struct {
	// RetailerLink selects the retailer anchors on the directory page; Attr holds the link target.
	RetailerLink Rule `mapstructure:"retailer_link"`
	// Listing selects one fragment per leaflet on a retailer page.
	Listing Rule `mapstructure:"listing"`
	// Thumbnail and Date are looked up inside each listing fragment.
	Thumbnail Rule `mapstructure:"thumbnail"`
	Date      Rule `mapstructure:"date"`
	// Title is the literal title given to every leaflet.
	Title string `mapstructure:"title"`
}

// DefaultSchema returns the selectors of prospektmaschine.de.
func DefaultSchema() Schema {
	return Schema{
		RetailerLink: Rule{Selector: "#left-category-shops > li > a", Attr: "href"},
		Listing:      Rule{Selector: ".page-body div.brochure-thumb"},
		Thumbnail:    Rule{Selector: "picture img", Attr: "src"},
		Date:         Rule{Selector: ".letak-description p:has(small) > small.hidden-sm"},
		Title:        "Prospekt",
	}
}

// Validate checks that every selector compiles and that link and thumbnail
// rules read an attribute.
func (s Schema) Validate() error {
	rules := []struct {
		name string
		rule Rule
	}{
		{"retailer_link", s.RetailerLink},
		{"listing", s.Listing},
		{"thumbnail", s.Thumbnail},
		{"date", s.Date},
	}
	for _, r := range rules {
		if r.rule.Selector == "" {
			return fmt.Errorf("schema: %s selector is empty", r.name)
		}
		if _, err := cascadia.Compile(r.rule.Selector); err != nil {
			return fmt.Errorf("schema: invalid %s selector %q: %w", r.name, r.rule.Selector, err)
		}
	}
	if s.RetailerLink.Attr == "" {
		return fmt.Errorf("schema: retailer_link attr is required")
	}
	if s.Thumbnail.Attr == "" {
		return fmt.Errorf("schema: thumbnail attr is required")
	}
	return nil
}
