package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"leaflet_scraper/internal/models"
	"leaflet_scraper/internal/parser"
	"leaflet_scraper/internal/repository"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directoryPage(links ...[2]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul id="left-category-shops">`)
	for _, l := range links {
		b.WriteString(`<li><a href="` + l[1] + `">` + l[0] + `</a></li>`)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func listing(src, date string) string {
	return `<div class="brochure-thumb"><picture><img src="` + src + `"></picture>` +
		`<div class="letak-description"><p><small class="hidden-sm">` + date + `</small></p></div></div>`
}

func listingPage(listings ...string) string {
	return `<html><body><div class="page-body">` + strings.Join(listings, "") + `</div></body></html>`
}

// site serves fixed pages and records the order of requested paths.
type site struct {
	mu       sync.Mutex
	pages    map[string]string
	status   map[string]int
	delay    map[string]time.Duration
	requests []string
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests = append(s.requests, r.URL.Path)
	delay := s.delay[r.URL.Path]
	s.mu.Unlock()

	time.Sleep(delay)
	if code, ok := s.status[r.URL.Path]; ok {
		w.WriteHeader(code)
		return
	}
	page, ok := s.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Write([]byte(page))
}

func (s *site) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func newRunner(t *testing.T, srv *httptest.Server, fs afero.Fs, workers int) *Runner {
	t.Helper()
	logger, _ := test.NewNullLogger()
	svc := NewLeafletService(
		repository.NewHTTPFetcher(time.Second, "TestAgent"),
		parser.NewLeafletParser(parser.DefaultSchema()),
		Options{BaseURL: srv.URL, DirectoryPath: "/hypermarkte/", Workers: workers, Logger: logger},
	)
	return &Runner{
		Service: svc,
		Sink:    repository.NewJSONFileSink(fs),
		Logger:  logger,
	}
}

func TestRunner_Run_EndToEnd(t *testing.T) {
	s := &site{pages: map[string]string{
		"/hypermarkte/": directoryPage([2]string{"ShopA", "/a/"}, [2]string{"ShopB", "/b/"}),
		"/a/":           listingPage(listing("/img1.jpg", "Angebote 01.03 - 07.03.2024")),
		"/b/":           listingPage(),
	}}
	srv := httptest.NewServer(s)
	defer srv.Close()
	fs := afero.NewMemMapFs()

	collection, err := newRunner(t, srv, fs, 1).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"ShopA", "ShopB"}, collection.Shops())
	assert.Equal(t, []string{"/hypermarkte/", "/a/", "/b/"}, s.requested())

	raw, err := afero.ReadFile(fs, models.DefaultOutputName)
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(raw), `"ShopA"`), strings.Index(string(raw), `"ShopB"`))

	var got map[string][]map[string]string
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got["ShopA"], 1)
	_, err = time.Parse(models.ParsedTimeLayout, got["ShopA"][0]["parsed_time"])
	require.NoError(t, err)
	got["ShopA"][0]["parsed_time"] = "<timestamp>"

	want := map[string][]map[string]string{
		"ShopA": {{
			"title":       "Prospekt",
			"thumbnail":   "/img1.jpg",
			"shop_name":   "ShopA",
			"valid_from":  "01.03",
			"valid_to":    "07.03.2024",
			"parsed_time": "<timestamp>",
		}},
		"ShopB": {},
	}
	assert.Equal(t, want, got)
}

func TestRunner_Run_UnparseableDateContinues(t *testing.T) {
	s := &site{pages: map[string]string{
		"/hypermarkte/": directoryPage([2]string{"ShopA", "/a/"}),
		"/a/": listingPage(
			listing("/img1.jpg", "Angebote gültig"),
			listing("/img2.jpg", "08.03 - 14.03.2024"),
		),
	}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	collection, err := newRunner(t, srv, afero.NewMemMapFs(), 1).Run(context.Background())

	require.NoError(t, err)
	leaflets := collection.Leaflets("ShopA")
	require.Len(t, leaflets, 2)
	assert.Empty(t, leaflets[0].ValidFrom())
	assert.Empty(t, leaflets[0].ValidTo())
	assert.Equal(t, "08.03", leaflets[1].ValidFrom())
}

func TestRunner_Run_FailedStoreWritesNothing(t *testing.T) {
	s := &site{
		pages: map[string]string{
			"/hypermarkte/": directoryPage([2]string{"ShopA", "/a/"}, [2]string{"ShopB", "/b/"}, [2]string{"ShopC", "/c/"}),
			"/a/":           listingPage(listing("/img1.jpg", "01.03 - 07.03.2024")),
			"/c/":           listingPage(),
		},
		status: map[string]int{"/b/": http.StatusInternalServerError},
	}
	srv := httptest.NewServer(s)
	defer srv.Close()
	fs := afero.NewMemMapFs()

	_, err := newRunner(t, srv, fs, 1).Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrUnexpectedStatus)
	assert.Contains(t, err.Error(), "ShopB")
	assert.NotContains(t, s.requested(), "/c/")

	exists, err := afero.Exists(fs, models.DefaultOutputName)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunner_Run_MalformedListingAborts(t *testing.T) {
	s := &site{pages: map[string]string{
		"/hypermarkte/": directoryPage([2]string{"ShopA", "/a/"}),
		"/a/":           listingPage(listing("/img1.jpg", "01.03 - 07.03.2024"), `<div class="brochure-thumb"></div>`),
	}}
	srv := httptest.NewServer(s)
	defer srv.Close()
	fs := afero.NewMemMapFs()

	_, err := newRunner(t, srv, fs, 1).Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrMissingElement)
	assert.Contains(t, err.Error(), "listing 1 of ShopA")
	exists, _ := afero.Exists(fs, models.DefaultOutputName)
	assert.False(t, exists)
}

func TestRunner_Run_DirectoryFailure(t *testing.T) {
	s := &site{status: map[string]int{"/hypermarkte/": http.StatusBadGateway}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	_, err := newRunner(t, srv, afero.NewMemMapFs(), 1).Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "store directory")
}

func TestScrapeAll_WorkersKeepDirectoryOrder(t *testing.T) {
	s := &site{
		pages: map[string]string{
			"/hypermarkte/": directoryPage(
				[2]string{"Slow", "/slow/"},
				[2]string{"Fast", "/fast/"},
				[2]string{"Empty", "/empty/"},
			),
			"/slow/":  listingPage(listing("/s1.jpg", "01.03 - 07.03.2024"), listing("/s2.jpg", "")),
			"/fast/":  listingPage(listing("/f1.jpg", "01.03 - 07.03.2024")),
			"/empty/": listingPage(),
		},
		delay: map[string]time.Duration{"/slow/": 100 * time.Millisecond},
	}
	srv := httptest.NewServer(s)
	defer srv.Close()

	collection, err := newRunner(t, srv, afero.NewMemMapFs(), 3).Service.ScrapeAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"Slow", "Fast", "Empty"}, collection.Shops())
	require.Len(t, collection.Leaflets("Slow"), 2)
	assert.Equal(t, "/s1.jpg", collection.Leaflets("Slow")[0].Thumbnail())
	assert.Equal(t, "/s2.jpg", collection.Leaflets("Slow")[1].Thumbnail())
	assert.Empty(t, collection.Leaflets("Empty"))
}

func TestScrapeAll_WorkersFailFast(t *testing.T) {
	s := &site{
		pages: map[string]string{
			"/hypermarkte/": directoryPage([2]string{"ShopA", "/a/"}, [2]string{"ShopB", "/b/"}),
			"/a/":           listingPage(),
		},
		status: map[string]int{"/b/": http.StatusNotFound},
	}
	srv := httptest.NewServer(s)
	defer srv.Close()

	_, err := newRunner(t, srv, afero.NewMemMapFs(), 2).Service.ScrapeAll(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, repository.ErrUnexpectedStatus)
}

// mapFetcher serves pages from memory.
type mapFetcher map[string]string

func (m mapFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	page, ok := m[url]
	if !ok {
		return nil, &repository.StatusError{URL: url, StatusCode: http.StatusNotFound}
	}
	return strings.NewReader(page), nil
}

type fakeMirror struct {
	runID string
	doc   *models.Document
	err   error
}

func (f *fakeMirror) Init(ctx context.Context) error { return nil }

func (f *fakeMirror) InsertLeaflets(ctx context.Context, runID string, doc *models.Document) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.runID = runID
	f.doc = doc
	n := 0
	for _, shop := range doc.Shops() {
		n += len(doc.Leaflets(shop))
	}
	return n, nil
}

func (f *fakeMirror) CountLeaflets(ctx context.Context) (int, error) { return 0, nil }

func (f *fakeMirror) GetLatestLeaflets(ctx context.Context) (*models.Document, error) {
	return f.doc, nil
}

func newMapService(logger logrus.FieldLogger) LeafletService {
	fetcher := mapFetcher{
		"https://leaflets.test/hypermarkte/": directoryPage([2]string{" Kaufland ", "/kaufland/"}),
		"https://leaflets.test/kaufland/":    listingPage(listing("/k.jpg", "01.03 - 07.03.2024")),
	}
	return NewLeafletService(fetcher, parser.NewLeafletParser(parser.DefaultSchema()), Options{
		BaseURL: "https://leaflets.test",
		Logger:  logger,
	})
}

func TestGetStores(t *testing.T) {
	logger, hook := test.NewNullLogger()

	stores, err := newMapService(logger).GetStores(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []models.Store{{Name: "Kaufland", URL: "https://leaflets.test/kaufland/"}}, stores)
	assert.NotEmpty(t, hook.Entries)
}

func TestRunner_Run_Mirror(t *testing.T) {
	logger, _ := test.NewNullLogger()
	mirror := &fakeMirror{}
	runner := &Runner{
		Service:    newMapService(logger),
		Sink:       repository.NewJSONFileSink(afero.NewMemMapFs()),
		OutputName: "custom.json",
		Mirror:     mirror,
		Logger:     logger,
	}

	_, err := runner.Run(context.Background())

	require.NoError(t, err)
	assert.Len(t, mirror.runID, 36)
	assert.Equal(t, []string{"Kaufland"}, mirror.doc.Shops())
}

func TestRunner_Run_MirrorError(t *testing.T) {
	logger, _ := test.NewNullLogger()
	runner := &Runner{
		Service: newMapService(logger),
		Sink:    repository.NewJSONFileSink(afero.NewMemMapFs()),
		Mirror:  &fakeMirror{err: errors.New("connection refused")},
		Logger:  logger,
	}

	_, err := runner.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
