// Package sources defines the news-source capability interface, the registry
// the pipeline engine discovers sources through, and the concrete scrapers.
package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Rohitw3code/sentinews-api/pkg/scraper"
)

// Article is one extracted news article. Published carries the
// source-reported date verbatim; ScrapedAt is set by the scraper.
type Article struct {
	URL       string    `json:"url"`
	Source    string    `json:"source"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"`
	Published string    `json:"published,omitempty"`
	Body      string    `json:"body"`
	RawText   string    `json:"raw_text,omitempty"`
	ScrapedAt time.Time `json:"scraped_at"`
}

// Source is the two-operation capability every news source implements.
// Integrating a new source means implementing this and registering it;
// the engine is never changed.
type Source interface {
	// Name returns the source identifier, e.g. "zawya.com".
	Name() string

	// DiscoverURLs lists candidate article URLs from the source's listing page.
	DiscoverURLs(ctx context.Context) ([]string, error)

	// FetchArticle downloads and extracts a single article.
	FetchArticle(ctx context.Context, url string) (*Article, error)
}

// SourceUnavailableError reports that URL discovery failed for one source.
// The pipeline skips the source and continues the run.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// ExtractionError reports that fetching or parsing one article failed.
// The URL stays novel and may be retried on a future run.
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Registry holds all registered sources, keyed by name. It is built
// explicitly at process start; there is no dynamic discovery.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates an empty source registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Register adds or replaces a source.
func (r *Registry) Register(s Source) {
	if r.sources == nil {
		r.sources = map[string]Source{}
	}
	r.sources[s.Name()] = s
}

// Names returns the sorted identifiers of all registered sources.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns a source by name.
func (r *Registry) Resolve(name string) (Source, error) {
	if s, ok := r.sources[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("source %s is not registered", name)
}

// Select returns the sources for the requested names, preserving caller
// order. A nil or empty selection means all sources, sorted by name.
// Unknown names are reported, not silently dropped.
func (r *Registry) Select(names []string) ([]Source, error) {
	if len(names) == 0 {
		all := make([]Source, 0, len(r.sources))
		for _, name := range r.Names() {
			all = append(all, r.sources[name])
		}
		return all, nil
	}

	selected := make([]Source, 0, len(names))
	for _, name := range names {
		s, err := r.Resolve(name)
		if err != nil {
			return nil, err
		}
		selected = append(selected, s)
	}
	return selected, nil
}

// Default builds the registry with all built-in scrapers.
func Default() *Registry {
	fetcher := scraper.NewHTTPFetcher()
	r := NewRegistry()
	r.Register(NewZawyaSource(fetcher))
	r.Register(NewGulfNewsSource(fetcher))
	r.Register(NewMENABytesSource(fetcher))
	return r
}

// fetchDocument downloads a URL and parses it into a goquery document.
func fetchDocument(ctx context.Context, f scraper.Fetcher, url string) (*goquery.Document, string, error) {
	res, err := f.Fetch(ctx, url, nil)
	if err != nil {
		return nil, "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(res.RawHTML))
	if err != nil {
		return nil, "", fmt.Errorf("parse document: %w", err)
	}
	return doc, res.RawHTML, nil
}

// uniqueSorted deduplicates URLs while keeping deterministic output order.
func uniqueSorted(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// joinParagraphs extracts the trimmed text of each <p> in the selection.
func joinParagraphs(sel *goquery.Selection) string {
	var parts []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		if text := strings.TrimSpace(p.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, "\n")
}
