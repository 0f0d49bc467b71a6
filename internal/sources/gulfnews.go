package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Rohitw3code/sentinews-api/pkg/scraper"
)

const (
	gulfNewsName    = "gulfnews.com"
	gulfNewsBaseURL = "https://gulfnews.com"
	gulfNewsListURL = gulfNewsBaseURL + "/business"
)

// Article URLs end with a numeric story id, e.g. /markets/story-slug-1.1234567.
var gulfNewsArticlePattern = regexp.MustCompile(`^/[^/]+/.+-1\.\d+`)

// GulfNewsSource scrapes the Gulf News business section.
type GulfNewsSource struct {
	fetcher scraper.Fetcher
	listURL string
}

var _ Source = (*GulfNewsSource)(nil)

// NewGulfNewsSource wires the shared fetcher.
func NewGulfNewsSource(f scraper.Fetcher) *GulfNewsSource {
	return &GulfNewsSource{fetcher: f, listURL: gulfNewsListURL}
}

func (g *GulfNewsSource) Name() string { return gulfNewsName }

// DiscoverURLs collects every anchor matching the story-id URL pattern.
func (g *GulfNewsSource) DiscoverURLs(ctx context.Context) ([]string, error) {
	doc, _, err := fetchDocument(ctx, g.fetcher, g.listURL)
	if err != nil {
		return nil, &SourceUnavailableError{Source: gulfNewsName, Err: err}
	}

	var urls []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if !gulfNewsArticlePattern.MatchString(href) {
			return
		}
		if strings.HasPrefix(href, "/") {
			urls = append(urls, gulfNewsBaseURL+href)
		}
	})

	return uniqueSorted(urls), nil
}

// FetchArticle extracts structured data from one Gulf News article page.
// The publication date is taken from JSON-LD metadata when present.
func (g *GulfNewsSource) FetchArticle(ctx context.Context, url string) (*Article, error) {
	doc, rawHTML, err := fetchDocument(ctx, g.fetcher, url)
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}

	article, err := parseGulfNewsArticle(doc, url)
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}
	if article.RawText == "" {
		article.RawText = scraper.ExtractText(rawHTML)
	}
	return article, nil
}

func parseGulfNewsArticle(doc *goquery.Document, url string) (*Article, error) {
	// Canonical link is the dedup key; fall back to the request URL.
	canonical := url
	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok && href != "" {
		canonical = href
	}

	title := strings.TrimSpace(doc.Find("h1.ORiM7").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		return nil, fmt.Errorf("article title not found")
	}

	published := extractJSONLDDate(doc)
	if published == "" {
		timeTag := doc.Find("time").First()
		if dt, ok := timeTag.Attr("datetime"); ok {
			published = dt
		} else {
			published = strings.TrimSpace(timeTag.Text())
		}
	}

	author := strings.TrimSpace(doc.Find("div._48or4 > a").First().Text())

	body := joinParagraphs(doc.Find("div.Iqx1L"))
	if body == "" {
		return nil, fmt.Errorf("article body not found")
	}

	return &Article{
		URL:       canonical,
		Source:    gulfNewsName,
		Title:     title,
		Author:    author,
		Published: published,
		Body:      body,
		ScrapedAt: time.Now().UTC(),
	}, nil
}

// extractJSONLDDate pulls datePublished from embedded schema.org metadata.
func extractJSONLDDate(doc *goquery.Document) string {
	var published string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data struct {
			Type          string `json:"@type"`
			DatePublished string `json:"datePublished"`
		}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if (data.Type == "Article" || data.Type == "NewsArticle") && data.DatePublished != "" {
			published = data.DatePublished
			return false
		}
		return true
	})
	return published
}
