package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/Rohitw3code/sentinews-api/pkg/scraper"
)

const (
	menaBytesName    = "menabytes.com"
	menaBytesListURL = "https://www.menabytes.com"
)

// MENABytesSource scrapes the MENAbytes front page.
type MENABytesSource struct {
	fetcher scraper.Fetcher
	listURL string
}

var _ Source = (*MENABytesSource)(nil)

// NewMENABytesSource wires the shared fetcher.
func NewMENABytesSource(f scraper.Fetcher) *MENABytesSource {
	return &MENABytesSource{fetcher: f, listURL: menaBytesListURL}
}

func (m *MENABytesSource) Name() string { return menaBytesName }

// DiscoverURLs lists article links from the infinite-scroll post list.
// Links on the page are already absolute.
func (m *MENABytesSource) DiscoverURLs(ctx context.Context) ([]string, error) {
	doc, _, err := fetchDocument(ctx, m.fetcher, m.listURL)
	if err != nil {
		return nil, &SourceUnavailableError{Source: menaBytesName, Err: err}
	}

	var urls []string
	doc.Find("li.infinite-post").Each(func(_ int, item *goquery.Selection) {
		if href, ok := item.Find("a").First().Attr("href"); ok && href != "" {
			urls = append(urls, href)
		}
	})

	return uniqueSorted(urls), nil
}

// FetchArticle extracts structured data from one MENAbytes article page.
func (m *MENABytesSource) FetchArticle(ctx context.Context, url string) (*Article, error) {
	doc, rawHTML, err := fetchDocument(ctx, m.fetcher, url)
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}

	article, err := parseMENABytesArticle(doc, url)
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}
	if article.RawText == "" {
		article.RawText = scraper.ExtractText(rawHTML)
	}
	return article, nil
}

func parseMENABytesArticle(doc *goquery.Document, url string) (*Article, error) {
	title := strings.TrimSpace(doc.Find("h1.post-title").First().Text())
	if title == "" {
		return nil, fmt.Errorf("article title not found")
	}

	published := ""
	if dt, ok := doc.Find(`time[itemprop="datePublished"]`).First().Attr("datetime"); ok {
		published = dt
	}

	author := strings.TrimSpace(doc.Find("span.author-name").First().Text())

	contentArea := doc.Find("div#content-main").First()
	body := joinParagraphs(contentArea)
	if body == "" {
		return nil, fmt.Errorf("article body not found")
	}

	return &Article{
		URL:       url,
		Source:    menaBytesName,
		Title:     title,
		Author:    author,
		Published: published,
		Body:      body,
		RawText:   strings.TrimSpace(contentArea.Text()),
		ScrapedAt: time.Now().UTC(),
	}, nil
}
