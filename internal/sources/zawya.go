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
	zawyaName    = "zawya.com"
	zawyaBaseURL = "https://www.zawya.com"
	zawyaListURL = zawyaBaseURL + "/en/business"
)

// ZawyaSource scrapes the Zawya business section.
type ZawyaSource struct {
	fetcher scraper.Fetcher
	listURL string
}

var _ Source = (*ZawyaSource)(nil)

// NewZawyaSource wires the shared fetcher.
func NewZawyaSource(f scraper.Fetcher) *ZawyaSource {
	return &ZawyaSource{fetcher: f, listURL: zawyaListURL}
}

func (z *ZawyaSource) Name() string { return zawyaName }

// DiscoverURLs lists article links from the business listing page.
func (z *ZawyaSource) DiscoverURLs(ctx context.Context) ([]string, error) {
	doc, _, err := fetchDocument(ctx, z.fetcher, z.listURL)
	if err != nil {
		return nil, &SourceUnavailableError{Source: zawyaName, Err: err}
	}

	var urls []string
	doc.Find("div.teaser").Each(func(_ int, teaser *goquery.Selection) {
		link := teaser.Find("h2.teaser-title a, h3.teaser-title a").First()
		href, ok := link.Attr("href")
		if !ok || href == "" {
			return
		}
		if !strings.HasPrefix(href, "http") {
			href = zawyaBaseURL + href
		}
		urls = append(urls, href)
	})

	return uniqueSorted(urls), nil
}

// FetchArticle extracts title, date, author and body text from one article page.
func (z *ZawyaSource) FetchArticle(ctx context.Context, url string) (*Article, error) {
	doc, rawHTML, err := fetchDocument(ctx, z.fetcher, url)
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}

	article, err := parseZawyaArticle(doc, url)
	if err != nil {
		return nil, &ExtractionError{URL: url, Err: err}
	}
	if article.RawText == "" {
		article.RawText = scraper.ExtractText(rawHTML)
	}
	return article, nil
}

func parseZawyaArticle(doc *goquery.Document, url string) (*Article, error) {
	title := strings.TrimSpace(doc.Find("h1.article-title").First().Text())
	if title == "" {
		return nil, fmt.Errorf("article title not found")
	}

	published := strings.TrimSpace(doc.Find("div.article-date span").First().Text())
	author := strings.TrimSpace(doc.Find("span.author-name-text").First().Text())

	bodyDiv := doc.Find("div.article-body").First()
	body := joinParagraphs(bodyDiv)
	if body == "" {
		return nil, fmt.Errorf("article body not found")
	}

	return &Article{
		URL:       url,
		Source:    zawyaName,
		Title:     title,
		Author:    author,
		Published: published,
		Body:      body,
		RawText:   strings.TrimSpace(bodyDiv.Text()),
		ScrapedAt: time.Now().UTC(),
	}, nil
}
