package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExtractText(t *testing.T) {
	htmlContent := `
<html>
<head><title>Page</title><script>var x = 1;</script></head>
<body>
<nav>Home | News</nav>
<h1>Markets rally</h1>
<p>Stocks rose sharply on Monday.</p>
<ul><li>Oil up 2%</li><li>Gold flat</li></ul>
<footer>Copyright</footer>
</body>
</html>`

	text := ExtractText(htmlContent)

	if strings.Contains(text, "var x") {
		t.Fatal("script content should be removed")
	}
	if strings.Contains(text, "Home | News") {
		t.Fatal("nav content should be removed")
	}
	if strings.Contains(text, "Copyright") {
		t.Fatal("footer content should be removed")
	}
	if !strings.Contains(text, "Markets rally") {
		t.Fatal("heading text should be present")
	}
	if !strings.Contains(text, "Stocks rose sharply on Monday.") {
		t.Fatal("paragraph text should be present")
	}
	if !strings.Contains(text, "- Oil up 2%") {
		t.Fatal("list items should be prefixed with a dash")
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "SentiNews") {
			t.Errorf("unexpected user agent: %s", ua)
		}
		w.Write([]byte("<html><body><p>hello</p></body></html>"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	res, err := f.Fetch(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if !strings.Contains(res.RawHTML, "hello") {
		t.Fatal("expected body content in RawHTML")
	}
}

func TestFetch_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := NewHTTPFetcher()
	if _, err := f.Fetch(context.Background(), srv.URL, nil); err == nil {
		t.Fatal("expected error for 403 response")
	}
}
