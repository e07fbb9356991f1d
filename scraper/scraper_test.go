package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestScrape(t *testing.T) {
	htmlContent := `<!DOCTYPE html>
<html>
<head><title>Front Page</title></head>
<body>
<article>
<h1>Front Page Headline</h1>
<p>This is the main content of the page. It contains headlines that should be extracted.</p>
<p>Second paragraph with more details about recent stories.</p>
</article>
</body>
</html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(htmlContent))
	}))
	defer server.Close()

	s := NewScraper(WithTimeout(5 * time.Second))

	content, err := s.Scrape(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}

	if !strings.Contains(content, "main content") {
		t.Errorf("content should contain 'main content', got: %s", content)
	}
}

func TestScrapeContentLimit(t *testing.T) {
	largeContent := strings.Repeat("x", 5000)
	htmlContent := `<!DOCTYPE html>
<html>
<head><title>Test</title></head>
<body><p>` + largeContent + `</p></body>
</html>`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(htmlContent))
	}))
	defer server.Close()

	s := NewScraper(WithMaxContentLength(1000))

	content, err := s.Scrape(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}

	if len(content) > 1000 {
		t.Errorf("content length = %d, want <= 1000", len(content))
	}
}

func TestScrapeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewScraper()
	if _, err := s.Scrape(context.Background(), server.URL); err == nil {
		t.Fatal("expected error for server error response")
	}
}

func TestScrapeContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte("<html><body>content</body></html>"))
	}))
	defer server.Close()

	s := NewScraper()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Scrape(ctx, server.URL); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestScrapeInvalidURL(t *testing.T) {
	s := NewScraper()
	if _, err := s.Scrape(context.Background(), "not-a-valid-url"); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestDefaultScraper(t *testing.T) {
	s := NewScraper()
	if s.maxContentLen != defaultMaxContentLen {
		t.Errorf("default maxContentLen = %d, want %d", s.maxContentLen, defaultMaxContentLen)
	}
}
