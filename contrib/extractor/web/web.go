// Package web extracts candidate image URLs from an arbitrary web page by
// fetching it and scanning its img tags.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/sweetpotato0/tripflow/extractor"
	"github.com/sweetpotato0/tripflow/pkg/logging"
)

// Extractor fetches a page and collects image URLs from it. A source that is
// itself a direct image link short-circuits to a one-element list.
type Extractor struct {
	client  *http.Client
	logger  *slog.Logger
	timeout time.Duration
}

// Option is a function that configures the web extractor.
type Option func(*Extractor)

// WithHTTPClient sets the shared HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Extractor) {
		if client != nil {
			e.client = client
		}
	}
}

// WithTimeout bounds each page fetch.
func WithTimeout(d time.Duration) Option {
	return func(e *Extractor) { e.timeout = d }
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates a web page image extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		client:  http.DefaultClient,
		timeout: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.WithComponent("web_extractor")
	}
	return e
}

// ExtractImageURLs fetches the source page and returns up to limit image
// URLs found in it, in document order, deduplicated.
func (e *Extractor) ExtractImageURLs(ctx context.Context, source string, limit int) ([]string, error) {
	if !extractor.IsValidURL(source) {
		return nil, fmt.Errorf("source is not a fetchable URL: %s", source)
	}
	if extractor.IsImageURL(source) {
		return []string{source}, nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("User-Agent", "tripflow/1.0")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch page: unexpected status %d", resp.StatusCode)
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "image/") {
		return []string{source}, nil
	}
	if !strings.Contains(contentType, "html") {
		return nil, fmt.Errorf("source content type %q is not a web page", contentType)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	base, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse source URL: %w", err)
	}

	seen := make(map[string]struct{})
	urls := make([]string, 0)
	doc.Find("img").EachWithBreak(func(i int, s *goquery.Selection) bool {
		src, ok := s.Attr("src")
		if !ok || src == "" {
			return true
		}
		resolved := resolveURL(base, src)
		if resolved == "" || !extractor.IsImageURL(resolved) {
			return true
		}
		if _, dup := seen[resolved]; dup {
			return true
		}
		seen[resolved] = struct{}{}
		urls = append(urls, resolved)
		return limit <= 0 || len(urls) < limit
	})

	e.logger.Debug("page scanned", "source", source, "images", len(urls))
	return urls, nil
}

func resolveURL(base *url.URL, src string) string {
	ref, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}
