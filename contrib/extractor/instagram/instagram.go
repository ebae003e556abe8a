// Package instagram extracts image URLs from public Instagram profiles via
// the Apify scraping service.
package instagram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sweetpotato0/tripflow/pkg/logging"
)

const (
	defaultBaseURL = "https://api.apify.com"
	defaultActorID = "shu8hvrXbJbY3Eb9W"
)

// Extractor calls the Apify Instagram scraper actor synchronously and
// collects the image URLs from the returned dataset items.
type Extractor struct {
	client  *http.Client
	logger  *slog.Logger
	baseURL string
	actorID string
	token   string
	timeout time.Duration
}

// Option is a function that configures the Instagram extractor.
type Option func(*Extractor)

// WithHTTPClient sets the shared HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Extractor) {
		if client != nil {
			e.client = client
		}
	}
}

// WithBaseURL overrides the Apify API base URL, mainly for tests.
func WithBaseURL(baseURL string) Option {
	return func(e *Extractor) {
		if baseURL != "" {
			e.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithActorID overrides the scraper actor.
func WithActorID(actorID string) Option {
	return func(e *Extractor) {
		if actorID != "" {
			e.actorID = actorID
		}
	}
}

// WithTimeout bounds the synchronous actor run.
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

// New creates an Instagram extractor authenticated with the given Apify
// token.
func New(token string, opts ...Option) *Extractor {
	e := &Extractor{
		client:  http.DefaultClient,
		baseURL: defaultBaseURL,
		actorID: defaultActorID,
		token:   token,
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.WithComponent("instagram_extractor")
	}
	return e
}

// runInput is the actor input payload for a profile scrape.
type runInput struct {
	DirectURLs    []string `json:"directUrls"`
	ResultsType   string   `json:"resultsType"`
	ResultsLimit  int      `json:"resultsLimit"`
	SearchType    string   `json:"searchType"`
	SearchLimit   int      `json:"searchLimit"`
	AddParentData bool     `json:"addParentData"`
}

// datasetItem is the subset of an actor dataset item we care about.
type datasetItem struct {
	Images []string `json:"images"`
}

// ExtractImageURLs runs the scraper actor for the given profile handle or
// Instagram URL and returns up to limit post image URLs.
func (e *Extractor) ExtractImageURLs(ctx context.Context, source string, limit int) ([]string, error) {
	profileURL := profileURLFor(source)
	if profileURL == "" {
		return nil, fmt.Errorf("source %q is not an Instagram profile or handle", source)
	}
	if limit <= 0 {
		limit = 10
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	input := runInput{
		DirectURLs:    []string{profileURL},
		ResultsType:   "posts",
		ResultsLimit:  limit,
		SearchType:    "user",
		SearchLimit:   limit,
		AddParentData: false,
	}
	body, err := json.Marshal(input)
	if err != nil {
		return nil, fmt.Errorf("marshal actor input: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/run-sync-get-dataset-items?token=%s",
		e.baseURL, e.actorID, url.QueryEscape(e.token))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build actor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	e.logger.Info("running Instagram scraper", "profile", profileURL, "limit", limit)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("run scraper actor: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("scraper actor returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var items []datasetItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("decode dataset items: %w", err)
	}

	urls := make([]string, 0, limit)
	for _, item := range items {
		urls = append(urls, item.Images...)
	}
	if len(urls) > limit {
		urls = urls[:limit]
	}

	e.logger.Info("Instagram scrape finished", "profile", profileURL, "images", len(urls))
	return urls, nil
}

// profileURLFor maps a handle or Instagram URL to the profile page URL fed
// to the actor. Returns "" for sources that are neither.
func profileURLFor(source string) string {
	source = strings.TrimSpace(source)
	if strings.HasPrefix(source, "@") {
		handle := strings.TrimPrefix(source, "@")
		if handle == "" {
			return ""
		}
		return "https://www.instagram.com/" + handle
	}
	if strings.Contains(source, "instagram.com/") {
		return source
	}
	return ""
}

// Handles reports whether this extractor can serve the given source.
func Handles(source string) bool {
	return profileURLFor(source) != ""
}
