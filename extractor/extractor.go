// Package extractor defines the contract for collaborators that turn a user
// supplied source (page URL, direct image link, or profile handle) into a
// list of candidate image URLs.
package extractor

import (
	"context"
	"regexp"
	"strings"
)

// Extractor fetches candidate image URLs for a source. An empty list is a
// valid outcome; a non-nil error means the extraction call itself failed.
type Extractor interface {
	ExtractImageURLs(ctx context.Context, source string, limit int) ([]string, error)
}

// imageExtensions are the suffixes treated as direct image links.
var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".avif"}

// Permissive scheme + host + optional path check. Deliberately loose: a URL
// that fails here is "no extractable content", not a hard error.
var urlPattern = regexp.MustCompile(
	`(?i)^(?:http|ftp)s?://` +
		`(?:(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+(?:[a-z]{2,6}\.?|[a-z0-9-]{2,}\.?)|` +
		`localhost|` +
		`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
		`(?::\d+)?` +
		`(?:/?|[/?]\S+)$`)

// IsValidURL reports whether the string looks like a fetchable URL.
func IsValidURL(raw string) bool {
	return urlPattern.MatchString(raw)
}

var handlePattern = regexp.MustCompile(`^@[A-Za-z0-9._]{1,30}$`)

// FindSource scans free-form user text for the first extractable source: a
// well-formed URL or a profile handle token like "@sometraveler". Malformed
// URLs are skipped rather than reported; a turn without a source is a normal
// conversational turn.
func FindSource(text string) (string, bool) {
	for _, token := range strings.Fields(text) {
		trimmed := strings.Trim(token, ".,;:!?()[]<>\"'")
		if trimmed == "" {
			continue
		}
		if IsValidURL(trimmed) {
			return trimmed, true
		}
		if handlePattern.MatchString(trimmed) {
			return trimmed, true
		}
	}
	return "", false
}

// IsImageURL reports whether the URL points directly at an image file,
// judged by its path extension with any query string stripped.
func IsImageURL(raw string) bool {
	lower := strings.ToLower(raw)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
