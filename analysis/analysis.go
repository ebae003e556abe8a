package analysis

import (
	"fmt"
	"strings"
)

// ImageAnalysis is the outcome of describing a single image URL. It is
// created once by the fan-out analyzer and never mutated afterwards; a
// failure is data, not an error value.
type ImageAnalysis struct {
	URL         string `json:"url"`
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Failure builds a failed analysis for the given URL with a human-readable
// reason.
func Failure(url, reason string) *ImageAnalysis {
	return &ImageAnalysis{URL: url, OK: false, Error: reason}
}

// Successful filters a result list down to the entries that analyzed
// cleanly, preserving order.
func Successful(results []*ImageAnalysis) []*ImageAnalysis {
	ok := make([]*ImageAnalysis, 0, len(results))
	for _, r := range results {
		if r != nil && r.OK && r.Error == "" {
			ok = append(ok, r)
		}
	}
	return ok
}

// TravelPlan is the structured output of one successful synthesis. Immutable
// once returned.
type TravelPlan struct {
	Destination string   `json:"destination"`
	Dates       string   `json:"dates,omitempty"`
	Summary     string   `json:"summary"`
	Itinerary   []string `json:"itinerary"`
	Places      []string `json:"places,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// RenderMarkdown formats an ordered analysis list as a markdown report, one
// section per image. Failed entries keep their slot so numbering matches the
// source URL order.
func RenderMarkdown(results []*ImageAnalysis) string {
	var b strings.Builder
	b.WriteString("# Image Analysis Results\n\n")
	for i, r := range results {
		fmt.Fprintf(&b, "## Image %d\n\n", i+1)
		if r == nil {
			b.WriteString("**Error:** missing result\n\n")
			continue
		}
		if r.OK {
			if r.Location != "" {
				fmt.Fprintf(&b, "**Location:** %s\n\n", r.Location)
			}
			b.WriteString(r.Description)
			b.WriteString("\n\n")
			continue
		}
		reason := r.Error
		if reason == "" {
			reason = "unknown error"
		}
		fmt.Fprintf(&b, "**Error:** %s\n\n", reason)
	}
	return b.String()
}
