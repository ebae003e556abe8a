package extractor

import (
	"context"
	"fmt"
)

// MatchFunc reports whether an extractor wants a given source.
type MatchFunc func(source string) bool

type route struct {
	match MatchFunc
	ext   Extractor
}

// Router dispatches a source to the first registered extractor that claims
// it, falling back to a default extractor for everything else.
type Router struct {
	routes   []route
	fallback Extractor
}

// NewRouter creates a router with the given fallback extractor.
func NewRouter(fallback Extractor) *Router {
	return &Router{fallback: fallback}
}

// Route registers an extractor for sources matched by match. Routes are
// tried in registration order.
func (r *Router) Route(match MatchFunc, ext Extractor) *Router {
	r.routes = append(r.routes, route{match: match, ext: ext})
	return r
}

// ExtractImageURLs dispatches to the matching extractor.
func (r *Router) ExtractImageURLs(ctx context.Context, source string, limit int) ([]string, error) {
	for _, rt := range r.routes {
		if rt.match(source) {
			return rt.ext.ExtractImageURLs(ctx, source, limit)
		}
	}
	if r.fallback == nil {
		return nil, fmt.Errorf("no extractor for source %q", source)
	}
	return r.fallback.ExtractImageURLs(ctx, source, limit)
}
