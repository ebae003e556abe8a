// Package describer defines the contract for vision collaborators that
// describe a single image URL.
package describer

import (
	"context"

	"github.com/sweetpotato0/tripflow/analysis"
)

// Describer produces an analysis for one image URL. It always returns a
// result object: "not an image", timeouts, and content rejections are
// encoded in the result's Error field rather than surfaced as Go errors.
type Describer interface {
	Describe(ctx context.Context, url string) *analysis.ImageAnalysis
}

// Func adapts a plain function to the Describer interface.
type Func func(ctx context.Context, url string) *analysis.ImageAnalysis

// Describe implements Describer.
func (f Func) Describe(ctx context.Context, url string) *analysis.ImageAnalysis {
	return f(ctx, url)
}
