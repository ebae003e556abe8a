// Package planner defines the language-model collaborators consumed by the
// orchestration loop: plan synthesis from image analyses, and plain
// conversational replies for turns with nothing to analyze.
package planner

import (
	"context"

	"github.com/sweetpotato0/tripflow/analysis"
	"github.com/sweetpotato0/tripflow/message"
)

// Synthesizer merges successful image analyses into one structured travel
// plan. It is invoked at most once per turn and never retried.
type Synthesizer interface {
	Synthesize(ctx context.Context, analyses []*analysis.ImageAnalysis) (*analysis.TravelPlan, error)
}

// Responder generates the assistant reply for turns that carry no
// extractable source, from the accumulated session history.
type Responder interface {
	Reply(ctx context.Context, turns []*message.Message) (string, error)
}
