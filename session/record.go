package session

import (
	"context"
	"time"

	"github.com/sweetpotato0/tripflow/analysis"
	"github.com/sweetpotato0/tripflow/message"
)

// Record is the serializable form of a session, shared by every storage
// backend.
type Record struct {
	ID          string                    `json:"id" bson:"_id"`
	State       State                     `json:"state" bson:"state"`
	Stage       Stage                     `json:"stage" bson:"stage"`
	Turns       []*message.Message        `json:"turns" bson:"turns"`
	PendingURLs []string                  `json:"pending_urls,omitempty" bson:"pending_urls,omitempty"`
	Analyses    []*analysis.ImageAnalysis `json:"analyses,omitempty" bson:"analyses,omitempty"`
	CreatedAt   time.Time                 `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time                 `json:"updated_at" bson:"updated_at"`
	Metadata    map[string]any            `json:"metadata,omitempty" bson:"metadata,omitempty"`
}

// Clone deep-copies the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cloned := *r
	cloned.Turns = message.CloneMessages(r.Turns)
	cloned.PendingURLs = append([]string(nil), r.PendingURLs...)
	cloned.Analyses = cloneAnalyses(r.Analyses)
	cloned.Metadata = cloneMetadata(r.Metadata)
	return &cloned
}

// Store defines the interface for session storage backends that operate on
// serializable session records.
type Store interface {
	Save(ctx context.Context, record *Record) error
	Load(ctx context.Context, id string) (*Record, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int, error)
	Exists(ctx context.Context, id string) (bool, error)
}
