package session

import (
	"time"

	"github.com/sweetpotato0/tripflow/analysis"
	"github.com/sweetpotato0/tripflow/message"
)

// State represents the lifecycle state of a session
type State string

const (
	StateActive State = "active"
	StateClosed State = "closed"
)

// Stage tags where a session's current turn sits in the orchestration
// pipeline. It is advisory state for observability; the pipeline itself
// drives the transitions.
type Stage string

const (
	StageIntake       Stage = "intake"
	StageExtracting   Stage = "extracting"
	StageAnalyzing    Stage = "analyzing"
	StageSynthesizing Stage = "synthesizing"
	StageResponding   Stage = "responding"
)

// Session holds the conversation state for one session identifier: the
// append-only turn history, the URLs pending analysis in the current turn,
// and the analyses produced for them. A session is only ever mutated inside
// one turn-processing critical section at a time; the Manager's per-session
// lock enforces that.
type Session struct {
	id          string
	State       State
	Stage       Stage
	Turns       []*message.Message
	PendingURLs []string
	Analyses    []*analysis.ImageAnalysis
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Metadata    map[string]any
}

// New initializes a new empty session.
func New(id string) *Session {
	return &Session{
		id:        id,
		State:     StateActive,
		Stage:     StageIntake,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// ID returns the session ID
func (s *Session) ID() string {
	return s.id
}

// Append adds a turn to the history.
func (s *Session) Append(msg *message.Message) {
	s.Turns = append(s.Turns, msg)
	s.UpdatedAt = time.Now()
}

// SetStage updates the pipeline stage tag.
func (s *Session) SetStage(stage Stage) {
	s.Stage = stage
	s.UpdatedAt = time.Now()
}

// BeginTurn resets the per-turn scratch state. The analyses of the previous
// turn are dropped; only the turn history carries across turns.
func (s *Session) BeginTurn() {
	s.PendingURLs = nil
	s.Analyses = nil
	s.SetStage(StageIntake)
}

// Snapshot returns a serializable copy of the session.
func (s *Session) Snapshot() *Record {
	rec := &Record{
		ID:          s.id,
		State:       s.State,
		Stage:       s.Stage,
		Turns:       message.CloneMessages(s.Turns),
		PendingURLs: append([]string(nil), s.PendingURLs...),
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
		Metadata:    cloneMetadata(s.Metadata),
	}
	if len(s.Analyses) > 0 {
		rec.Analyses = make([]*analysis.ImageAnalysis, len(s.Analyses))
		for i, a := range s.Analyses {
			if a != nil {
				c := *a
				rec.Analyses[i] = &c
			}
		}
	}
	return rec
}

// Restore overwrites the session's mutable state from a snapshot taken
// earlier with Snapshot. Used to roll a session back to its pre-turn state
// after an internal error.
func (s *Session) Restore(rec *Record) {
	if rec == nil {
		return
	}
	s.State = rec.State
	s.Stage = rec.Stage
	s.Turns = message.CloneMessages(rec.Turns)
	s.PendingURLs = append([]string(nil), rec.PendingURLs...)
	s.Analyses = cloneAnalyses(rec.Analyses)
	s.CreatedAt = rec.CreatedAt
	s.UpdatedAt = rec.UpdatedAt
	s.Metadata = cloneMetadata(rec.Metadata)
}

// FromRecord reconstructs a session from a stored record.
func FromRecord(rec *Record) *Session {
	if rec == nil {
		return nil
	}
	s := New(rec.ID)
	s.Restore(rec)
	return s
}

func cloneMetadata(meta map[string]any) map[string]any {
	cloned := make(map[string]any, len(meta))
	for k, v := range meta {
		cloned[k] = v
	}
	return cloned
}

func cloneAnalyses(in []*analysis.ImageAnalysis) []*analysis.ImageAnalysis {
	if len(in) == 0 {
		return nil
	}
	out := make([]*analysis.ImageAnalysis, len(in))
	for i, a := range in {
		if a != nil {
			c := *a
			out[i] = &c
		}
	}
	return out
}
