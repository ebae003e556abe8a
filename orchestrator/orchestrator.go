// Package orchestrator drives the per-turn conversation pipeline: intake,
// source extraction, concurrent image analysis, plan synthesis, and response
// assembly, with all session mutation confined to one per-session critical
// section.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/sweetpotato0/tripflow/analysis"
	tferrors "github.com/sweetpotato0/tripflow/errors"
	"github.com/sweetpotato0/tripflow/extractor"
	"github.com/sweetpotato0/tripflow/message"
	"github.com/sweetpotato0/tripflow/middleware"
	"github.com/sweetpotato0/tripflow/pkg/logging"
	"github.com/sweetpotato0/tripflow/pkg/telemetry"
	"github.com/sweetpotato0/tripflow/planner"
	"github.com/sweetpotato0/tripflow/session"
)

// Result is the outcome of one processed turn.
type Result struct {
	SessionID string
	Response  string
	Status    Status
}

// Orchestrator owns the turn state machine. Collaborators are narrow
// interfaces; their failures degrade to fixed user-facing messages rather
// than faults.
type Orchestrator struct {
	sessions     *session.Manager
	extractor    extractor.Extractor
	analyzer     *Analyzer
	synthesizer  planner.Synthesizer
	responder    planner.Responder
	chain        *middleware.Chain
	logger       *slog.Logger
	tracer       trace.Tracer
	extractLimit int
}

// Option is a function that configures an Orchestrator.
type Option func(*Orchestrator)

// WithSessions sets the session manager.
func WithSessions(m *session.Manager) Option {
	return func(o *Orchestrator) { o.sessions = m }
}

// WithExtractor sets the extraction collaborator.
func WithExtractor(e extractor.Extractor) Option {
	return func(o *Orchestrator) { o.extractor = e }
}

// WithAnalyzer sets the fan-out analyzer.
func WithAnalyzer(a *Analyzer) Option {
	return func(o *Orchestrator) { o.analyzer = a }
}

// WithSynthesizer sets the plan synthesis collaborator.
func WithSynthesizer(s planner.Synthesizer) Option {
	return func(o *Orchestrator) { o.synthesizer = s }
}

// WithResponder sets the conversational reply collaborator.
func WithResponder(r planner.Responder) Option {
	return func(o *Orchestrator) { o.responder = r }
}

// WithMiddleware sets the interception chain wrapped around each turn.
func WithMiddleware(c *middleware.Chain) Option {
	return func(o *Orchestrator) { o.chain = c }
}

// WithLogger overrides the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithExtractionLimit caps how many image URLs one turn may analyze.
func WithExtractionLimit(limit int) Option {
	return func(o *Orchestrator) { o.extractLimit = limit }
}

// New creates an orchestrator. A session manager, extractor, analyzer,
// synthesizer and responder must all be provided before processing turns.
func New(opts ...Option) *Orchestrator {
	o := &Orchestrator{
		chain:        middleware.NewChain(),
		extractLimit: 10,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logging.WithComponent("orchestrator")
	}
	o.tracer = otel.Tracer("tripflow/orchestrator")
	return o
}

// ProcessTurn runs one full turn for a session: the per-session lock is held
// from before the first session read until after the final write, so two
// concurrent messages in the same session fully serialize. On an internal
// error the session is rolled back to its pre-turn snapshot and the error is
// returned for the transport layer to report.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID, input string) (*Result, error) {
	unlock := o.sessions.Lock(sessionID)
	defer unlock()

	ctx, span := o.tracer.Start(ctx, "orchestrator.process_turn",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	var turnErr error
	defer func() { telemetry.End(span, turnErr) }()

	sess, err := o.sessions.GetOrCreate(ctx, sessionID)
	if err != nil {
		turnErr = fmt.Errorf("%w: %w", tferrors.ErrInternal, err)
		return nil, turnErr
	}

	snapshot := sess.Snapshot()

	mctx := middleware.NewContext(ctx)
	mctx.SessionID = sessionID
	mctx.Input = input

	err = o.chain.Execute(mctx, func(mc *middleware.Context) error {
		result, err := o.runTurn(mc.Context(), sess, mc.Input)
		if err != nil {
			return err
		}
		mc.Response = result.Response
		mc.Status = string(result.Status)
		return nil
	})
	if err != nil {
		// Discard the failing turn's partial work.
		sess.Restore(snapshot)
		o.logger.Error("turn failed", "session_id", sessionID, "error", err)
		turnErr = fmt.Errorf("%w: %w", tferrors.ErrInternal, err)
		return nil, turnErr
	}

	if err := o.sessions.Save(ctx, sess); err != nil {
		sess.Restore(snapshot)
		turnErr = fmt.Errorf("%w: %w", tferrors.ErrInternal, err)
		return nil, turnErr
	}

	span.SetAttributes(attribute.String("turn.status", mctx.Status))
	return &Result{
		SessionID: sessionID,
		Response:  mctx.Response,
		Status:    Status(mctx.Status),
	}, nil
}

// runTurn executes the state machine for one turn. Collaborator failures are
// absorbed here into degraded statuses; only unexpected conditions surface
// as errors.
func (o *Orchestrator) runTurn(ctx context.Context, sess *session.Session, input string) (*Result, error) {
	sess.BeginTurn()
	sess.Append(message.NewMessage(message.RoleUser, input))

	source, found := extractor.FindSource(input)
	if !found {
		return o.respondDirectly(ctx, sess)
	}

	span := trace.SpanFromContext(ctx)

	sess.SetStage(session.StageExtracting)
	span.AddEvent("extracting")
	o.logger.Info("extracting image URLs", "session_id", sess.ID(), "source", source)

	urls, err := o.extractor.ExtractImageURLs(ctx, source, o.extractLimit)
	if err != nil {
		o.logger.Warn("extraction failed", "session_id", sess.ID(), "source", source, "error", err)
		return o.finish(sess, msgAgentError, StatusAgentError), nil
	}
	if len(urls) == 0 {
		return o.finish(sess, msgNoURLsFound, StatusNoURLsFound), nil
	}

	sess.PendingURLs = urls
	sess.SetStage(session.StageAnalyzing)
	span.AddEvent("analyzing", trace.WithAttributes(attribute.Int("urls", len(urls))))
	o.logger.Info("analyzing images", "session_id", sess.ID(), "count", len(urls))

	results := o.analyzer.AnalyzeAll(ctx, urls)
	sess.Analyses = results
	// Persist a readable per-image report alongside the raw results.
	sess.Metadata["analysis_report"] = analysis.RenderMarkdown(results)

	successful := analysis.Successful(results)
	o.logger.Info("analysis complete",
		"session_id", sess.ID(), "total", len(results), "successful", len(successful))
	if len(successful) == 0 {
		return o.finish(sess, msgAnalysisFailed, StatusAnalysisFailed), nil
	}

	sess.SetStage(session.StageSynthesizing)
	span.AddEvent("synthesizing", trace.WithAttributes(attribute.Int("analyses", len(successful))))
	plan, err := o.synthesizer.Synthesize(ctx, successful)
	if err != nil || plan == nil {
		o.logger.Warn("synthesis failed", "session_id", sess.ID(), "error", err)
		return o.finish(sess, msgSynthesisFailed, StatusSynthesisFailed), nil
	}

	sess.SetStage(session.StageResponding)
	if raw, err := json.Marshal(plan); err == nil {
		sess.Append(message.NewToolMessage("travel_plan_synthesis", string(raw)))
	}

	summary := fmt.Sprintf(
		"Okay, I've analyzed the images from the URL you provided! "+
			"Based on what I saw, here's a little summary of your visual travel preferences:\n\n%s\n\n"+
			"What do you think? Does that sound like you? We can explore destinations based on this!",
		plan.Summary)
	sess.Append(message.NewMessage(message.RoleAssistant, summary))

	return &Result{SessionID: sess.ID(), Response: summary, Status: StatusProfileGenerated}, nil
}

// respondDirectly handles turns with no extractable source: the responder
// collaborator generates a plain conversational reply from the accumulated
// history.
func (o *Orchestrator) respondDirectly(ctx context.Context, sess *session.Session) (*Result, error) {
	sess.SetStage(session.StageResponding)

	reply, err := o.responder.Reply(ctx, sess.Turns)
	if err != nil {
		o.logger.Warn("responder failed", "session_id", sess.ID(), "error", err)
		return o.finish(sess, msgAgentError, StatusAgentError), nil
	}
	if reply == "" {
		reply = "How can I help you further?"
	}

	sess.Append(message.NewMessage(message.RoleAssistant, reply))
	return &Result{SessionID: sess.ID(), Response: reply, Status: StatusOK}, nil
}

// finish appends the degraded-path assistant turn and packages the result.
// The session history is still updated so the conversation can continue.
func (o *Orchestrator) finish(sess *session.Session, reply string, status Status) *Result {
	sess.SetStage(session.StageResponding)
	sess.Append(message.NewMessage(message.RoleAssistant, reply))
	return &Result{SessionID: sess.ID(), Response: reply, Status: status}
}

// Clear removes a session. The returned bool reports whether it existed;
// clearing an unknown session succeeds.
func (o *Orchestrator) Clear(ctx context.Context, sessionID string) (bool, error) {
	unlock := o.sessions.Lock(sessionID)
	defer unlock()
	return o.sessions.Delete(ctx, sessionID)
}

// SessionCount reports how many sessions are stored.
func (o *Orchestrator) SessionCount(ctx context.Context) (int, error) {
	return o.sessions.Count(ctx)
}
