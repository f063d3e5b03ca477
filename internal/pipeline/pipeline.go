// Package pipeline is the per-turn orchestrator: it detects session
// boundaries, runs detection and intervention, and commits the vetted turn
// to session memory.
package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/response-guard/internal/detector"
	"github.com/rcliao/response-guard/internal/intervene"
	"github.com/rcliao/response-guard/internal/memory"
	"github.com/rcliao/response-guard/internal/model"
	"github.com/rcliao/response-guard/internal/session"
)

// FallbackResponse is returned when a turn fails internally.
const FallbackResponse = "I'd like to hear more about what you're experiencing. Could you tell me a little more about what's on your mind?"

const actionFallback = "fallback"

// Turn is one candidate response awaiting vetting.
type Turn struct {
	Candidate string `json:"candidate"`
	UserInput string `json:"user"`
	// History holds earlier user inputs, oldest first. When nil it is taken
	// from session memory.
	History []string `json:"history,omitempty"`
	// PriorResponses holds earlier system responses, oldest first. When nil
	// they are taken from session memory.
	PriorResponses []string `json:"prior_responses,omitempty"`
}

// Result is the outcome of one turn.
type Result struct {
	FinalResponse  string         `json:"final_response"`
	Verdict        model.Verdict  `json:"verdict"`
	NewSession     bool           `json:"new_session"`
	BoundaryReason session.Reason `json:"boundary_reason,omitempty"`
	// Fallback is set when the turn failed and FinalResponse is the fixed
	// safe response. Memory is untouched in that case.
	Fallback bool `json:"fallback,omitempty"`
}

// Persister stores memory snapshots between process runs. Load returns an
// empty snapshot and no error for an unknown session.
type Persister interface {
	Save(ctx context.Context, sessionID string, snap memory.Snapshot) error
	Load(ctx context.Context, sessionID string) (memory.Snapshot, error)
}

// Session is one conversation and the memory it owns. Turns within a
// session are processed one at a time.
type Session struct {
	ID  string
	mu  sync.Mutex
	mem *memory.Store
}

// NewSession wraps mem as session id.
func NewSession(id string, mem *memory.Store) *Session {
	return &Session{ID: id, mem: mem}
}

// Memory returns the session store.
func (s *Session) Memory() *memory.Store { return s.mem }

// Pipeline vets candidate responses. It holds no per-session state and is
// safe to share across sessions.
type Pipeline struct {
	detector  *detector.Detector
	handler   *intervene.Handler
	boundary  *session.Detector
	tagger    memory.Tagger
	persister Persister
	metrics   *Metrics
	log       *zap.Logger
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDetector sets the emergency path detector.
func WithDetector(d *detector.Detector) Option { return func(p *Pipeline) { p.detector = d } }

// WithHandler sets the intervention handler.
func WithHandler(h *intervene.Handler) Option { return func(p *Pipeline) { p.handler = h } }

// WithBoundary sets the session boundary detector.
func WithBoundary(b *session.Detector) Option { return func(p *Pipeline) { p.boundary = b } }

// WithTagger sets the tagger used for committed records.
func WithTagger(t memory.Tagger) Option { return func(p *Pipeline) { p.tagger = t } }

// WithPersister enables saving a snapshot after every vetted turn.
func WithPersister(ps Persister) Option { return func(p *Pipeline) { p.persister = ps } }

// WithMetrics records turn metrics.
func WithMetrics(m *Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.log = l } }

// New creates a pipeline with default components.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		detector: detector.New(),
		handler:  intervene.New(),
		boundary: session.NewDetector(),
		tagger:   memory.KeywordTagger{},
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Process vets one turn of sess. The returned error is non-nil only when ctx
// ends before the final response is produced; memory is then left as it
// was. Internal failures yield the fallback response, never an error.
func (p *Pipeline) Process(ctx context.Context, sess *Session, t Turn) (Result, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	start := p.now()
	res, err := p.vet(ctx, sess.mem, t)
	if err != nil {
		p.metrics.abandoned()
		p.log.Info("turn abandoned", zap.String("session", sess.ID), zap.Error(err))
		return Result{}, err
	}
	if res.Fallback {
		p.metrics.turn(actionFallback, nil, p.now().Sub(start).Seconds())
		return res, nil
	}

	if err := p.commit(sess, t, res); err != nil {
		p.log.Error("commit turn to memory", zap.String("session", sess.ID), zap.Error(err))
	}
	p.persist(ctx, sess)

	if res.NewSession {
		p.metrics.boundary(string(res.BoundaryReason))
	}
	types := make([]string, len(res.Verdict.Flags))
	for i, f := range res.Verdict.Flags {
		types[i] = string(f.Type)
	}
	elapsed := p.now().Sub(start)
	p.metrics.turn(string(res.Verdict.RecommendedAction), types, elapsed.Seconds())
	p.log.Info("turn processed",
		zap.String("session", sess.ID),
		zap.String("action", string(res.Verdict.RecommendedAction)),
		zap.Stringer("severity", res.Verdict.Severity),
		zap.Int("flags", len(res.Verdict.Flags)),
		zap.Bool("new_session", res.NewSession),
		zap.Duration("duration", elapsed),
	)
	return res, nil
}

// vet runs boundary detection, detection and intervention without touching
// memory. A panic anywhere yields the fallback result.
func (p *Pipeline) vet(ctx context.Context, mem *memory.Store, t Turn) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("turn failed, returning fallback", zap.Any("panic", r), zap.Stack("stack"))
			res, err = fallbackResult(), nil
		}
	}()
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	isNew, reason := p.boundary.IsNewSession(mem, t.UserInput)
	view := mem
	history, prior := t.History, t.PriorResponses
	if isNew {
		view = nil
		if reason != session.ReasonEmpty {
			// The earlier conversation is being discarded along with memory.
			history, prior = nil, nil
		}
	} else {
		if history == nil {
			history = mem.Contents(model.SpeakerUser)
		}
		if prior == nil {
			prior = mem.Contents(model.SpeakerSystem)
		}
	}

	verdict, err := p.detector.Detect(ctx, detector.Turn{
		Response:       t.Candidate,
		UserInput:      t.UserInput,
		History:        history,
		PriorResponses: prior,
		Memory:         view,
	})
	if err != nil {
		return Result{}, err
	}

	final := p.handler.Apply(t.Candidate, verdict, t.UserInput)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return Result{
		FinalResponse:  final,
		Verdict:        verdict,
		NewSession:     isNew,
		BoundaryReason: reason,
	}, nil
}

// commit appends the user input and the vetted response, resetting memory
// first when the turn opened a new session.
func (p *Pipeline) commit(sess *Session, t Turn, res Result) error {
	user := memory.NewRecord(p.tagger, model.SpeakerUser, t.UserInput)
	system := memory.NewRecord(p.tagger, model.SpeakerSystem, res.FinalResponse)
	_, err := sess.mem.Commit(res.NewSession, user, system)
	return err
}

// persist saves the session snapshot. Failures are logged and counted only;
// the in-memory store stays authoritative.
func (p *Pipeline) persist(ctx context.Context, sess *Session) {
	if p.persister == nil {
		return
	}
	// The turn is already committed, so a late cancellation must not skip
	// the save.
	ctx = context.WithoutCancel(ctx)
	if err := p.persister.Save(ctx, sess.ID, sess.mem.Snapshot()); err != nil {
		p.metrics.persistFailed()
		p.log.Warn("persist session memory", zap.String("session", sess.ID), zap.Error(err))
	}
}

func fallbackResult() Result {
	return Result{
		FinalResponse: FallbackResponse,
		Verdict: model.Verdict{
			Severity:          model.SeverityUnknown,
			Flags:             []model.Flag{},
			RecommendedAction: model.ActionContinue,
		},
		Fallback: true,
	}
}
