// Package detector runs every risk check over a candidate response and
// aggregates the flags into a single verdict. Detection never mutates the
// memory store.
package detector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rcliao/response-guard/internal/memory"
	"github.com/rcliao/response-guard/internal/model"
	"github.com/rcliao/response-guard/internal/patterns"
	"github.com/rcliao/response-guard/internal/similarity"
	"github.com/rcliao/response-guard/internal/verify"
)

// Turn is the input to one detection pass.
type Turn struct {
	Response  string
	UserInput string
	// History holds earlier user inputs of the session, oldest first.
	History        []string
	PriorResponses []string
	// Memory is read by the verifier; nil means no stored history.
	Memory *memory.Store
}

// CrisisCheck reports whether the turn needs the crisis path.
type CrisisCheck func(patterns.Input) (span string, ok bool)

// Detector is the emergency path detector.
type Detector struct {
	library  *patterns.Library
	analyzer *similarity.Analyzer
	verifier *verify.Verifier
	policy   Policy
	crisis   CrisisCheck
	log      *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector)

func WithLibrary(l *patterns.Library) Option { return func(d *Detector) { d.library = l } }
func WithAnalyzer(a *similarity.Analyzer) Option { return func(d *Detector) { d.analyzer = a } }
func WithVerifier(v *verify.Verifier) Option { return func(d *Detector) { d.verifier = v } }
func WithPolicy(p Policy) Option { return func(d *Detector) { d.policy = p } }
func WithCrisisCheck(c CrisisCheck) Option { return func(d *Detector) { d.crisis = c } }
func WithLogger(l *zap.Logger) Option { return func(d *Detector) { d.log = l } }

// New creates a detector with the default library, analyzer, verifier and
// policy unless overridden.
func New(opts ...Option) *Detector {
	d := &Detector{
		library:  patterns.Default(),
		analyzer: similarity.New(similarity.DefaultOptions()),
		verifier: verify.New(verify.Options{}),
		policy:   DefaultPolicy(),
		crisis:   CrisisCheck(patterns.CrisisRule.Match),
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Library returns the rule library in use.
func (d *Detector) Library() *patterns.Library { return d.library }

// Detect evaluates the turn and returns its verdict. The only error is the
// context's, when the turn is abandoned between stages.
func (d *Detector) Detect(ctx context.Context, t Turn) (model.Verdict, error) {
	in := patterns.Input{
		Response:       t.Response,
		UserInput:      t.UserInput,
		History:        t.History,
		PriorResponses: t.PriorResponses,
	}

	flags, errs := d.library.Run(in)
	for _, err := range errs {
		d.log.Warn("detection rule failed", zap.Error(err))
	}
	if err := ctx.Err(); err != nil {
		return model.Verdict{}, err
	}

	if f, ok := d.repetition(t.Response); ok {
		flags = append(flags, f)
	}
	if err := ctx.Err(); err != nil {
		return model.Verdict{}, err
	}

	flags = append(flags, d.verifyMemory(t)...)

	crisis, force := d.checkCrisis(in)
	if force {
		flags = append(flags, crisis)
	}
	if err := ctx.Err(); err != nil {
		return model.Verdict{}, err
	}
	return Aggregate(flags, force, d.policy), nil
}

func (d *Detector) repetition(text string) (f model.Flag, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Warn("repetition analyzer failed", zap.Any("panic", p))
			f, ok = model.Flag{}, false
		}
	}()
	rep := d.analyzer.Analyze(text)
	if !rep.HasRepetition {
		return model.Flag{}, false
	}
	material := rep.Material()
	f = model.Flag{
		Type:          model.CategoryRepetition,
		Description:   "response repeats itself",
		Severity:      model.SeverityHigh,
		SourcePattern: "similarity_analyzer",
	}
	if len(material) > 0 {
		f.Span = material[0]
	}
	for _, m := range material {
		if verify.HasMemoryReference(m) {
			f.Severity = model.SeveritySevere
			f.Description = "response repeats a memory claim"
			f.Span = m
			break
		}
	}
	return f, true
}

func (d *Detector) verifyMemory(t Turn) (flags []model.Flag) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Warn("memory verifier failed", zap.Any("panic", p))
			flags = nil
		}
	}()
	return d.verifier.Verify(verify.Input{
		Response:  t.Response,
		UserInput: t.UserInput,
		History:   t.History,
		Memory:    t.Memory,
	})
}

// checkCrisis runs the crisis rule. A failing check is treated as a crisis.
func (d *Detector) checkCrisis(in patterns.Input) (f model.Flag, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			d.log.Error("crisis check failed, assuming crisis", zap.Any("panic", p))
			f = patterns.CrisisRule.Flag(in.UserInput)
			f.Description = fmt.Sprintf("crisis check failed: %v", p)
			ok = true
		}
	}()
	span, hit := d.crisis(in)
	if !hit {
		return model.Flag{}, false
	}
	return patterns.CrisisRule.Flag(span), true
}
