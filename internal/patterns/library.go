// Package patterns is the versioned catalog of response detection rules.
//
// Each rule is a pure predicate over the candidate response and the turn
// context, tagged with a category, tier and base severity. The library runs
// every rule on every turn so the resulting flags never depend on rule order.
package patterns

import (
	"fmt"

	"github.com/rcliao/response-guard/internal/model"
)

// Version identifies the rule set shipped by Default.
const Version = "2026.10"

// Tier is the coarse rule priority used in catalogs and audit output.
type Tier string

const (
	TierCritical Tier = "critical"
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
)

// Input is the turn context every rule sees.
type Input struct {
	Response  string
	UserInput string
	// History holds earlier user inputs of the session, oldest first.
	History []string
	// PriorResponses holds earlier system responses, oldest first.
	PriorResponses []string
}

// MatchFunc inspects a turn and returns the offending span when it fires.
type MatchFunc func(in Input) (span string, ok bool)

// Rule is one declarative detection rule.
type Rule struct {
	ID          string         `json:"id"`
	Category    model.Category `json:"category"`
	Tier        Tier           `json:"tier"`
	Severity    model.Severity `json:"severity"`
	Description string         `json:"description"`
	Match       MatchFunc      `json:"-"`
}

// Flag builds the flag this rule emits for span.
func (r Rule) Flag(span string) model.Flag {
	return model.Flag{
		Type:          r.Category,
		Description:   r.Description,
		Severity:      r.Severity,
		SourcePattern: r.ID,
		Span:          span,
	}
}

// RuleError reports a rule that failed while matching.
type RuleError struct {
	RuleID string
	Err    error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Err)
}

func (e *RuleError) Unwrap() error { return e.Err }

// Library is an immutable, versioned rule table.
type Library struct {
	version string
	rules   []Rule
}

// New creates a library from rules.
func New(version string, rules ...Rule) *Library {
	return &Library{version: version, rules: append([]Rule(nil), rules...)}
}

// Default returns the built-in rule set.
func Default() *Library {
	return New(Version, defaultRules()...)
}

// Version returns the rule set version.
func (l *Library) Version() string { return l.version }

// Rules returns a copy of the rule table.
func (l *Library) Rules() []Rule {
	return append([]Rule(nil), l.rules...)
}

// With returns a new library with rules appended.
func (l *Library) With(version string, rules ...Rule) *Library {
	return New(version, append(l.Rules(), rules...)...)
}

// Without returns a new library minus the rules with the given IDs.
func (l *Library) Without(version string, ids ...string) *Library {
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	var kept []Rule
	for _, r := range l.rules {
		if !drop[r.ID] {
			kept = append(kept, r)
		}
	}
	return New(version, kept...)
}

// Run evaluates every rule. A rule that panics contributes no flag and is
// reported in the returned errors; the remaining rules still run.
func (l *Library) Run(in Input) ([]model.Flag, []error) {
	var flags []model.Flag
	var errs []error
	for _, r := range l.rules {
		span, ok, err := runRule(r, in)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			flags = append(flags, r.Flag(span))
		}
	}
	return flags, errs
}

func runRule(r Rule, in Input) (span string, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			span, ok = "", false
			err = &RuleError{RuleID: r.ID, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	if r.Match == nil {
		return "", false, &RuleError{RuleID: r.ID, Err: fmt.Errorf("rule has no matcher")}
	}
	span, ok = r.Match(in)
	return span, ok, nil
}
