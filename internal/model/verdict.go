package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Severity is the ordered risk level of a flag or verdict.
type Severity int

const (
	// SeverityUnknown is reported only when the pipeline fell back after an
	// internal failure and no verdict could be computed.
	SeverityUnknown Severity = iota - 1
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeveritySevere
)

var severityNames = map[Severity]string{
	SeverityUnknown: "unknown",
	SeverityLow:     "low",
	SeverityMedium:  "medium",
	SeverityHigh:    "high",
	SeveritySevere:  "severe",
}

func (s Severity) String() string {
	if n, ok := severityNames[s]; ok {
		return n
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity converts a name such as "high" into a Severity.
func ParseSeverity(name string) (Severity, error) {
	for s, n := range severityNames {
		if strings.EqualFold(n, name) {
			return s, nil
		}
	}
	return SeverityUnknown, fmt.Errorf("unknown severity %q", name)
}

func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *Severity) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	v, err := ParseSeverity(name)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

// Category tags the kind of risk a flag describes.
type Category string

const (
	CategoryRepetition          Category = "repetition"
	CategoryDoubleAck           Category = "double_acknowledgment"
	CategoryRepeatedResponse    Category = "repeated_response"
	CategoryFalseAttribution    Category = "false_attribution"
	CategoryFalseContinuity     Category = "false_continuity"
	CategoryFalseSharing        Category = "false_sharing_statement"
	CategoryUnsubstantiated     Category = "unsubstantiated_memory"
	CategoryMalformed           Category = "malformed_phrase"
	CategoryCrisisMissing       Category = "crisis_missing_resources"
	CategoryCrisisMinimizing    Category = "crisis_minimizing"
	CategoryUnverifiedDiagnosis Category = "unverified_diagnosis"
)

// Family groups categories for escalation policy.
type Family string

const (
	FamilyRepetition  Family = "repetition"
	FamilyFabrication Family = "fabrication"
	FamilyCrisis      Family = "crisis"
	FamilyOther       Family = "other"
)

// Family returns the escalation family a category belongs to.
func (c Category) Family() Family {
	switch c {
	case CategoryRepetition, CategoryDoubleAck, CategoryRepeatedResponse:
		return FamilyRepetition
	case CategoryFalseAttribution, CategoryFalseContinuity, CategoryFalseSharing, CategoryUnsubstantiated:
		return FamilyFabrication
	case CategoryCrisisMissing, CategoryCrisisMinimizing:
		return FamilyCrisis
	default:
		return FamilyOther
	}
}

// Flag is a single detected risk signal. Flags are values and are never
// modified after a detector returns them.
type Flag struct {
	Type          Category `json:"type"`
	Description   string   `json:"description"`
	Severity      Severity `json:"severity"`
	SourcePattern string   `json:"source_pattern,omitempty"`
	// Span is the offending text, when the detector could isolate it.
	Span string `json:"span,omitempty"`
}

// Action is the corrective step recommended for a verdict.
type Action string

const (
	ActionContinue Action = "continue"
	ActionMinor    Action = "minor_intervention"
	ActionMajor    Action = "major_intervention"
	ActionReset    Action = "reset"
)

// ActionFor maps a severity onto its intervention action.
func ActionFor(s Severity) Action {
	switch s {
	case SeveritySevere:
		return ActionReset
	case SeverityHigh:
		return ActionMajor
	case SeverityMedium:
		return ActionMinor
	default:
		return ActionContinue
	}
}

// Verdict is the aggregated outcome of all flags for one turn.
type Verdict struct {
	IsFlagged         bool     `json:"is_flagged"`
	Severity          Severity `json:"severity"`
	Flags             []Flag   `json:"flags"`
	RecommendedAction Action   `json:"recommended_action"`
	RequiresImmediate bool     `json:"requires_immediate_intervention"`
}

// HasCategory reports whether any flag in the verdict has the category.
func (v Verdict) HasCategory(c Category) bool {
	for _, f := range v.Flags {
		if f.Type == c {
			return true
		}
	}
	return false
}

// HasFamily reports whether any flag belongs to the family.
func (v Verdict) HasFamily(fam Family) bool {
	for _, f := range v.Flags {
		if f.Type.Family() == fam {
			return true
		}
	}
	return false
}
