package detector

import "github.com/rcliao/response-guard/internal/model"

// Policy holds the tunable escalation thresholds used by Aggregate.
type Policy struct {
	// EscalateFlagCount raises the verdict to HIGH once this many flags are
	// present. Zero disables the rule.
	EscalateFlagCount int
	// CoOccurrenceSevere forces SEVERE when fabrication and repetition flags
	// appear together.
	CoOccurrenceSevere bool
	// ImmediateHighFlagCount is the flag count at which a HIGH verdict
	// requires immediate intervention. Zero disables the rule.
	ImmediateHighFlagCount int
}

// DefaultPolicy returns the stock escalation policy.
func DefaultPolicy() Policy {
	return Policy{
		EscalateFlagCount:      3,
		CoOccurrenceSevere:     true,
		ImmediateHighFlagCount: 2,
	}
}

// Aggregate folds flags into a verdict. The result is never below the
// highest flag severity, and adding a flag never lowers it.
func Aggregate(flags []model.Flag, forceImmediate bool, p Policy) model.Verdict {
	sev := model.SeverityLow
	for _, f := range flags {
		sev = model.MaxSeverity(sev, f.Severity)
	}

	v := model.Verdict{
		IsFlagged: len(flags) > 0,
		Flags:     append([]model.Flag{}, flags...),
	}
	if p.EscalateFlagCount > 0 && len(flags) >= p.EscalateFlagCount {
		sev = model.MaxSeverity(sev, model.SeverityHigh)
	}
	if p.CoOccurrenceSevere && v.HasFamily(model.FamilyFabrication) && v.HasFamily(model.FamilyRepetition) {
		sev = model.SeveritySevere
	}

	v.Severity = sev
	v.RecommendedAction = model.ActionFor(sev)
	v.RequiresImmediate = forceImmediate ||
		sev == model.SeveritySevere ||
		(sev == model.SeverityHigh && p.ImmediateHighFlagCount > 0 && len(flags) >= p.ImmediateHighFlagCount)
	return v
}
