package patterns

import (
	"regexp"
	"strings"

	"github.com/rcliao/response-guard/internal/chunker"
	"github.com/rcliao/response-guard/internal/lexicon"
	"github.com/rcliao/response-guard/internal/model"
	"github.com/rcliao/response-guard/internal/similarity"
)

const (
	// recentInputs is how many earlier user inputs count as "recent" for
	// attribution checks, in addition to the current one.
	recentInputs = 3
	// supportedCoverage is the share of a claimed clause's content words
	// that must appear in the source text for the claim to stand.
	supportedCoverage = 0.5
	// priorResponseWindow bounds how far back repeated responses are checked.
	priorResponseWindow = 5
	repeatedResponseSim = 0.9
)

func defaultRules() []Rule {
	return []Rule{
		{
			ID:          "empty_response",
			Category:    model.CategoryMalformed,
			Tier:        TierCritical,
			Severity:    model.SeveritySevere,
			Description: "response is empty",
			Match:       matchEmpty,
		},
		{
			ID:          "double_acknowledgment",
			Category:    model.CategoryDoubleAck,
			Tier:        TierCritical,
			Severity:    model.SeverityHigh,
			Description: "the same acknowledgment phrase is used more than once",
			Match:       matchDoubleAck,
		},
		{
			ID:          "repeated_prior_response",
			Category:    model.CategoryRepeatedResponse,
			Tier:        TierHigh,
			Severity:    model.SeverityHigh,
			Description: "response repeats an earlier response almost verbatim",
			Match:       matchRepeatedResponse,
		},
		{
			ID:          "fabricated_attribution",
			Category:    model.CategoryFalseAttribution,
			Tier:        TierCritical,
			Severity:    model.SeverityHigh,
			Description: "response attributes a statement the user did not recently make",
			Match:       matchFabricatedAttribution,
		},
		{
			ID:          "false_continuity",
			Category:    model.CategoryFalseContinuity,
			Tier:        TierCritical,
			Severity:    model.SeverityHigh,
			Description: "response claims an ongoing discussion that never happened",
			Match:       matchFalseContinuity,
		},
		{
			ID:          "crisis_minimizing",
			Category:    model.CategoryCrisisMinimizing,
			Tier:        TierCritical,
			Severity:    model.SeveritySevere,
			Description: "response minimizes self-harm language",
			Match:       matchCrisisMinimizing,
		},
		{
			ID:          "unverified_diagnosis",
			Category:    model.CategoryUnverifiedDiagnosis,
			Tier:        TierHigh,
			Severity:    model.SeverityHigh,
			Description: "response asserts a diagnosis the user never disclosed",
			Match:       matchUnverifiedDiagnosis,
		},
		{
			ID:          "malformed_fragment",
			Category:    model.CategoryMalformed,
			Tier:        TierMedium,
			Severity:    model.SeverityMedium,
			Description: "response contains an incoherent or templated fragment",
			Match:       matchMalformed,
		},
	}
}

// CrisisRule fires when the user input carries self-harm language and the
// response gives no crisis-resource guidance. The detector runs it apart
// from the library table because its verdict can never be downgraded.
var CrisisRule = Rule{
	ID:          "crisis_missing_resources",
	Category:    model.CategoryCrisisMissing,
	Tier:        TierCritical,
	Severity:    model.SeveritySevere,
	Description: "self-harm language answered without crisis resources",
	Match: func(in Input) (string, bool) {
		if !lexicon.IndicatesSelfHarm(in.UserInput) || lexicon.HasCrisisResources(in.Response) {
			return "", false
		}
		return in.UserInput, true
	},
}

func matchEmpty(in Input) (string, bool) {
	return "", strings.TrimSpace(in.Response) == ""
}

// AckOpeners are the acknowledgment phrases that should open a response at
// most once.
var AckOpeners = []string{
	"i hear",
	"it sounds like",
	"that sounds",
	"i understand",
	"i can see",
	"thank you for sharing",
	"i'm sorry to hear",
}

func matchDoubleAck(in Input) (string, bool) {
	lower := " " + strings.Join(lexicon.Tokens(in.Response), " ") + " "
	for _, opener := range AckOpeners {
		if strings.Count(lower, " "+opener+" ") >= 2 {
			return opener, true
		}
	}
	return "", false
}

func matchRepeatedResponse(in Input) (string, bool) {
	resp := lexicon.Tokens(in.Response)
	if len(resp) == 0 {
		return "", false
	}
	prior := in.PriorResponses
	if len(prior) > priorResponseWindow {
		prior = prior[len(prior)-priorResponseWindow:]
	}
	for _, p := range prior {
		if similarity.Jaccard(resp, lexicon.Tokens(p)) >= repeatedResponseSim {
			return p, true
		}
	}
	return "", false
}

var attributionRe = regexp.MustCompile(`(?i)\byou(?:['’]ve| have)? (?:just |already )?(?:shared|mentioned|said|told me|brought up|noted|explained)[,:]?(?: that| how)?\s+([^.!?;]+)`)

func matchFabricatedAttribution(in Input) (string, bool) {
	sources := lexicon.StemSet(append(recent(in.History), in.UserInput)...)
	for _, m := range attributionRe.FindAllStringSubmatch(in.Response, -1) {
		cov, n := lexicon.Coverage(m[1], sources)
		if n > 0 && cov < supportedCoverage {
			return m[0], true
		}
	}
	return "", false
}

var continuityRe = regexp.MustCompile(`(?i)\b(?:we(?:['’]ve| have)? been|we were|we(?:['’]ve| have)?|let's keep|let's continue|continuing|picking up)\s+(?:discussing|discussed|talking about|talked about|spoke about|spoken about|focusing on|exploring|working on|going over|where we left off(?: with)?)\s*([^.!?;]*)`)

func matchFalseContinuity(in Input) (string, bool) {
	sources := lexicon.StemSet(in.History...)
	for _, m := range continuityRe.FindAllStringSubmatch(in.Response, -1) {
		if len(in.History) == 0 {
			return m[0], true
		}
		cov, n := lexicon.Coverage(m[1], sources)
		if n > 0 && cov < supportedCoverage {
			return m[0], true
		}
	}
	return "", false
}

var minimizingRe = regexp.MustCompile(`(?i)\b(everyone feels (that|this) way|(just )?cheer up|it'?s not (that|so) bad|look on the bright side|you'?ll get over it|snap out of it|others have it worse|don'?t be (so )?dramatic|you don'?t (really )?mean (that|it))\b`)

func matchCrisisMinimizing(in Input) (string, bool) {
	if !lexicon.IndicatesSelfHarm(in.UserInput) {
		return "", false
	}
	if m := minimizingRe.FindString(in.Response); m != "" {
		return m, true
	}
	return "", false
}

var diagnosisRe = regexp.MustCompile(`(?i)\byou(?:'ve got| (?:clearly |probably |definitely |obviously )?(?:have|are suffering from|suffer from|are showing signs of|are dealing with clinical))\s+(?:an? )?(clinical depression|depression|bipolar(?: disorder)?|ptsd|ocd|adhd|(?:anxiety|personality|eating|panic) disorder|borderline|schizophrenia|narcissis\w*)`)

func matchUnverifiedDiagnosis(in Input) (string, bool) {
	m := diagnosisRe.FindStringSubmatch(in.Response)
	if m == nil {
		return "", false
	}
	disclosed := strings.ToLower(strings.Join(append(append([]string(nil), in.History...), in.UserInput), " "))
	if strings.Contains(disclosed, strings.ToLower(m[1])) {
		return "", false
	}
	return m[0], true
}

var placeholderRe = regexp.MustCompile(`\{\{?\s*\w+\s*\}?\}|\$\{\w+\}|\[[A-Z_]{3,}\]|\b(?:undefined|null|NaN)\b`)

// allowedDoubles are words that legitimately appear twice in a row.
var allowedDoubles = map[string]bool{"had": true, "that": true, "is": true, "very": true, "really": true}

// danglingEnds are words a sentence cannot sensibly end on.
var danglingEnds = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"of": true, "your": true, "my": true,
}

// MalformedSpans returns the incoherent fragments found in text.
func MalformedSpans(text string) []string {
	var spans []string
	spans = append(spans, placeholderRe.FindAllString(text, -1)...)
	for _, s := range chunker.Split(text) {
		words := s.Words
		for i := 1; i < len(words); i++ {
			n := words[i].Norm
			if n != "" && n == words[i-1].Norm && !allowedDoubles[n] {
				spans = append(spans, words[i-1].Text+" "+words[i].Text)
			}
		}
		last := words[len(words)-1]
		if danglingEnds[last.Norm] && len(words) > 1 && strings.ContainsAny(last.Text, ".!?") {
			spans = append(spans, last.Text)
		}
	}
	return spans
}

func matchMalformed(in Input) (string, bool) {
	spans := MalformedSpans(in.Response)
	if len(spans) == 0 {
		return "", false
	}
	return spans[0], true
}

func recent(history []string) []string {
	if len(history) > recentInputs {
		return history[len(history)-recentInputs:]
	}
	return history
}
