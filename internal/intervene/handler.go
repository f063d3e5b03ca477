// Package intervene turns a verdict into the final response text. Every
// branch is a function of the response, the verdict and the user input; the
// only other input is the injected Picker.
package intervene

import (
	"fmt"
	"strings"

	"github.com/rcliao/response-guard/internal/chunker"
	"github.com/rcliao/response-guard/internal/lexicon"
	"github.com/rcliao/response-guard/internal/model"
	"github.com/rcliao/response-guard/internal/patterns"
	"github.com/rcliao/response-guard/internal/similarity"
)

// shortResponseSentences is the longest response, in sentences, that gets
// a supportive clause prepended rather than inserted mid-way.
const shortResponseSentences = 2

// Handler is the intervention handler.
type Handler struct {
	catalog        Catalog
	picker         Picker
	analyzer       *similarity.Analyzer
	appendGuidance bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithCatalog replaces the phrase catalog.
func WithCatalog(c Catalog) Option { return func(h *Handler) { h.catalog = c } }

// WithPicker replaces the phrase picker.
func WithPicker(p Picker) Option { return func(h *Handler) { h.picker = p } }

// WithAnalyzer sets the analyzer used to remove repetition.
func WithAnalyzer(a *similarity.Analyzer) Option { return func(h *Handler) { h.analyzer = a } }

// WithGuidance toggles the closing suggestion on LOW verdicts.
func WithGuidance(on bool) Option { return func(h *Handler) { h.appendGuidance = on } }

// New creates a handler with the default catalog and a HashPicker.
func New(opts ...Option) *Handler {
	h := &Handler{
		catalog:        DefaultCatalog(),
		picker:         HashPicker{},
		analyzer:       similarity.New(similarity.DefaultOptions()),
		appendGuidance: true,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Apply returns the text to show the user for this verdict.
func (h *Handler) Apply(response string, v model.Verdict, userInput string) string {
	switch v.RecommendedAction {
	case model.ActionReset:
		return h.reset(v, userInput)
	case model.ActionMajor:
		return h.major(response, v, userInput)
	case model.ActionMinor:
		return h.minor(response, v, userInput)
	default:
		return h.closing(response, userInput)
	}
}

func (h *Handler) pick(list []string, key string) string {
	if len(list) == 0 {
		return ""
	}
	return list[h.picker.Pick(key, len(list))]
}

// reset discards the response and writes a fresh acknowledgment.
func (h *Handler) reset(v model.Verdict, userInput string) string {
	if v.HasFamily(model.FamilyCrisis) || lexicon.IndicatesSelfHarm(userInput) {
		return CrisisMessage
	}
	return h.acknowledge(userInput) + " " + h.pick(h.catalog.OpenQuestions, "question:"+userInput)
}

// acknowledge builds a topic- and emotion-aware acknowledgment of input.
func (h *Handler) acknowledge(input string) string {
	var parts []string
	for _, label := range lexicon.Topics(input) {
		if phrase, ok := h.catalog.TopicPhrases[label]; ok {
			parts = append(parts, fmt.Sprintf(h.pick(h.catalog.TopicAcks, "topic:"+input), phrase))
			break
		}
	}
	for _, label := range lexicon.Emotions(input) {
		if phrase, ok := h.catalog.EmotionPhrases[label]; ok {
			parts = append(parts, fmt.Sprintf(h.pick(h.catalog.EmotionAcks, "emotion:"+input), phrase))
			break
		}
	}
	if len(parts) == 0 {
		return h.pick(h.catalog.GenericAcks, "ack:"+input)
	}
	return strings.Join(parts, " ")
}

// major applies targeted substitutions for the flagged spans and falls
// back to appending a referral when none applies.
func (h *Handler) major(response string, v model.Verdict, userInput string) string {
	out := response
	if v.HasFamily(model.FamilyRepetition) {
		out = h.analyzer.Fix(out)
	}
	sentences := chunker.Sentences(out)
	if v.HasCategory(model.CategoryDoubleAck) {
		sentences = dropBareAcks(sentences)
	}

	neutral := h.pick(h.catalog.NeutralAcks, "neutral:"+response)
	for _, f := range v.Flags {
		if f.Span == "" {
			continue
		}
		switch {
		case f.Type.Family() == model.FamilyFabrication:
			sentences = replaceContaining(sentences, f.Span, neutral)
		case f.Type == model.CategoryUnverifiedDiagnosis:
			sentences = replaceContaining(sentences, f.Span, h.pick(h.catalog.NoDiagnosis, "diagnosis:"+response))
		}
	}
	if v.HasCategory(model.CategoryMalformed) {
		sentences = stripMalformed(sentences)
	}

	fixed := strings.Join(sentences, " ")
	if fixed == "" || fixed == squash(response) {
		return appendSentence(response, h.pick(h.catalog.Referrals, "referral:"+response))
	}
	return fixed
}

// minor splices a supportive clause into the response without removing
// anything.
func (h *Handler) minor(response string, v model.Verdict, userInput string) string {
	list := h.catalog.Supportive
	if v.HasCategory(model.CategoryUnsubstantiated) {
		list = h.catalog.Hedges
	}
	clause := h.pick(list, "minor:"+response)

	sentences := chunker.Sentences(response)
	if len(sentences) <= shortResponseSentences {
		return strings.TrimSpace(clause + " " + strings.Join(sentences, " "))
	}
	mid := len(sentences) / 2
	out := append([]string(nil), sentences[:mid]...)
	out = append(out, clause)
	out = append(out, sentences[mid:]...)
	return strings.Join(out, " ")
}

// closing appends a gentle suggestion unless the response already ends
// with guidance or hands the turn back with a question.
func (h *Handler) closing(response, userInput string) string {
	if !h.appendGuidance {
		return response
	}
	sentences := chunker.Sentences(response)
	if len(sentences) == 0 {
		return response
	}
	last := sentences[len(sentences)-1]
	if lexicon.HasGuidance(last) || strings.HasSuffix(strings.TrimRight(last, `"')”’`), "?") {
		return response
	}
	return appendSentence(response, h.pick(h.catalog.Guidance, "guidance:"+response))
}

// appendSentence adds s after text, closing text with a period if needed.
func appendSentence(text, s string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return s
	}
	if !strings.ContainsAny(text[len(text)-1:], `.!?"')”’`) {
		text += "."
	}
	return text + " " + s
}

// replaceContaining swaps the first sentence containing span for repl and
// drops later ones, since repl already stands in for the claim.
func replaceContaining(sentences []string, span, repl string) []string {
	needle := strings.ToLower(squash(span))
	out := make([]string, 0, len(sentences))
	replaced := false
	for _, s := range sentences {
		if !strings.Contains(strings.ToLower(s), needle) {
			out = append(out, s)
			continue
		}
		if !replaced {
			out = append(out, repl)
			replaced = true
		}
	}
	return out
}

// dropBareAcks removes a sentence that is nothing but an acknowledgment
// opener when another sentence opens the same way.
func dropBareAcks(sentences []string) []string {
	for _, opener := range patterns.AckOpeners {
		var starts []int
		for i, s := range sentences {
			if strings.HasPrefix(strings.Join(lexicon.Tokens(s), " ")+" ", opener+" ") {
				starts = append(starts, i)
			}
		}
		if len(starts) < 2 {
			continue
		}
		n := len(strings.Fields(opener))
		for j := len(starts) - 1; j >= 0 && len(starts) > 1; j-- {
			i := starts[j]
			if len(lexicon.Tokens(sentences[i])) <= n+1 {
				sentences = append(sentences[:i:i], sentences[i+1:]...)
				starts = append(starts[:j:j], starts[j+1:]...)
			}
		}
	}
	return sentences
}

// stripMalformed removes template placeholders and stuttered words.
func stripMalformed(sentences []string) []string {
	out := make([]string, 0, len(sentences))
	for _, s := range sentences {
		for _, span := range patterns.MalformedSpans(s) {
			fields := strings.Fields(span)
			switch {
			case len(fields) == 2 && chunker.Normalize(fields[0]) == chunker.Normalize(fields[1]):
				s = strings.Replace(s, span, fields[0]+trailingPunct(fields[1]), 1)
			case len(fields) == 1 && strings.ContainsAny(span, ".!?"):
				// dangling ending; nothing sensible to substitute
			default:
				s = strings.Replace(s, span, "", 1)
			}
		}
		if s = squash(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func trailingPunct(word string) string {
	i := len(word)
	for i > 0 && strings.IndexByte(`.,;:!?"')`, word[i-1]) >= 0 {
		i--
	}
	return word[i:]
}

// squash collapses runs of whitespace.
func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
