// Package lexicon holds the word lists shared by the detectors, the tagger
// and the intervention handler.
package lexicon

import (
	"regexp"
	"sort"
	"strings"
)

// stopWords are dropped before token-overlap matching.
var stopWords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true, "that": true,
	"this": true, "have": true, "has": true, "had": true, "was": true, "were": true,
	"are": true, "you": true, "your": true, "you're": true, "yours": true, "i'm": true,
	"i've": true, "i'd": true, "i'll": true, "me": true, "my": true, "our": true,
	"we": true, "we've": true, "we're": true, "they": true, "them": true, "their": true,
	"its": true, "it's": true, "from": true, "about": true, "into": true, "been": true,
	"being": true, "just": true, "really": true, "very": true, "what": true, "when": true,
	"where": true, "which": true, "who": true, "how": true, "why": true, "not": true,
	"don't": true, "can": true, "can't": true, "could": true, "would": true, "should": true,
	"will": true, "all": true, "any": true, "some": true, "more": true, "much": true,
	"also": true, "than": true, "then": true, "there": true, "here": true, "out": true,
	"off": true, "over": true, "again": true, "earlier": true, "before": true, "last": true,
	"time": true, "said": true, "mentioned": true, "told": true, "shared": true,
	"discussed": true, "talked": true, "remember": true, "recall": true, "like": true,
	"feel": true, "feeling": true, "lot": true, "things": true, "thing": true, "get": true,
	"got": true, "did": true, "does": true, "doing": true, "one": true, "still": true,
	"even": true, "well": true, "because": true, "since": true, "lately": true,
}

var tokenRe = regexp.MustCompile(`[a-z0-9]+(?:'[a-z]+)?`)

// Tokens lowercases text and splits it into word tokens.
func Tokens(text string) []string {
	text = strings.ReplaceAll(strings.ToLower(text), "’", "'")
	return tokenRe.FindAllString(text, -1)
}

// ContentTokens returns tokens longer than two characters that are not
// stop words, in order of first appearance and without duplicates.
func ContentTokens(text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range Tokens(text) {
		if len(t) <= 2 || stopWords[t] || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Stem strips a few common English suffixes so "stressed" and "stressful"
// meet at "stress". It is deliberately crude.
func Stem(tok string) string {
	if len(tok) > 4 && strings.HasSuffix(tok, "ied") {
		return tok[:len(tok)-3] + "y"
	}
	for _, suf := range []string{"fulness", "ful", "ness", "ing", "ed", "es", "s"} {
		if len(tok)-len(suf) < 3 || !strings.HasSuffix(tok, suf) {
			continue
		}
		if suf == "s" && strings.HasSuffix(tok, "ss") {
			return tok
		}
		return tok[:len(tok)-len(suf)]
	}
	return tok
}

// emotionLexicon maps an emotion label to indicative word stems.
var emotionLexicon = map[string][]string{
	"sadness":    {"sad", "down", "depressed", "unhappy", "miserable", "hopeless", "empty", "lonely", "grief", "crying", "cry", "heartbroken"},
	"anxiety":    {"anxious", "anxiety", "worried", "worry", "nervous", "panic", "scared", "afraid", "fear", "overwhelmed", "stressed", "stress", "tense"},
	"anger":      {"angry", "mad", "furious", "frustrated", "annoyed", "irritated", "resent", "rage"},
	"shame":      {"ashamed", "shame", "guilty", "guilt", "embarrassed", "worthless", "failure"},
	"joy":        {"happy", "glad", "excited", "relieved", "grateful", "proud", "hopeful", "joy"},
	"confusion":  {"confused", "lost", "unsure", "uncertain", "stuck", "torn"},
	"exhaustion": {"tired", "exhausted", "drained", "burned", "burnout", "fatigued", "sleep"},
}

// topicLexicon maps a topic label to indicative word stems.
var topicLexicon = map[string][]string{
	"work":          {"job", "work", "boss", "career", "office", "coworker", "colleague", "fired", "promotion", "deadline"},
	"relationships": {"partner", "boyfriend", "girlfriend", "husband", "wife", "breakup", "divorce", "dating", "relationship", "marriage"},
	"family":        {"family", "mom", "mother", "dad", "father", "parent", "parents", "sister", "brother", "kids", "children", "son", "daughter"},
	"finances":      {"money", "rent", "debt", "bills", "loan", "salary", "afford", "broke", "mortgage", "financial"},
	"health":        {"health", "sick", "illness", "pain", "doctor", "hospital", "diagnosis", "medication", "body"},
	"school":        {"school", "exam", "exams", "college", "university", "class", "grades", "homework", "teacher", "study"},
	"friendship":    {"friend", "friends", "friendship", "lonely", "social"},
	"loss":          {"died", "death", "loss", "lost", "funeral", "passed", "grieving", "mourning"},
	"self-esteem":   {"worthless", "ugly", "confidence", "myself", "failure", "enough"},
}

func matchLexicon(lex map[string][]string, text string) []string {
	toks := Tokens(text)
	have := make(map[string]bool, len(toks)*2)
	for _, t := range toks {
		have[t] = true
		have[Stem(t)] = true
	}
	var labels []string
	for label, words := range lex {
		for _, w := range words {
			if have[w] || have[Stem(w)] {
				labels = append(labels, label)
				break
			}
		}
	}
	sort.Strings(labels)
	return labels
}

// Emotions returns the sorted emotion labels whose words occur in text.
func Emotions(text string) []string {
	return matchLexicon(emotionLexicon, text)
}

// Topics returns the sorted topic labels whose words occur in text.
func Topics(text string) []string {
	return matchLexicon(topicLexicon, text)
}

// StemSet returns the stems of the content tokens of every text.
func StemSet(texts ...string) map[string]bool {
	set := map[string]bool{}
	for _, t := range texts {
		for _, tok := range ContentTokens(t) {
			set[Stem(tok)] = true
		}
	}
	return set
}

// Coverage returns the fraction of the content stems of clause found in
// sources, and the number of content stems the clause has. A clause with no
// content returns (0, 0).
func Coverage(clause string, sources map[string]bool) (float64, int) {
	toks := ContentTokens(clause)
	if len(toks) == 0 {
		return 0, 0
	}
	hit := 0
	for _, tok := range toks {
		if sources[Stem(tok)] {
			hit++
		}
	}
	return float64(hit) / float64(len(toks)), len(toks)
}
