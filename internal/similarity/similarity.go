// Package similarity finds duplicated or near-duplicated content inside a
// single response and removes it.
package similarity

import (
	"sort"
	"strings"

	"github.com/rcliao/response-guard/internal/chunker"
)

const (
	DefaultThreshold     = 0.7
	DefaultMinNGramChars = 10
	// minSentenceTokens is the shortest sentence kept after a repeated
	// phrase is cut out of it.
	minSentenceTokens = 3
)

// Options configures the analyzer.
type Options struct {
	// Threshold is the Jaccard similarity above which two sentences count
	// as duplicates.
	Threshold float64
	// MinNGramChars is the minimum rendered length of a repeated n-gram.
	MinNGramChars int
	WindowSizes   []int
}

// DefaultOptions returns the default analyzer options.
func DefaultOptions() Options {
	return Options{
		Threshold:     DefaultThreshold,
		MinNGramChars: DefaultMinNGramChars,
		WindowSizes:   chunker.DefaultWindowSizes,
	}
}

// SentencePair is two sentences whose token sets overlap past the threshold.
type SentencePair struct {
	First      int     `json:"first"`
	Second     int     `json:"second"`
	FirstText  string  `json:"first_text"`
	SecondText string  `json:"second_text"`
	Similarity float64 `json:"similarity"`
}

// RepeatedPhrase is an n-gram that occurs more than once.
type RepeatedPhrase struct {
	Phrase string `json:"phrase"`
	Size   int    `json:"size"`
	Count  int    `json:"count"`
}

// Report explains what repetition was found.
type Report struct {
	HasRepetition    bool             `json:"has_repetition"`
	SimilarSentences []SentencePair   `json:"similar_sentences,omitempty"`
	RepeatedPhrases  []RepeatedPhrase `json:"repeated_phrases,omitempty"`
}

// Material returns the repeated text: the later sentence of each similar
// pair and every repeated phrase.
func (r Report) Material() []string {
	var out []string
	for _, p := range r.SimilarSentences {
		out = append(out, p.SecondText)
	}
	for _, p := range r.RepeatedPhrases {
		out = append(out, p.Phrase)
	}
	return out
}

// Analyzer detects and removes repetition.
type Analyzer struct {
	opts Options
}

// New creates an analyzer. Zero-valued options fall back to defaults.
func New(opts Options) *Analyzer {
	def := DefaultOptions()
	if opts.Threshold <= 0 {
		opts.Threshold = def.Threshold
	}
	if opts.MinNGramChars <= 0 {
		opts.MinNGramChars = def.MinNGramChars
	}
	if len(opts.WindowSizes) == 0 {
		opts.WindowSizes = def.WindowSizes
	}
	// Longest windows first so the widest repeated span wins.
	sizes := append([]int(nil), opts.WindowSizes...)
	sort.Sort(sort.Reverse(sort.IntSlice(sizes)))
	opts.WindowSizes = sizes
	return &Analyzer{opts: opts}
}

// Jaccard returns |A∩B| / |A∪B| over the token sets of a and b.
func Jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 0
	}
	inter := 0
	for t := range setA {
		if setB[t] {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func toSet(toks []string) map[string]bool {
	set := make(map[string]bool, len(toks))
	for _, t := range toks {
		if t != "" {
			set[t] = true
		}
	}
	return set
}

// occurrence is a pair of non-overlapping windows carrying the same phrase.
type occurrence struct {
	first, second chunker.Window
}

type findings struct {
	pairs   []SentencePair
	repeats []occurrence
	counts  map[string]int
}

func (f findings) empty() bool {
	return len(f.pairs) == 0 && len(f.repeats) == 0
}

func (a *Analyzer) scan(sentences []chunker.Sentence) findings {
	f := findings{counts: map[string]int{}}

	for i := 0; i < len(sentences); i++ {
		ni := sentences[i].Norms()
		for j := i + 1; j < len(sentences); j++ {
			sim := Jaccard(ni, sentences[j].Norms())
			if sim > a.opts.Threshold {
				f.pairs = append(f.pairs, SentencePair{
					First:      i,
					Second:     j,
					FirstText:  sentences[i].Text(),
					SecondText: sentences[j].Text(),
					Similarity: sim,
				})
			}
		}
	}

	for _, size := range a.opts.WindowSizes {
		byPhrase := map[string][]chunker.Window{}
		var order []string
		for si, s := range sentences {
			for _, w := range chunker.Windows(s, si, size) {
				if len(w.Phrase) < a.opts.MinNGramChars {
					continue
				}
				if _, ok := byPhrase[w.Phrase]; !ok {
					order = append(order, w.Phrase)
				}
				byPhrase[w.Phrase] = append(byPhrase[w.Phrase], w)
			}
		}
		for _, phrase := range order {
			wins := byPhrase[phrase]
			kept := []chunker.Window{wins[0]}
			for _, w := range wins[1:] {
				if !overlaps(kept[len(kept)-1], w) {
					kept = append(kept, w)
				}
			}
			if len(kept) < 2 {
				continue
			}
			f.counts[phrase] = len(kept)
			f.repeats = append(f.repeats, occurrence{first: kept[0], second: kept[1]})
		}
	}
	return f
}

func overlaps(a, b chunker.Window) bool {
	return a.Sentence == b.Sentence && b.Start < a.Start+a.Size
}

// Analyze reports repetition in text. It never modifies the input.
func (a *Analyzer) Analyze(text string) Report {
	f := a.scan(chunker.Split(text))
	r := Report{HasRepetition: !f.empty(), SimilarSentences: f.pairs}

	var reported []string
	for _, o := range f.repeats {
		phrase := o.first.Phrase
		covered := false
		for _, longer := range reported {
			if strings.Contains(longer, phrase) {
				covered = true
				break
			}
		}
		if covered {
			continue
		}
		reported = append(reported, phrase)
		r.RepeatedPhrases = append(r.RepeatedPhrases, RepeatedPhrase{
			Phrase: phrase,
			Size:   o.first.Size,
			Count:  f.counts[phrase],
		})
	}
	return r
}

// Fix removes repetition until Analyze finds none: later near-duplicate
// sentences are dropped and the second occurrence of a repeated phrase is
// cut out. Text without repetition is returned unchanged, so
// Fix(Fix(t)) == Fix(t).
func (a *Analyzer) Fix(text string) string {
	sentences := chunker.Split(text)
	changed := false
	for {
		f := a.scan(sentences)
		if f.empty() {
			break
		}
		changed = true
		if len(f.pairs) > 0 {
			drop := f.pairs[0].Second
			sentences = append(sentences[:drop:drop], sentences[drop+1:]...)
			continue
		}
		sentences = a.cut(sentences, f.repeats[0])
	}
	if !changed {
		return text
	}
	return chunker.Join(sentences)
}

// cut removes the second occurrence of a repeated phrase, widened to the
// longest span both occurrences share.
func (a *Analyzer) cut(sentences []chunker.Sentence, o occurrence) []chunker.Sentence {
	firstNorms := sentences[o.first.Sentence].Norms()
	target := sentences[o.second.Sentence]
	secondNorms := target.Norms()

	size := o.second.Size
	for {
		fi := o.first.Start + size
		si := o.second.Start + size
		if fi >= len(firstNorms) || si >= len(secondNorms) {
			break
		}
		if o.first.Sentence == o.second.Sentence && fi >= o.second.Start {
			break
		}
		if firstNorms[fi] == "" || firstNorms[fi] != secondNorms[si] {
			break
		}
		size++
	}

	start, end := o.second.Start, o.second.Start+size
	removedLast := target.Words[end-1].Text

	words := make([]chunker.Word, 0, len(target.Words)-size)
	words = append(words, target.Words[:start]...)
	words = append(words, target.Words[end:]...)

	if end == len(target.Words) && len(words) > 0 {
		last := &words[len(words)-1]
		last.Text = strings.TrimRight(last.Text, ",;:-—") + terminal(removedLast)
	}

	out := append([]chunker.Sentence(nil), sentences...)
	rest := chunker.Sentence{Words: words}
	if rest.TokenCount() < minSentenceTokens && o.first.Sentence != o.second.Sentence {
		return append(out[:o.second.Sentence], out[o.second.Sentence+1:]...)
	}
	out[o.second.Sentence] = rest
	return out
}

// terminal returns the trailing sentence punctuation of a word.
func terminal(word string) string {
	i := len(word)
	for i > 0 && strings.IndexByte(`.!?"')`, word[i-1]) >= 0 {
		i--
	}
	return word[i:]
}
