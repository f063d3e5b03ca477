// Package chunker splits response text into sentences, words and n-gram
// windows for repetition analysis.
package chunker

import (
	"strings"
	"unicode"
)

// DefaultWindowSizes are the n-gram lengths scanned for repeated phrasing.
var DefaultWindowSizes = []int{3, 4, 5}

// Word is a whitespace-delimited word together with its normalized form.
// Norm is lowercased with surrounding punctuation removed; it is empty for
// words made only of punctuation.
type Word struct {
	Text string
	Norm string
}

// Sentence is an ordered run of words ending at sentence-final punctuation
// or at the end of the text.
type Sentence struct {
	Words []Word
}

// Text renders the sentence with single spaces between words.
func (s Sentence) Text() string {
	parts := make([]string, len(s.Words))
	for i, w := range s.Words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

// Norms returns the normalized form of every word, empty ones included, so
// indexes line up with Words.
func (s Sentence) Norms() []string {
	out := make([]string, len(s.Words))
	for i, w := range s.Words {
		out[i] = w.Norm
	}
	return out
}

// TokenCount is the number of words with a non-empty normalized form.
func (s Sentence) TokenCount() int {
	n := 0
	for _, w := range s.Words {
		if w.Norm != "" {
			n++
		}
	}
	return n
}

// Normalize lowercases a word and strips surrounding punctuation, keeping
// inner apostrophes ("you're").
func Normalize(word string) string {
	word = strings.ReplaceAll(strings.ToLower(word), "’", "'")
	return strings.TrimFunc(word, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Split breaks text into sentences. Empty text returns nil.
func Split(text string) []Sentence {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	var sentences []Sentence
	var current []Word
	for _, f := range fields {
		current = append(current, Word{Text: f, Norm: Normalize(f)})
		if endsSentence(f) {
			sentences = append(sentences, Sentence{Words: current})
			current = nil
		}
	}
	if len(current) > 0 {
		sentences = append(sentences, Sentence{Words: current})
	}
	return sentences
}

// endsSentence reports whether a word closes a sentence, looking past
// trailing quotes and brackets.
func endsSentence(word string) bool {
	trimmed := strings.TrimRight(word, `"')]}”’`)
	if trimmed == "" {
		return false
	}
	switch trimmed[len(trimmed)-1] {
	case '.', '!', '?':
		return true
	}
	return false
}

// Join renders sentences back into text separated by single spaces. The
// first word of every sentence is capitalized.
func Join(sentences []Sentence) string {
	parts := make([]string, 0, len(sentences))
	for _, s := range sentences {
		if len(s.Words) == 0 {
			continue
		}
		words := append([]Word(nil), s.Words...)
		words[0].Text = capitalize(words[0].Text)
		parts = append(parts, Sentence{Words: words}.Text())
	}
	return strings.Join(parts, " ")
}

// Sentences returns the text of each sentence.
func Sentences(text string) []string {
	split := Split(text)
	out := make([]string, len(split))
	for i, s := range split {
		out[i] = s.Text()
	}
	return out
}

// Window is an n-gram occurrence inside a sentence.
type Window struct {
	Sentence int
	Start    int
	Size     int
	Phrase   string
}

// Windows returns every n-gram of the given size in the sentence. Windows
// spanning a punctuation-only word are skipped.
func Windows(s Sentence, sentenceIdx, size int) []Window {
	norms := s.Norms()
	var out []Window
	for i := 0; i+size <= len(norms); i++ {
		span := norms[i : i+size]
		ok := true
		for _, n := range span {
			if n == "" {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		out = append(out, Window{
			Sentence: sentenceIdx,
			Start:    i,
			Size:     size,
			Phrase:   strings.Join(span, " "),
		})
	}
	return out
}

func capitalize(word string) string {
	for i, r := range word {
		if unicode.IsLetter(r) {
			return word[:i] + string(unicode.ToUpper(r)) + word[i+len(string(r)):]
		}
	}
	return word
}
