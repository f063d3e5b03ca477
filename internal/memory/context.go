package memory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rcliao/response-guard/internal/lexicon"
	"github.com/rcliao/response-guard/internal/model"
)

// NoSummary is returned in place of a digest before one exists.
const NoSummary = "No conversation summary yet."

const topicLimit = 3

// Context is the memory assembled for the current input.
type Context struct {
	RelevantStatements []model.MemoryRecord `json:"relevant_statements"`
	DominantEmotion    string               `json:"dominant_emotion"`
	Topics             []string             `json:"topics"`
	Summary            string               `json:"summary"`
}

// ContextFor gathers prior user statements related to input together with
// the session's dominant emotion, top topics and latest digest. Statements
// are ranked by shared content words, newest first on ties; when nothing
// overlaps the most recent statements are returned instead. An empty store
// yields empty collections and the NoSummary placeholder.
func (s *Store) ContextFor(input string) Context {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.recordsLocked("")
	out := Context{
		RelevantStatements: []model.MemoryRecord{},
		Topics:             []string{},
		Summary:            NoSummary,
	}
	if n := len(s.summary); n > 0 {
		out.Summary = s.summary[n-1]
	}
	out.DominantEmotion = dominant(all, func(r model.MemoryRecord) []string { return r.EmotionTags }, 1).first()
	out.Topics = append(out.Topics, dominant(all, func(r model.MemoryRecord) []string { return r.TopicTags }, topicLimit)...)

	var user []model.MemoryRecord
	for _, r := range all {
		if r.Speaker == model.SpeakerUser {
			user = append(user, r)
		}
	}
	if len(user) == 0 {
		return out
	}

	query := lexicon.StemSet(input)
	type scored struct {
		rec   model.MemoryRecord
		score int
		order int
	}
	var hits []scored
	for i, r := range user {
		n := 0
		for stem := range lexicon.StemSet(r.Content) {
			if query[stem] {
				n++
			}
		}
		if n > 0 {
			hits = append(hits, scored{rec: r, score: n, order: i})
		}
	}

	limit := s.opts.RelevantLimit
	if len(hits) == 0 {
		// Most recent statements, newest first.
		for i := len(user) - 1; i >= 0 && len(out.RelevantStatements) < limit; i-- {
			out.RelevantStatements = append(out.RelevantStatements, user[i])
		}
		return out
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].order > hits[j].order
	})
	for i := 0; i < len(hits) && i < limit; i++ {
		out.RelevantStatements = append(out.RelevantStatements, hits[i].rec)
	}
	return out
}

type ranked []string

func (r ranked) first() string {
	if len(r) == 0 {
		return ""
	}
	return r[0]
}

// dominant returns the n most frequent tags, alphabetical on ties.
func dominant(recs []model.MemoryRecord, tags func(model.MemoryRecord) []string, n int) ranked {
	counts := map[string]int{}
	for _, r := range recs {
		for _, t := range tags(r) {
			counts[t]++
		}
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

const digestQuoteLen = 120

// digestLocked renders a short natural-language digest of the session.
func (s *Store) digestLocked() string {
	all := s.recordsLocked("")
	topics := dominant(all, func(r model.MemoryRecord) []string { return r.TopicTags }, topicLimit)
	emotion := dominant(all, func(r model.MemoryRecord) []string { return r.EmotionTags }, 1).first()

	var b strings.Builder
	if len(topics) > 0 {
		fmt.Fprintf(&b, "The conversation has centered on %s.", joinList(topics))
	} else {
		b.WriteString("The conversation has not settled on a topic.")
	}
	if emotion != "" {
		fmt.Fprintf(&b, " The prevailing emotion is %s.", emotion)
	}
	user := s.shortTerm[model.SpeakerUser]
	if n := len(user); n > 0 {
		quote := user[n-1].Content
		if r := []rune(quote); len(r) > digestQuoteLen {
			quote = string(r[:digestQuoteLen]) + "..."
		}
		fmt.Fprintf(&b, " Most recently the user said: %q.", quote)
	}
	return b.String()
}

func joinList(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
