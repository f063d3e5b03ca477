package memory

import (
	"github.com/rcliao/response-guard/internal/lexicon"
	"github.com/rcliao/response-guard/internal/model"
)

// Tags is the output of a Tagger for one utterance.
type Tags struct {
	Emotions   []string
	Topics     []string
	Importance float64
}

// Tagger extracts emotion and topic tags from an utterance. Implementations
// may be keyword matchers or external classifiers; the store treats tags as
// opaque short strings.
type Tagger interface {
	Tag(text string) Tags
}

// KeywordTagger tags text using the built-in lexicons.
type KeywordTagger struct{}

func (KeywordTagger) Tag(text string) Tags {
	t := Tags{
		Emotions: lexicon.Emotions(text),
		Topics:   lexicon.Topics(text),
	}
	imp := 0.3 + 0.15*float64(len(t.Emotions)) + 0.1*float64(len(t.Topics))
	if lexicon.IndicatesSelfHarm(text) {
		imp += 0.3
	}
	t.Importance = model.ClampImportance(imp)
	return t
}

// NewRecord builds a record for speaker with tags from tagger.
func NewRecord(tagger Tagger, speaker model.Speaker, content string) model.MemoryRecord {
	tags := tagger.Tag(content)
	return model.MemoryRecord{
		Speaker:     speaker,
		Content:     content,
		EmotionTags: tags.Emotions,
		TopicTags:   tags.Topics,
		Importance:  tags.Importance,
	}
}
