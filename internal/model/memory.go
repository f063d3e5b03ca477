// Package model defines the core safety and memory data types.
package model

import "time"

// Speaker identifies who produced a memory record.
type Speaker string

const (
	SpeakerUser   Speaker = "user"
	SpeakerSystem Speaker = "system"
)

// ValidSpeakers are the allowed record speakers.
var ValidSpeakers = map[Speaker]bool{
	SpeakerUser:   true,
	SpeakerSystem: true,
}

// MemoryRecord is a single turn utterance stored in session memory.
// Records are append-only: once created they are never modified, only evicted.
type MemoryRecord struct {
	ID          string    `json:"id"`
	Speaker     Speaker   `json:"speaker"`
	Content     string    `json:"content"`
	Timestamp   time.Time `json:"timestamp"`
	EmotionTags []string  `json:"emotion_tags,omitempty"`
	TopicTags   []string  `json:"topic_tags,omitempty"`
	Importance  float64   `json:"importance"`
}

// Tagged reports whether the record carries any emotion or topic tag.
func (r MemoryRecord) Tagged() bool {
	return len(r.EmotionTags) > 0 || len(r.TopicTags) > 0
}

// ClampImportance limits an importance score to [0,1].
func ClampImportance(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
