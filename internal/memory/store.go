// Package memory provides the per-session memory store: a bounded
// short-term turn buffer per speaker, an importance-weighted long-term
// record set and periodic conversation digests.
package memory

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/response-guard/internal/model"
)

const (
	DefaultShortTermCapacity   = 100
	DefaultLongTermCapacity    = 500
	DefaultImportanceThreshold = 0.5
	DefaultSummaryEvery        = 5
	DefaultRelevantLimit       = 5
)

// ErrInvalidSpeaker is returned when a record names an unknown speaker.
var ErrInvalidSpeaker = errors.New("invalid speaker")

// Options configures a Store.
type Options struct {
	ShortTermCapacity   int
	LongTermCapacity    int
	ImportanceThreshold float64
	// SummaryEvery is the number of new user records between digests.
	SummaryEvery  int
	RelevantLimit int
}

// DefaultOptions returns the default store options.
func DefaultOptions() Options {
	return Options{
		ShortTermCapacity:   DefaultShortTermCapacity,
		LongTermCapacity:    DefaultLongTermCapacity,
		ImportanceThreshold: DefaultImportanceThreshold,
		SummaryEvery:        DefaultSummaryEvery,
		RelevantLimit:       DefaultRelevantLimit,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ShortTermCapacity <= 0 {
		o.ShortTermCapacity = def.ShortTermCapacity
	}
	if o.LongTermCapacity <= 0 {
		o.LongTermCapacity = def.LongTermCapacity
	}
	if o.ImportanceThreshold <= 0 {
		o.ImportanceThreshold = def.ImportanceThreshold
	}
	if o.SummaryEvery <= 0 {
		o.SummaryEvery = def.SummaryEvery
	}
	if o.RelevantLimit <= 0 {
		o.RelevantLimit = def.RelevantLimit
	}
	return o
}

type longEntry struct {
	rec model.MemoryRecord
	seq uint64
}

// Store is the memory of one conversation session. It is safe for
// concurrent use; every mutation happens under a single lock so readers
// never observe a partially applied append or reset.
type Store struct {
	mu   sync.RWMutex
	opts Options

	shortTerm        map[model.Speaker][]model.MemoryRecord
	longTerm         map[string]longEntry
	summary          []string
	userSinceSummary int
	lastUpdated      time.Time
	seq              uint64

	now     func() time.Time
	entropy *rand.Rand
}

// New creates an empty store.
func New(opts Options) *Store {
	return &Store{
		opts:      opts.withDefaults(),
		shortTerm: map[model.Speaker][]model.MemoryRecord{},
		longTerm:  map[string]longEntry{},
		now:       time.Now,
		entropy:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock replaces the time source. Intended for tests and replays.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Options returns the store configuration.
func (s *Store) Options() Options {
	return s.opts
}

func (s *Store) newID(t time.Time) string {
	return ulid.MustNew(ulid.Timestamp(t), s.entropy).String()
}

// Append records one utterance and returns it with ID and timestamp set.
func (s *Store) Append(rec model.MemoryRecord) (model.MemoryRecord, error) {
	out, err := s.Commit(false, rec)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	return out[0], nil
}

// Commit optionally resets the store and then appends records, all under
// one lock. Records are validated before anything changes, so an invalid
// record leaves the store untouched.
func (s *Store) Commit(reset bool, recs ...model.MemoryRecord) ([]model.MemoryRecord, error) {
	for _, r := range recs {
		if !model.ValidSpeakers[r.Speaker] {
			return nil, fmt.Errorf("%w: %q", ErrInvalidSpeaker, r.Speaker)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if reset {
		s.resetLocked()
	}
	out := make([]model.MemoryRecord, 0, len(recs))
	for _, r := range recs {
		out = append(out, s.appendLocked(r))
	}
	return out, nil
}

func (s *Store) appendLocked(rec model.MemoryRecord) model.MemoryRecord {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now().UTC()
	}
	if rec.ID == "" {
		rec.ID = s.newID(rec.Timestamp)
	}
	rec.Importance = model.ClampImportance(rec.Importance)
	rec.EmotionTags = append([]string(nil), rec.EmotionTags...)
	rec.TopicTags = append([]string(nil), rec.TopicTags...)

	buf := append(s.shortTerm[rec.Speaker], rec)
	if over := len(buf) - s.opts.ShortTermCapacity; over > 0 {
		buf = append([]model.MemoryRecord(nil), buf[over:]...)
	}
	s.shortTerm[rec.Speaker] = buf

	if rec.Importance >= s.opts.ImportanceThreshold || rec.Tagged() {
		s.seq++
		s.longTerm[rec.ID] = longEntry{rec: rec, seq: s.seq}
		s.evictLongTermLocked()
	}

	if rec.Speaker == model.SpeakerUser {
		s.userSinceSummary++
		if s.userSinceSummary >= s.opts.SummaryEvery {
			s.summary = append(s.summary, s.digestLocked())
			s.userSinceSummary = 0
		}
	}

	if rec.Timestamp.After(s.lastUpdated) {
		s.lastUpdated = rec.Timestamp
	}
	return rec
}

// evictLongTermLocked drops the lowest-importance records, oldest first on
// ties, until the long-term set fits its capacity.
func (s *Store) evictLongTermLocked() {
	for len(s.longTerm) > s.opts.LongTermCapacity {
		var victim string
		var worst longEntry
		first := true
		for id, e := range s.longTerm {
			if first || evictsBefore(e, worst) {
				victim, worst, first = id, e, false
			}
		}
		delete(s.longTerm, victim)
	}
}

func evictsBefore(a, b longEntry) bool {
	if a.rec.Importance != b.rec.Importance {
		return a.rec.Importance < b.rec.Importance
	}
	if !a.rec.Timestamp.Equal(b.rec.Timestamp) {
		return a.rec.Timestamp.Before(b.rec.Timestamp)
	}
	return a.seq < b.seq
}

// Reset clears every tier, the summary and the last-updated time at once.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Store) resetLocked() {
	s.shortTerm = map[model.Speaker][]model.MemoryRecord{}
	s.longTerm = map[string]longEntry{}
	s.summary = nil
	s.userSinceSummary = 0
	s.lastUpdated = time.Time{}
	s.seq = 0
}

// ShortTerm returns the buffered records of one speaker, oldest first.
func (s *Store) ShortTerm(speaker model.Speaker) []model.MemoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.MemoryRecord(nil), s.shortTerm[speaker]...)
}

// LongTerm returns the long-term records, oldest first.
func (s *Store) LongTerm() []model.MemoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.longTermLocked()
}

func (s *Store) longTermLocked() []model.MemoryRecord {
	entries := make([]longEntry, 0, len(s.longTerm))
	for _, e := range s.longTerm {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]model.MemoryRecord, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}

// Summaries returns every digest produced so far, oldest first.
func (s *Store) Summaries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.summary...)
}

// LastUpdated returns the timestamp of the newest record, or zero.
func (s *Store) LastUpdated() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastUpdated
}

// Len returns the number of distinct records held across both tiers.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recordsLocked(""))
}

// IsEmpty reports whether the store holds no records.
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// UserTurns returns the number of user records in the short-term buffer.
func (s *Store) UserTurns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.shortTerm[model.SpeakerUser])
}

// Contents returns the text of every distinct record of a speaker across
// both tiers, oldest first. An empty speaker selects all records.
func (s *Store) Contents(speaker model.Speaker) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.recordsLocked(speaker)
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.Content
	}
	return out
}

// recordsLocked merges both tiers, deduplicated by ID, sorted by time.
func (s *Store) recordsLocked(speaker model.Speaker) []model.MemoryRecord {
	seen := map[string]bool{}
	var out []model.MemoryRecord
	add := func(r model.MemoryRecord) {
		if seen[r.ID] || (speaker != "" && r.Speaker != speaker) {
			return
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	for _, sp := range []model.Speaker{model.SpeakerUser, model.SpeakerSystem} {
		for _, r := range s.shortTerm[sp] {
			add(r)
		}
	}
	for _, r := range s.longTermLocked() {
		add(r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
