package memory

import (
	"sort"
	"time"

	"github.com/rcliao/response-guard/internal/model"
)

// Snapshot is the serializable state of a Store.
type Snapshot struct {
	// ShortTerm holds the buffered records of both speakers, oldest first.
	ShortTerm        []model.MemoryRecord `json:"short_term"`
	LongTerm         []model.MemoryRecord `json:"long_term"`
	Summary          []string             `json:"summary"`
	UserSinceSummary int                  `json:"user_since_summary"`
	LastUpdated      time.Time            `json:"last_updated"`
}

// Empty reports whether the snapshot carries no state.
func (s Snapshot) Empty() bool {
	return len(s.ShortTerm) == 0 && len(s.LongTerm) == 0 && len(s.Summary) == 0
}

// Snapshot captures the full store state in one read.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var short []model.MemoryRecord
	for _, sp := range []model.Speaker{model.SpeakerUser, model.SpeakerSystem} {
		short = append(short, s.shortTerm[sp]...)
	}
	sort.SliceStable(short, func(i, j int) bool { return short[i].Timestamp.Before(short[j].Timestamp) })

	return Snapshot{
		ShortTerm:        short,
		LongTerm:         s.longTermLocked(),
		Summary:          append([]string(nil), s.summary...),
		UserSinceSummary: s.userSinceSummary,
		LastUpdated:      s.lastUpdated,
	}
}

// Restore replaces the store state with snap. Capacities of the receiving
// store are enforced, keeping the newest short-term records and the most
// important long-term ones.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.resetLocked()
	for _, r := range snap.ShortTerm {
		if !model.ValidSpeakers[r.Speaker] {
			continue
		}
		buf := append(s.shortTerm[r.Speaker], r)
		if over := len(buf) - s.opts.ShortTermCapacity; over > 0 {
			buf = append([]model.MemoryRecord(nil), buf[over:]...)
		}
		s.shortTerm[r.Speaker] = buf
	}
	for _, r := range snap.LongTerm {
		s.seq++
		s.longTerm[r.ID] = longEntry{rec: r, seq: s.seq}
	}
	s.evictLongTermLocked()
	s.summary = append([]string(nil), snap.Summary...)
	s.userSinceSummary = snap.UserSinceSummary
	s.lastUpdated = snap.LastUpdated
}
