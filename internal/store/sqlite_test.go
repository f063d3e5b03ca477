package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rcliao/response-guard/internal/memory"
	"github.com/rcliao/response-guard/internal/model"
	"github.com/rcliao/response-guard/internal/pipeline"
)

var _ pipeline.Persister = (*SQLiteStore)(nil)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// sampleSnapshot builds a snapshot with short-term, long-term and summary
// state. Timestamps carry sub-second precision.
func sampleSnapshot(t *testing.T) memory.Snapshot {
	t.Helper()
	mem := memory.New(memory.DefaultOptions())
	clock := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	mem.SetClock(func() time.Time {
		clock = clock.Add(1500*time.Millisecond + 7)
		return clock
	})

	tagger := memory.KeywordTagger{}
	inputs := []string{
		"I'm so anxious and sad about my job and my rent",
		"my boss keeps yelling at me",
		"I can't sleep at all",
		"money is tight this month",
		"my sister called yesterday",
	}
	for _, in := range inputs {
		_, err := mem.Commit(false,
			memory.NewRecord(tagger, model.SpeakerUser, in),
			memory.NewRecord(tagger, model.SpeakerSystem, "Tell me more about that."))
		if err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	snap := mem.Snapshot()
	if len(snap.LongTerm) == 0 || len(snap.Summary) == 0 {
		t.Fatalf("sample snapshot lacks long-term or summary state: %+v", snap)
	}
	return snap
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	snap := sampleSnapshot(t)

	if err := s.Save(ctx, "alice", snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, snap)
	}
}

func TestLoadUnknownSession(t *testing.T) {
	s := newTestStore(t)
	snap, err := s.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !snap.Empty() {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
}

func TestSaveReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	s.Save(ctx, "alice", sampleSnapshot(t))

	smaller := memory.Snapshot{
		ShortTerm: []model.MemoryRecord{{
			ID: "01J0000000000000000000000A", Speaker: model.SpeakerUser, Content: "fresh start",
			Timestamp: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), Importance: 0.3,
		}},
		LastUpdated: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := s.Save(ctx, "alice", smaller); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, _ := s.Load(ctx, "alice")
	if !reflect.DeepEqual(got, smaller) {
		t.Errorf("expected replaced snapshot, got %+v", got)
	}
}

func TestSaveAssignsMissingIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	kept := model.MemoryRecord{Speaker: model.SpeakerUser, Content: "one", Importance: 0.9}
	snap := memory.Snapshot{
		ShortTerm: []model.MemoryRecord{kept, {Speaker: model.SpeakerUser, Content: "two"}},
		LongTerm:  []model.MemoryRecord{kept},
	}
	if err := s.Save(ctx, "ids", snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if snap.ShortTerm[0].ID != "" {
		t.Error("expected caller's snapshot to be left untouched")
	}

	got, _ := s.Load(ctx, "ids")
	if len(got.ShortTerm) != 2 || len(got.LongTerm) != 1 {
		t.Fatalf("expected 2 short-term and 1 long-term records, got %d and %d", len(got.ShortTerm), len(got.LongTerm))
	}
	if got.ShortTerm[0].ID == "" || got.ShortTerm[0].ID == got.ShortTerm[1].ID {
		t.Errorf("expected distinct generated IDs, got %q and %q", got.ShortTerm[0].ID, got.ShortTerm[1].ID)
	}
	if got.LongTerm[0].ID != got.ShortTerm[0].ID {
		t.Errorf("expected record in both tiers to share an ID, got %q and %q", got.ShortTerm[0].ID, got.LongTerm[0].ID)
	}
	for _, r := range append(got.ShortTerm, got.LongTerm...) {
		if !r.Timestamp.Equal(now) {
			t.Errorf("expected missing timestamp to default to save time, got %v", r.Timestamp)
		}
	}
}

func TestSaveRequiresSessionID(t *testing.T) {
	s := newTestStore(t)
	if err := s.Save(context.Background(), "", memory.Snapshot{}); err == nil {
		t.Error("expected error for empty session id")
	}
}

func TestSessionsListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	snap := sampleSnapshot(t)

	base := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	s.Save(ctx, "alice", snap)
	s.now = func() time.Time { return base.Add(time.Minute) }
	s.Save(ctx, "bob", memory.Snapshot{})

	list, err := s.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
	if list[0].ID != "bob" {
		t.Errorf("expected most recently saved first, got %q", list[0].ID)
	}

	info, err := s.Session(ctx, "alice")
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if info.ShortTerm != len(snap.ShortTerm) || info.LongTerm != len(snap.LongTerm) || info.Summaries != len(snap.Summary) {
		t.Errorf("unexpected counts: %+v", info)
	}
	if !info.LastUpdated.Equal(snap.LastUpdated) {
		t.Errorf("expected last_updated %v, got %v", snap.LastUpdated, info.LastUpdated)
	}

	if err := s.DeleteSession(ctx, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteSession(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	if _, err := s.Session(ctx, "alice"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	got, _ := s.Load(ctx, "alice")
	if !got.Empty() {
		t.Errorf("expected deleted session to load empty, got %+v", got)
	}
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.Save(ctx, "stale", memory.Snapshot{LastUpdated: now.Add(-10 * 24 * time.Hour)})
	s.Save(ctx, "fresh", memory.Snapshot{LastUpdated: now.Add(-time.Hour)})

	n, err := s.Prune(ctx, "7d")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned session, got %d", n)
	}
	if _, err := s.Session(ctx, "stale"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected stale session gone, got %v", err)
	}
	if _, err := s.Session(ctx, "fresh"); err != nil {
		t.Errorf("expected fresh session kept, got %v", err)
	}

	if _, err := s.Prune(ctx, "soon"); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestParseTTL(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		err  bool
	}{
		{"7d", 7 * 24 * time.Hour, false},
		{"24h", 24 * time.Hour, false},
		{"30m", 30 * time.Minute, false},
		{"60s", 60 * time.Second, false},
		{"1w", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := parseTTL(tt.in)
		if (err != nil) != tt.err {
			t.Errorf("parseTTL(%q) error = %v, want error %v", tt.in, err, tt.err)
			continue
		}
		if got != tt.want {
			t.Errorf("parseTTL(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	snap := sampleSnapshot(t)
	s.Save(ctx, "alice", snap)
	s.Save(ctx, "bob", memory.Snapshot{})

	st, err := s.Stats(ctx, "test.db")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Sessions != 2 {
		t.Errorf("expected 2 sessions, got %d", st.Sessions)
	}
	if st.ShortTermTotal != len(snap.ShortTerm) {
		t.Errorf("expected %d short-term records, got %d", len(snap.ShortTerm), st.ShortTermTotal)
	}
	if st.LongTermTotal != len(snap.LongTerm) {
		t.Errorf("expected %d long-term records, got %d", len(snap.LongTerm), st.LongTermTotal)
	}
	if st.SummariesStored != len(snap.Summary) {
		t.Errorf("expected %d summaries, got %d", len(snap.Summary), st.SummariesStored)
	}
	if len(st.Speakers) != 2 {
		t.Errorf("expected 2 speakers, got %+v", st.Speakers)
	}
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	snap := sampleSnapshot(t)
	src.Save(ctx, "alice", snap)
	src.Save(ctx, "bob", memory.Snapshot{Summary: []string{"talked about school"}})

	all, err := src.ExportAll(ctx, "")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(all) != 2 || all[0].ID != "alice" || all[1].ID != "bob" {
		t.Fatalf("unexpected export: %+v", all)
	}

	one, err := src.ExportAll(ctx, "bob")
	if err != nil || len(one) != 1 {
		t.Fatalf("export bob: %v, %d sessions", err, len(one))
	}
	if _, err := src.ExportAll(ctx, "carol"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown session, got %v", err)
	}

	dst := newTestStore(t)
	n, err := dst.Import(ctx, all)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 imported, got %d", n)
	}
	got, _ := dst.Load(ctx, "alice")
	if !reflect.DeepEqual(got, snap) {
		t.Errorf("imported snapshot mismatch\n got: %+v\nwant: %+v", got, snap)
	}

	if _, err := dst.Import(ctx, []SessionExport{{}}); err == nil {
		t.Error("expected error for session without id")
	}
}

func TestManagerWithSQLite(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	p := pipeline.New(pipeline.WithPersister(s))

	m := pipeline.NewManager(s, memory.DefaultOptions(), nil)
	sess := m.Open(ctx, "alice")
	if _, err := p.Process(ctx, sess, pipeline.Turn{
		Candidate: "That sounds stressful. What part worries you most?",
		UserInput: "I'm stressed about rent and money",
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := m.CloseAll(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	restored := pipeline.NewManager(s, memory.DefaultOptions(), nil).Open(ctx, "alice")
	users := restored.Memory().Contents(model.SpeakerUser)
	if len(users) != 1 || users[0] != "I'm stressed about rent and money" {
		t.Errorf("expected restored user input, got %v", users)
	}
}
