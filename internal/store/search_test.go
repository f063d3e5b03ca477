package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rcliao/response-guard/internal/memory"
	"github.com/rcliao/response-guard/internal/model"
)

func rec(id string, speaker model.Speaker, content string, importance float64) model.MemoryRecord {
	return model.MemoryRecord{
		ID:         id,
		Speaker:    speaker,
		Content:    content,
		Timestamp:  time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		Importance: importance,
	}
}

func seedSearch(t *testing.T, s *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	stressed := rec("A1", model.SpeakerUser, "I'm so stressed about rent and money", 0.8)
	err := s.Save(ctx, "alice", memory.Snapshot{
		ShortTerm: []model.MemoryRecord{
			stressed,
			rec("A2", model.SpeakerSystem, "Money worries are exhausting.", 0.3),
		},
		LongTerm: []model.MemoryRecord{stressed},
	})
	if err != nil {
		t.Fatalf("save alice: %v", err)
	}
	err = s.Save(ctx, "bob", memory.Snapshot{
		ShortTerm: []model.MemoryRecord{
			rec("B1", model.SpeakerUser, "work has been stressful lately", 0.5),
			rec("B2", model.SpeakerUser, "my sister visited", 0.3),
		},
	})
	if err != nil {
		t.Fatalf("save bob: %v", err)
	}
}

func TestSearch_Basic(t *testing.T) {
	s := newTestStore(t)
	seedSearch(t, s)
	ctx := context.Background()

	results, err := s.Search(ctx, SearchParams{Query: "money"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	// No results
	results, err = s.Search(ctx, SearchParams{Query: "javascript"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Fatalf("expected 0 results, got %d", len(results))
	}
}

func TestSearch_StemPrefix(t *testing.T) {
	s := newTestStore(t)
	seedSearch(t, s)

	results, err := s.Search(context.Background(), SearchParams{Query: "stressed"})
	if err != nil {
		t.Fatal(err)
	}
	found := map[string]bool{}
	for _, r := range results {
		found[r.Record.ID] = true
	}
	if !found["A1"] || !found["B1"] {
		t.Errorf("expected stressed and stressful records, got %v", found)
	}
}

func TestSearch_Filters(t *testing.T) {
	s := newTestStore(t)
	seedSearch(t, s)
	ctx := context.Background()

	results, err := s.Search(ctx, SearchParams{Session: "bob", Query: "stressful"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Session != "bob" {
		t.Fatalf("expected one bob result, got %+v", results)
	}

	results, err = s.Search(ctx, SearchParams{Query: "money", Speaker: model.SpeakerSystem})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Record.ID != "A2" {
		t.Fatalf("expected system record A2, got %+v", results)
	}
}

func TestSearch_DedupesTiers(t *testing.T) {
	s := newTestStore(t)
	seedSearch(t, s)

	results, err := s.Search(context.Background(), SearchParams{Session: "alice", Query: "rent"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("expected record held in both tiers once, got %d", len(results))
	}
	if results[0].Record.Content != "I'm so stressed about rent and money" {
		t.Errorf("unexpected content %q", results[0].Record.Content)
	}
}

func TestSearch_Limit(t *testing.T) {
	s := newTestStore(t)
	seedSearch(t, s)

	results, err := s.Search(context.Background(), SearchParams{Query: "money stress sister", Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Errorf("expected limit of 2, got %d", len(results))
	}
}

func TestSearch_EmptyQuery(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Search(context.Background(), SearchParams{Query: "?!"}); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestSearch_DeletedSessionNotFound(t *testing.T) {
	s := newTestStore(t)
	seedSearch(t, s)
	ctx := context.Background()

	if err := s.DeleteSession(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	results, err := s.Search(ctx, SearchParams{Query: "money"})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Errorf("expected no results after delete, got %d", len(results))
	}
}

func TestFTSQuery(t *testing.T) {
	tests := map[string]string{
		"stressed":       `"stressed" OR "stress"*`,
		"money problems": `"money" OR "problems" OR "problem"*`,
		"the":            `"the"`,
		"":               "",
	}
	for in, want := range tests {
		if got := ftsQuery(in); got != want {
			t.Errorf("ftsQuery(%q) = %q, want %q", in, got, want)
		}
	}
}
