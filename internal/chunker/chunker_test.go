package chunker

import (
	"testing"
)

func TestSplit_EmptyInput(t *testing.T) {
	result := Split("   ")
	if result != nil {
		t.Errorf("expected nil, got %v", result)
	}
}

func TestSplit_SingleSentence(t *testing.T) {
	text := "This is a short reply."
	result := Split(text)
	if len(result) != 1 {
		t.Fatalf("expected 1 sentence, got %d", len(result))
	}
	if result[0].Text() != text {
		t.Errorf("expected %q, got %q", text, result[0].Text())
	}
}

func TestSplit_MultipleSentences(t *testing.T) {
	result := Sentences("I hear you. That sounds hard! What happened next? And then")
	want := []string{"I hear you.", "That sounds hard!", "What happened next?", "And then"}
	if len(result) != len(want) {
		t.Fatalf("expected %d sentences, got %d: %v", len(want), len(result), result)
	}
	for i := range want {
		if result[i] != want[i] {
			t.Errorf("sentence %d: expected %q, got %q", i, want[i], result[i])
		}
	}
}

func TestSplit_TrailingQuote(t *testing.T) {
	result := Split(`You said "enough." Then you stopped.`)
	if len(result) != 2 {
		t.Fatalf("expected 2 sentences, got %d", len(result))
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		"Hello,":    "hello",
		"you're":    "you're",
		"You’re.":   "you're",
		"--":        "",
		"(breakup)": "breakup",
	}
	for in, want := range tests {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWindows_SkipsPunctuation(t *testing.T) {
	s := Split("one two -- three four five")[0]
	w := Windows(s, 0, 3)
	// "one two --" and "two -- three" and "-- three four" are skipped
	if len(w) != 1 {
		t.Fatalf("expected 1 window, got %d: %v", len(w), w)
	}
	if w[0].Phrase != "three four five" {
		t.Errorf("expected 'three four five', got %q", w[0].Phrase)
	}
}

func TestJoin_Capitalizes(t *testing.T) {
	s := Split("that was hard. and it still is.")
	got := Join(s)
	if got != "That was hard. And it still is." {
		t.Errorf("unexpected join result %q", got)
	}
}
