package memory

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/response-guard/internal/model"
)

func TestContextForEmptyStore(t *testing.T) {
	s := newTestStore(t, DefaultOptions())

	ctx := s.ContextFor("anything at all")
	assert.Empty(t, ctx.RelevantStatements)
	assert.NotNil(t, ctx.RelevantStatements)
	assert.Empty(t, ctx.Topics)
	assert.Equal(t, "", ctx.DominantEmotion)
	assert.Equal(t, NoSummary, ctx.Summary)
}

func TestContextForRecallsRelatedStatement(t *testing.T) {
	s := newTestStore(t, DefaultOptions())
	tagger := KeywordTagger{}

	_, err := s.Append(NewRecord(tagger, model.SpeakerUser, "I'm stressed about rent and money"))
	require.NoError(t, err)
	_, err = s.Append(NewRecord(tagger, model.SpeakerSystem, "That sounds like a lot to carry."))
	require.NoError(t, err)
	_, err = s.Append(NewRecord(tagger, model.SpeakerUser, "My sister visited on the weekend"))
	require.NoError(t, err)

	ctx := s.ContextFor("money problems")
	require.NotEmpty(t, ctx.RelevantStatements)
	assert.Equal(t, "I'm stressed about rent and money", ctx.RelevantStatements[0].Content)
	assert.Equal(t, "anxiety", ctx.DominantEmotion)
	assert.Contains(t, ctx.Topics, "finances")
	for _, r := range ctx.RelevantStatements {
		assert.Equal(t, model.SpeakerUser, r.Speaker)
	}
}

func TestContextForRanksByOverlapThenRecency(t *testing.T) {
	s := newTestStore(t, DefaultOptions())

	s.Append(userRec("rent is late"))
	s.Append(userRec("rent and bills are piling up"))
	s.Append(userRec("rent again"))

	ctx := s.ContextFor("rent bills")
	require.Len(t, ctx.RelevantStatements, 3)
	assert.Equal(t, "rent and bills are piling up", ctx.RelevantStatements[0].Content)
	assert.Equal(t, "rent again", ctx.RelevantStatements[1].Content)
	assert.Equal(t, "rent is late", ctx.RelevantStatements[2].Content)
}

func TestContextForFallsBackToRecent(t *testing.T) {
	s := newTestStore(t, Options{RelevantLimit: 2})

	s.Append(userRec("first thought"))
	s.Append(userRec("second thought"))
	s.Append(userRec("third thought"))

	ctx := s.ContextFor("unrelated query words")
	require.Len(t, ctx.RelevantStatements, 2)
	assert.Equal(t, "third thought", ctx.RelevantStatements[0].Content)
	assert.Equal(t, "second thought", ctx.RelevantStatements[1].Content)
}

func TestContextForUsesLatestSummary(t *testing.T) {
	s := newTestStore(t, Options{SummaryEvery: 1})
	s.Append(model.MemoryRecord{Speaker: model.SpeakerUser, Content: "work is hard", TopicTags: []string{"work"}})
	s.Append(model.MemoryRecord{Speaker: model.SpeakerUser, Content: "rent too", TopicTags: []string{"finances"}})

	sums := s.Summaries()
	require.Len(t, sums, 2)
	assert.Equal(t, sums[1], s.ContextFor("x").Summary)
}

func TestDigestTruncatesByRune(t *testing.T) {
	s := newTestStore(t, DefaultOptions())
	long := strings.Repeat("é", digestQuoteLen+10)
	_, err := s.Append(model.MemoryRecord{Speaker: model.SpeakerUser, Content: long})
	require.NoError(t, err)

	d := s.digestLocked()
	assert.True(t, utf8.ValidString(d), d)
	assert.Contains(t, d, strings.Repeat("é", digestQuoteLen)+"...")
	assert.NotContains(t, d, strings.Repeat("é", digestQuoteLen+1))
}

func TestJoinList(t *testing.T) {
	assert.Equal(t, "", joinList(nil))
	assert.Equal(t, "a", joinList([]string{"a"}))
	assert.Equal(t, "a and b", joinList([]string{"a", "b"}))
	assert.Equal(t, "a, b and c", joinList([]string{"a", "b", "c"}))
}
