package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/response-guard/internal/memory"
	"github.com/rcliao/response-guard/internal/model"
)

func TestClaims(t *testing.T) {
	claims := Claims("As we discussed earlier, your job has been stressful. You mentioned that your sister visited!")
	require.Len(t, claims, 2)
	assert.Equal(t, "as we discussed", claims[0].Phrase)
	assert.Equal(t, "earlier, your job has been stressful", claims[0].Clause)
	assert.Equal(t, "you mentioned", claims[1].Phrase)
	assert.Equal(t, "your sister visited", claims[1].Clause)

	assert.True(t, HasMemoryReference("I recall you enjoy painting."))
	assert.False(t, HasMemoryReference("That sounds really hard."))
}

func TestNewSessionFabricationIsSevere(t *testing.T) {
	v := New(Options{})
	flags := v.Verify(Input{
		Response:  "As we discussed earlier, your job has been stressful.",
		UserInput: "I can't sleep lately",
		History:   []string{"hi", "I feel off"},
	})
	require.Len(t, flags, 1)
	assert.Equal(t, model.CategoryFalseSharing, flags[0].Type)
	assert.Equal(t, model.SeveritySevere, flags[0].Severity)
	assert.Equal(t, "As we discussed earlier, your job has been stressful", flags[0].Span)
}

func TestNewSessionPerfectTenseReferencesAreSevere(t *testing.T) {
	tests := []struct {
		response string
		phrase   string
	}{
		{"As you've shared, your divorce has been really painful.", "as you've shared"},
		{"We've talked about your divorce before.", "we've talked about"},
		{"We spoke about your divorce last week.", "we spoke about"},
		{"You've mentioned your divorce several times.", "you've mentioned"},
		{"As we have discussed, your divorce is painful.", "as we have discussed"},
		{"Last time we talked, your divorce was weighing on you.", "last time we talked"},
		{"You’ve told me your divorce is final.", "you’ve told me"},
	}
	v := New(Options{})
	for _, tt := range tests {
		t.Run(tt.phrase, func(t *testing.T) {
			claims := Claims(tt.response)
			require.NotEmpty(t, claims)
			assert.Equal(t, tt.phrase, claims[0].Phrase)

			flags := v.Verify(Input{Response: tt.response, UserInput: "Hello, I've had a rough week."})
			require.Len(t, flags, 1)
			assert.Equal(t, model.CategoryFalseSharing, flags[0].Type)
			assert.Equal(t, model.SeveritySevere, flags[0].Severity)
		})
	}
}

func TestNewSessionCurrentInputSubstantiates(t *testing.T) {
	v := New(Options{})
	flags := v.Verify(Input{
		Response:  "You mentioned your job is stressful.",
		UserInput: "My job is so stressful right now",
	})
	assert.Empty(t, flags)
}

func TestEstablishedSessionUnsubstantiatedIsMedium(t *testing.T) {
	v := New(Options{})
	history := []string{"my sister is visiting", "we argued about dinner", "I felt ignored"}
	flags := v.Verify(Input{
		Response:  "You told me your landlord raised the rent.",
		UserInput: "anyway",
		History:   history,
	})
	require.Len(t, flags, 1)
	assert.Equal(t, model.CategoryUnsubstantiated, flags[0].Type)
	assert.Equal(t, model.SeverityMedium, flags[0].Severity)

	flags = v.Verify(Input{
		Response:  "You mentioned your sister argued with you.",
		UserInput: "anyway",
		History:   history,
	})
	assert.Empty(t, flags)
}

func TestStoreCountsAsHistory(t *testing.T) {
	s := memory.New(memory.DefaultOptions())
	for _, c := range []string{"I'm stressed about rent and money", "my landlord keeps calling", "it never stops"} {
		_, err := s.Append(model.MemoryRecord{Speaker: model.SpeakerUser, Content: c})
		require.NoError(t, err)
	}

	v := New(Options{})
	flags := v.Verify(Input{
		Response:  "I remember your landlord keeps calling about rent.",
		UserInput: "what should I do",
		Memory:    s,
	})
	assert.Empty(t, flags, "three stored turns make the session established and the claim is in memory")
}

func TestUnparsableClauseIsMedium(t *testing.T) {
	v := New(Options{})
	flags := v.Verify(Input{Response: "I remember. Tell me more.", UserInput: "hello"})
	require.Len(t, flags, 1)
	assert.Equal(t, model.CategoryUnsubstantiated, flags[0].Type)
	assert.Equal(t, model.SeverityMedium, flags[0].Severity)
}

func TestNoClaimsNoFlags(t *testing.T) {
	v := New(Options{})
	assert.Nil(t, v.Verify(Input{Response: "That sounds hard. What happened next?"}))
}
