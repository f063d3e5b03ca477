package lexicon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"i'm", "fine", "really"}, Tokens("I’m FINE, really!"))
	assert.Empty(t, Tokens("  ...  "))
}

func TestContentTokens(t *testing.T) {
	got := ContentTokens("I'm worried about my job and my job security")
	assert.Equal(t, []string{"worried", "job", "security"}, got)
}

func TestStem(t *testing.T) {
	cases := map[string]string{
		"stressed":  "stress",
		"stressful": "stress",
		"stress":    "stress",
		"worried":   "worry",
		"feelings":  "feeling",
		"running":   "runn",
		"sadness":   "sad",
		"is":        "is",
		"bus":       "bus",
	}
	for in, want := range cases {
		assert.Equal(t, want, Stem(in), in)
	}
}

func TestEmotionsAndTopics(t *testing.T) {
	assert.Equal(t, []string{"anxiety", "sadness"}, Emotions("I feel so sad and worried"))
	assert.Equal(t, []string{"relationships"}, Topics("my breakup last month"))
	assert.Empty(t, Emotions("the weather is mild"))
}

func TestCoverage(t *testing.T) {
	src := StemSet("I'm stressed about rent")
	cov, n := Coverage("your stress about rent payments", src)
	assert.Equal(t, 3, n)
	assert.InDelta(t, 2.0/3.0, cov, 1e-9)

	cov, n = Coverage("the and you", src)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0.0, cov)
}

func TestSelfHarmAndResources(t *testing.T) {
	assert.True(t, IndicatesSelfHarm("I don’t want to be alive anymore"))
	assert.True(t, IndicatesSelfHarm("sometimes I think about ending it all"))
	assert.False(t, IndicatesSelfHarm("the movie's ending was sad"))

	assert.True(t, HasCrisisResources("You can call or text 988 any time."))
	assert.False(t, HasCrisisResources("That sounds hard."))
}

func TestGreetingAndGuidance(t *testing.T) {
	assert.True(t, IsGreeting("Hi there, I'm new here"))
	assert.True(t, IsGreeting("good evening"))
	assert.False(t, IsGreeting("I said hi to my boss"))

	assert.True(t, HasGuidance("A therapist could help with this."))
	assert.False(t, HasGuidance("That sounds hard."))
}
