package detector

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/response-guard/internal/model"
	"github.com/rcliao/response-guard/internal/patterns"
)

func flag(c model.Category, s model.Severity) model.Flag {
	return model.Flag{Type: c, Severity: s}
}

func TestAggregate(t *testing.T) {
	p := DefaultPolicy()
	tests := []struct {
		name      string
		flags     []model.Flag
		force     bool
		want      model.Severity
		immediate bool
		action    model.Action
	}{
		{name: "no flags", want: model.SeverityLow, action: model.ActionContinue},
		{
			name:   "single medium",
			flags:  []model.Flag{flag(model.CategoryMalformed, model.SeverityMedium)},
			want:   model.SeverityMedium,
			action: model.ActionMinor,
		},
		{
			name:   "single high is not immediate",
			flags:  []model.Flag{flag(model.CategoryDoubleAck, model.SeverityHigh)},
			want:   model.SeverityHigh,
			action: model.ActionMajor,
		},
		{
			name: "two high is immediate",
			flags: []model.Flag{
				flag(model.CategoryDoubleAck, model.SeverityHigh),
				flag(model.CategoryRepetition, model.SeverityHigh),
			},
			want:      model.SeverityHigh,
			immediate: true,
			action:    model.ActionMajor,
		},
		{
			name: "three low flags escalate to high",
			flags: []model.Flag{
				flag(model.CategoryMalformed, model.SeverityMedium),
				flag(model.CategoryMalformed, model.SeverityLow),
				flag(model.CategoryUnverifiedDiagnosis, model.SeverityMedium),
			},
			want:      model.SeverityHigh,
			immediate: true,
			action:    model.ActionMajor,
		},
		{
			name: "fabrication with repetition forces severe",
			flags: []model.Flag{
				flag(model.CategoryFalseAttribution, model.SeverityHigh),
				flag(model.CategoryRepetition, model.SeverityHigh),
			},
			want:      model.SeveritySevere,
			immediate: true,
			action:    model.ActionReset,
		},
		{
			name:      "forced immediate",
			flags:     []model.Flag{flag(model.CategoryCrisisMissing, model.SeveritySevere)},
			force:     true,
			want:      model.SeveritySevere,
			immediate: true,
			action:    model.ActionReset,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Aggregate(tt.flags, tt.force, p)
			assert.Equal(t, tt.want, v.Severity)
			assert.Equal(t, tt.immediate, v.RequiresImmediate)
			assert.Equal(t, tt.action, v.RecommendedAction)
			assert.Equal(t, len(tt.flags) > 0, v.IsFlagged)
		})
	}
}

func TestAggregatePolicyIsTunable(t *testing.T) {
	flags := []model.Flag{
		flag(model.CategoryFalseAttribution, model.SeverityHigh),
		flag(model.CategoryRepetition, model.SeverityHigh),
	}
	v := Aggregate(flags, false, Policy{CoOccurrenceSevere: false, ImmediateHighFlagCount: 2})
	assert.Equal(t, model.SeverityHigh, v.Severity)
}

var allCategories = []model.Category{
	model.CategoryRepetition, model.CategoryDoubleAck, model.CategoryRepeatedResponse,
	model.CategoryFalseAttribution, model.CategoryFalseContinuity, model.CategoryFalseSharing,
	model.CategoryUnsubstantiated, model.CategoryMalformed, model.CategoryCrisisMissing,
	model.CategoryCrisisMinimizing, model.CategoryUnverifiedDiagnosis,
}

func randomFlag(r *rand.Rand) model.Flag {
	return flag(allCategories[r.Intn(len(allCategories))], model.Severity(r.Intn(4)))
}

func TestAggregateIsMonotonic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	p := DefaultPolicy()
	for i := 0; i < 2000; i++ {
		var flags []model.Flag
		for n := r.Intn(5); n > 0; n-- {
			flags = append(flags, randomFlag(r))
		}
		before := Aggregate(flags, false, p)

		maxSev := model.SeverityLow
		for _, f := range flags {
			maxSev = model.MaxSeverity(maxSev, f.Severity)
		}
		require.GreaterOrEqual(t, before.Severity, maxSev)

		after := Aggregate(append(flags, randomFlag(r)), false, p)
		require.GreaterOrEqual(t, after.Severity, before.Severity, "flags %+v", flags)
		if before.RequiresImmediate {
			require.True(t, after.RequiresImmediate)
		}
	}
}

func TestDetectRepetitionScenario(t *testing.T) {
	d := New()
	v, err := d.Detect(context.Background(), Turn{
		Response:  "I hear you're dealing with I hear you're dealing with a breakup.",
		UserInput: "my partner left me",
		History:   []string{"hi", "it's been a rough week", "things are bad"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.SeverityHigh, v.Severity)
	assert.True(t, v.HasCategory(model.CategoryRepetition))
	assert.True(t, v.HasCategory(model.CategoryDoubleAck))
	assert.True(t, v.RequiresImmediate)
	assert.Equal(t, model.ActionMajor, v.RecommendedAction)
}

func TestDetectFalseSharingInNewSession(t *testing.T) {
	d := New()
	v, err := d.Detect(context.Background(), Turn{
		Response:  "As we discussed earlier, your job has been stressful.",
		UserInput: "I keep waking up at night",
		History:   []string{"hello", "not great today"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.SeveritySevere, v.Severity)
	assert.True(t, v.HasCategory(model.CategoryFalseSharing))
	assert.Equal(t, model.ActionReset, v.RecommendedAction)
}

func TestDetectPerfectTenseFalseSharingInNewSession(t *testing.T) {
	d := New()
	for _, resp := range []string{
		"As you've shared, your divorce has been really painful.",
		"We've talked about your divorce before.",
		"We spoke about your divorce last week.",
		"You've mentioned your divorce several times.",
	} {
		v, err := d.Detect(context.Background(), Turn{
			Response:  resp,
			UserInput: "Hello, I've had a rough week.",
		})
		require.NoError(t, err)
		assert.Equal(t, model.SeveritySevere, v.Severity, resp)
		assert.True(t, v.HasCategory(model.CategoryFalseSharing), resp)
		assert.Equal(t, model.ActionReset, v.RecommendedAction, resp)
	}
}

func TestDetectCrisisPrecedence(t *testing.T) {
	d := New()
	responses := []string{
		"That sounds hard. What happened today?",
		"",
		"I hear you I hear you. As we discussed, your job is stressful.",
		"Everything will be fine, cheer up!",
	}
	for _, resp := range responses {
		v, err := d.Detect(context.Background(), Turn{
			Response:  resp,
			UserInput: "I don't want to be alive anymore",
		})
		require.NoError(t, err)
		assert.Equal(t, model.SeveritySevere, v.Severity, resp)
		assert.True(t, v.RequiresImmediate, resp)
		assert.True(t, v.HasCategory(model.CategoryCrisisMissing), resp)
	}
}

func TestDetectCrisisWithResourcesIsNotFlagged(t *testing.T) {
	d := New()
	v, err := d.Detect(context.Background(), Turn{
		Response:  "Thank you for telling me. Please call or text 988 right now to reach the crisis line.",
		UserInput: "I don't want to be alive anymore",
	})
	require.NoError(t, err)
	assert.False(t, v.HasCategory(model.CategoryCrisisMissing))
}

func TestDetectCleanResponseIsLow(t *testing.T) {
	d := New()
	v, err := d.Detect(context.Background(), Turn{
		Response:  "That sounds like a heavy week. What part of it weighs on you most?",
		UserInput: "work has been a lot this week",
		History:   []string{"hi", "I'm tired", "my boss is demanding"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.SeverityLow, v.Severity)
	assert.False(t, v.IsFlagged)
	assert.Equal(t, model.ActionContinue, v.RecommendedAction)
}

func TestFailingCrisisCheckFailsSafe(t *testing.T) {
	d := New(WithCrisisCheck(func(patterns.Input) (string, bool) { panic("lexicon unavailable") }))
	v, err := d.Detect(context.Background(), Turn{Response: "Okay.", UserInput: "just a normal day"})
	require.NoError(t, err)
	assert.Equal(t, model.SeveritySevere, v.Severity)
	assert.True(t, v.RequiresImmediate)
}

func TestPanickingRuleIsContained(t *testing.T) {
	boom := patterns.Rule{
		ID:       "boom",
		Category: model.CategoryMalformed,
		Severity: model.SeveritySevere,
		Match:    func(patterns.Input) (string, bool) { panic("bad rule") },
	}
	d := New(WithLibrary(patterns.Default().With("test", boom)))
	v, err := d.Detect(context.Background(), Turn{
		Response:  "That sounds like a heavy week. What part of it weighs on you most?",
		UserInput: "work has been a lot",
		History:   []string{"a", "b", "c"},
	})
	require.NoError(t, err)
	assert.Equal(t, model.SeverityLow, v.Severity)
}

func TestDetectHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Detect(ctx, Turn{Response: "hello there"})
	assert.ErrorIs(t, err, context.Canceled)
}
