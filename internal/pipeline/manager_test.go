package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rcliao/response-guard/internal/memory"
	"github.com/rcliao/response-guard/internal/model"
)

func TestManagerOpenReturnsSameSession(t *testing.T) {
	m := NewManager(nil, memory.DefaultOptions(), nil)
	a := m.Open(context.Background(), "a")
	assert.Same(t, a, m.Open(context.Background(), "a"))
	assert.NotSame(t, a, m.Open(context.Background(), "b"))
	assert.Equal(t, []string{"a", "b"}, m.Sessions())
}

func TestManagerRoundTripsThroughPersister(t *testing.T) {
	ps := newMemPersister()
	ctx := context.Background()
	p := New()

	m := NewManager(ps, memory.DefaultOptions(), zap.NewNop())
	s := m.Open(ctx, "alice")
	_, err := p.Process(ctx, s, Turn{Candidate: "What's been on your mind?", UserInput: "I'm stressed about rent and money"})
	require.NoError(t, err)
	m.Open(ctx, "bob")
	require.NoError(t, m.CloseAll(ctx))
	assert.Empty(t, m.Sessions())
	assert.Equal(t, 2, ps.saves)

	m2 := NewManager(ps, memory.DefaultOptions(), zap.NewNop())
	restored := m2.Open(ctx, "alice")
	assert.Equal(t, []string{"I'm stressed about rent and money"}, restored.Memory().Contents(model.SpeakerUser))
	assert.True(t, m2.Open(ctx, "bob").Memory().IsEmpty())
}

func TestManagerLoadFailureStartsEmpty(t *testing.T) {
	ps := newMemPersister()
	ps.err = errors.New("db locked")
	m := NewManager(ps, memory.DefaultOptions(), nil)

	s := m.Open(context.Background(), "x")
	assert.True(t, s.Memory().IsEmpty())

	err := m.Close(context.Background(), "x")
	assert.ErrorContains(t, err, "db locked")
	assert.NoError(t, m.Close(context.Background(), "missing"))
}
