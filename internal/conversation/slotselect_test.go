package conversation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearbook-ai/dental-voice-platform/internal/matching"
)

func TestSlotSelectorPicksFromOfferedSet(t *testing.T) {
	env := newTestEnv(t)
	presented := []CandidateSlot{env.slotAt(26, 9, 0), env.slotAt(26, 10, 30), env.slotAt(26, 15, 0)}

	var seen []matching.Candidate
	selector := NewSlotSelector(&stubMatcher{
		matchSlotFn: func(_ string, candidates []matching.Candidate) (matching.Result, error) {
			seen = candidates
			return matching.Result{ID: "1", Matched: true}, nil
		},
	})

	chosen, herr := selector.Select(context.Background(), "the ten thirty one", presented, env.loc)
	require.Nil(t, herr)
	require.NotNil(t, chosen)
	assert.True(t, chosen.Same(presented[1]))

	require.Len(t, seen, 3)
	assert.Contains(t, seen[0].Hints[0], "first")
	assert.Contains(t, seen[2].Hints[0], "last")
}

func TestSlotSelectorNoMatchIsNotAnError(t *testing.T) {
	env := newTestEnv(t)
	selector := NewSlotSelector(&stubMatcher{
		matchSlotFn: func(string, []matching.Candidate) (matching.Result, error) {
			return matching.Result{}, nil
		},
	})

	chosen, herr := selector.Select(context.Background(), "hmm", []CandidateSlot{env.slotAt(26, 9, 0)}, env.loc)
	require.Nil(t, herr)
	assert.Nil(t, chosen)
}

func TestSlotSelectorRejectsIndexOutsideOfferedSet(t *testing.T) {
	env := newTestEnv(t)
	selector := NewSlotSelector(&stubMatcher{
		matchSlotFn: func(string, []matching.Candidate) (matching.Result, error) {
			return matching.Result{ID: "9", Matched: true}, nil
		},
	})

	_, herr := selector.Select(context.Background(), "nine", []CandidateSlot{env.slotAt(26, 9, 0)}, env.loc)
	require.NotNil(t, herr)
	assert.Equal(t, FailureInvariant, herr.Class)
}

func TestSlotSelectorRequiresPresentedSlots(t *testing.T) {
	env := newTestEnv(t)
	selector := NewSlotSelector(&stubMatcher{})

	_, herr := selector.Select(context.Background(), "any", nil, env.loc)
	require.NotNil(t, herr)
	assert.Equal(t, FailureInvariant, herr.Class)
}

func TestSlotSelectorClassifiesMatcherOutage(t *testing.T) {
	env := newTestEnv(t)
	selector := NewSlotSelector(&stubMatcher{
		matchSlotFn: func(string, []matching.Candidate) (matching.Result, error) {
			return matching.Result{}, errors.New("model timeout")
		},
	})

	_, herr := selector.Select(context.Background(), "the first", []CandidateSlot{env.slotAt(26, 9, 0)}, env.loc)
	require.NotNil(t, herr)
	assert.Equal(t, FailureSystem, herr.Class)
}
