package conversation

import (
	"context"
	"strconv"
	"time"

	"github.com/clearbook-ai/dental-voice-platform/internal/matching"
)

// SlotSelector resolves a spoken choice against the exact offered list.
// It is a selection function, never a time parser: the result is always
// one of the given slots or nothing.
type SlotSelector struct {
	matcher matching.Matcher
}

func NewSlotSelector(matcher matching.Matcher) *SlotSelector {
	if matcher == nil {
		panic("conversation: matcher required")
	}
	return &SlotSelector{matcher: matcher}
}

// Select returns the chosen slot, or (nil, nil) when the phrase did not
// unambiguously pick one; the caller then re-offers the exact times.
func (s *SlotSelector) Select(ctx context.Context, phrase string, presented []CandidateSlot, loc *time.Location) (*CandidateSlot, *HandlerError) {
	if len(presented) == 0 {
		return nil, invariantErr("slot selection with no presented slots")
	}

	candidates := make([]matching.Candidate, 0, len(presented))
	for i, slot := range presented {
		candidates = append(candidates, matching.Candidate{
			ID:    strconv.Itoa(i),
			Label: SpeakSlot(slot, loc),
			Hints: []string{ordinalPosition(i, len(presented))},
		})
	}

	result, err := s.matcher.MatchSlot(ctx, phrase, candidates)
	if err != nil {
		return nil, systemErr(err)
	}
	if !result.Matched {
		return nil, nil
	}

	idx, err := strconv.Atoi(result.ID)
	if err != nil || idx < 0 || idx >= len(presented) {
		return nil, invariantErr("matcher returned slot index %q outside offered set", result.ID)
	}
	chosen := presented[idx]
	return &chosen, nil
}

// ordinalPosition gives the matcher a positional hint so "the first one"
// or "the last one" resolves without time parsing.
func ordinalPosition(i, n int) string {
	switch {
	case i == 0:
		return "the first one, the earliest"
	case i == n-1:
		return "the last one, the latest"
	default:
		return "the " + ordinal(i+1) + " one"
	}
}
