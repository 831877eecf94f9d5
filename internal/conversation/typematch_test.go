package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearbook-ai/dental-voice-platform/internal/matching"
	"github.com/clearbook-ai/dental-voice-platform/internal/practice"
)

func TestTypeMatcherResolvesTypeAndEligibility(t *testing.T) {
	dir := testDirectory()
	var seen []matching.Candidate
	tm := NewTypeMatcher(&stubMatcher{
		matchTypeFn: func(_ string, candidates []matching.Candidate) (matching.Result, error) {
			seen = candidates
			return matching.Result{ID: "1", Matched: true}, nil
		},
	}, testLogger())

	match, herr := tm.Match(context.Background(), "I need a cleaning", dir)
	require.Nil(t, herr)
	require.NotNil(t, match)
	assert.Equal(t, "Cleaning", match.Type.Name)
	assert.Equal(t, []int64{10}, match.EligibleProviderIDs)
	assert.Equal(t, []int64{100}, match.EligibleOperatoryIDs)

	// Only bookable types go to the matcher, with keywords as hints.
	require.Len(t, seen, 1)
	assert.Equal(t, "Cleaning", seen[0].Label)
	assert.Contains(t, seen[0].Hints, "checkup")
}

func TestTypeMatcherNoMatchMeansReask(t *testing.T) {
	tm := NewTypeMatcher(&stubMatcher{
		matchTypeFn: func(string, []matching.Candidate) (matching.Result, error) {
			return matching.Result{}, nil
		},
	}, testLogger())

	match, herr := tm.Match(context.Background(), "I want to talk to a human", testDirectory())
	assert.Nil(t, herr)
	assert.Nil(t, match)
}

func TestTypeMatcherNoBookableTypesIsConfiguration(t *testing.T) {
	dir := testDirectory()
	dir.AppointmentTypes = []practice.AppointmentType{
		{ID: 2, Name: "Implant Consult", Bookable: false},
	}
	tm := NewTypeMatcher(&stubMatcher{}, testLogger())

	_, herr := tm.Match(context.Background(), "cleaning", dir)
	require.NotNil(t, herr)
	assert.Equal(t, FailureConfiguration, herr.Class)
	assert.Equal(t, CodeNoAppointmentTypes, herr.Code)
}

func TestTypeMatcherNoProviderIsConfiguration(t *testing.T) {
	dir := testDirectory()
	dir.Providers[0].Active = false
	tm := NewTypeMatcher(&stubMatcher{
		matchTypeFn: func(string, []matching.Candidate) (matching.Result, error) {
			return matching.Result{ID: "1", Matched: true}, nil
		},
	}, testLogger())

	_, herr := tm.Match(context.Background(), "cleaning", dir)
	require.NotNil(t, herr)
	assert.Equal(t, FailureConfiguration, herr.Class)
	assert.Equal(t, CodeNoProviderForType, herr.Code)
}

func TestTypeMatcherRejectsUnknownID(t *testing.T) {
	tests := []string{"999", "cleaning"}
	for _, id := range tests {
		tm := NewTypeMatcher(&stubMatcher{
			matchTypeFn: func(string, []matching.Candidate) (matching.Result, error) {
				return matching.Result{ID: id, Matched: true}, nil
			},
		}, testLogger())

		_, herr := tm.Match(context.Background(), "cleaning", testDirectory())
		require.NotNil(t, herr, id)
		assert.Equal(t, FailureInvariant, herr.Class, id)
	}
}
