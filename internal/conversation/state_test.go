package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stagePtr(s Stage) *Stage { return &s }

func offeringState(t *testing.T) (*ConversationState, []CandidateSlot) {
	t.Helper()
	loc := newYork(t)
	slots := []CandidateSlot{
		{Time: time.Date(2026, time.August, 26, 9, 0, 0, 0, loc), ProviderID: 10, OperatoryID: 100, LocationID: 500},
		{Time: time.Date(2026, time.August, 26, 10, 30, 0, 0, loc), ProviderID: 10, OperatoryID: 100, LocationID: 500},
		{Time: time.Date(2026, time.August, 26, 15, 0, 0, 0, loc), ProviderID: 10, OperatoryID: 100, LocationID: 500},
	}
	state := NewConversationState("call-1", 1)
	state.CurrentStage = StageAwaitingSlotConfirmation
	state.Booking = AppointmentBooking{
		AppointmentTypeID:   1,
		TypeName:            "Cleaning",
		SpokenName:          "cleaning",
		DurationMins:        30,
		EligibleProviderIDs: []int64{10},
		PresentedSlots:      slots,
	}
	return state, slots
}

func TestApplySelectedSlotMustBePresented(t *testing.T) {
	state, slots := offeringState(t)

	rogue := slots[0]
	rogue.Time = rogue.Time.Add(15 * time.Minute)
	_, err := Apply(state, StateUpdate{SelectedSlot: &rogue})
	require.Error(t, err)
	var herr *HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, FailureInvariant, herr.Class)

	next, err := Apply(state, StateUpdate{SelectedSlot: &slots[1]})
	require.NoError(t, err)
	require.NotNil(t, next.Booking.SelectedSlot)
	assert.True(t, next.Booking.SelectedSlot.Same(slots[1]))
}

func TestApplyRejectsIllegalTransition(t *testing.T) {
	state := NewConversationState("call-1", 1)

	_, err := Apply(state, StateUpdate{Stage: stagePtr(StageBookingConfirmed)})
	require.Error(t, err)
	var herr *HandlerError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, FailureInvariant, herr.Class)

	next, err := Apply(state, StateUpdate{Stage: stagePtr(StageOfferingSlots)})
	require.NoError(t, err)
	assert.Equal(t, StageOfferingSlots, next.CurrentStage)
}

func TestApplySlotConfirmationNeedsPresentedSlots(t *testing.T) {
	state := NewConversationState("call-1", 1)
	state.CurrentStage = StageOfferingSlots

	_, err := Apply(state, StateUpdate{Stage: stagePtr(StageAwaitingSlotConfirmation)})
	require.Error(t, err)

	_, err = Apply(state, StateUpdate{
		Stage: stagePtr(StageAwaitingSlotConfirmation),
		PresentedSlots: []CandidateSlot{
			{Time: time.Now(), ProviderID: 10, LocationID: 500},
		},
	})
	assert.NoError(t, err)
}

func TestApplyPresentedSlotsReplacementClearsSelection(t *testing.T) {
	state, slots := offeringState(t)
	state.Booking.SelectedSlot = &slots[0]

	fresh := []CandidateSlot{slots[2]}
	next, err := Apply(state, StateUpdate{PresentedSlots: fresh})
	require.NoError(t, err)
	assert.Nil(t, next.Booking.SelectedSlot)
	require.Len(t, next.Booking.PresentedSlots, 1)
	assert.True(t, next.Booking.PresentedSlots[0].Same(slots[2]))
}

func TestApplyTypeSelectionInvalidatesOffers(t *testing.T) {
	state, slots := offeringState(t)
	state.Booking.SelectedSlot = &slots[0]
	state.CurrentStage = StageAwaitingSlotConfirmation

	next, err := Apply(state, StateUpdate{
		Stage: stagePtr(StageOfferingSlots),
		TypeSelection: &TypeSelection{
			AppointmentTypeID:   2,
			TypeName:            "Filling",
			SpokenName:          "filling",
			DurationMins:        45,
			EligibleProviderIDs: []int64{10},
		},
	})
	require.NoError(t, err)
	assert.Nil(t, next.Booking.SelectedSlot)
	assert.Empty(t, next.Booking.PresentedSlots)
	assert.Equal(t, int64(2), next.Booking.AppointmentTypeID)
	assert.Equal(t, 45, next.Booking.DurationMins)
}

func TestApplyRemovePresentedSlot(t *testing.T) {
	state, slots := offeringState(t)

	next, err := Apply(state, StateUpdate{RemovePresentedSlot: &slots[1]})
	require.NoError(t, err)
	require.Len(t, next.Booking.PresentedSlots, 2)
	for _, s := range next.Booking.PresentedSlots {
		assert.False(t, s.Same(slots[1]))
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	state, slots := offeringState(t)
	state.Booking.SelectedSlot = &slots[0]

	_, err := Apply(state, StateUpdate{
		Stage:               stagePtr(StageOfferingSlots),
		RemovePresentedSlot: &slots[0],
		ClearSelectedSlot:   true,
	})
	require.NoError(t, err)

	assert.Equal(t, StageAwaitingSlotConfirmation, state.CurrentStage)
	assert.Len(t, state.Booking.PresentedSlots, 3)
	require.NotNil(t, state.Booking.SelectedSlot)
	assert.True(t, state.Booking.SelectedSlot.Same(slots[0]))
}

func TestApplyNilState(t *testing.T) {
	_, err := Apply(nil, StateUpdate{})
	assert.Error(t, err)
}

func TestReadyToCommit(t *testing.T) {
	state, slots := offeringState(t)
	assert.False(t, state.ReadyToCommit())

	state.Booking.SelectedSlot = &slots[0]
	assert.False(t, state.ReadyToCommit())

	state.Patient.ExternalPatientID = 77
	assert.True(t, state.ReadyToCommit())

	state.Booking.DurationMins = 0
	assert.False(t, state.ReadyToCommit())
}
