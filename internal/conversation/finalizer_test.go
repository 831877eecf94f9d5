package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearbook-ai/dental-voice-platform/internal/scheduling"
)

func commitReadyState(t *testing.T) (*ConversationState, CandidateSlot) {
	t.Helper()
	state, slots := offeringState(t)
	state.CurrentStage = StageAwaitingFinalConfirmation
	state.Booking.SelectedSlot = &slots[1]
	state.Booking.PatientRequest = "a cleaning sometime next week"
	state.Patient = PatientDetails{
		FirstName:           "Maria",
		LastName:            "Santos",
		DateOfBirth:         "1985-03-14",
		ExternalPatientID:   77,
		IsIdentityConfirmed: true,
	}
	return state, slots[1]
}

func TestCommitBooksSelectedSlot(t *testing.T) {
	state, slot := commitReadyState(t)
	client := &stubScheduling{}
	finalizer := NewBookingFinalizer(client, testLogger())

	appt, herr := finalizer.Commit(context.Background(), state)
	require.Nil(t, herr)
	require.NotNil(t, appt)

	req := client.lastApptReq
	assert.Equal(t, int64(77), req.PatientID)
	assert.Equal(t, slot.ProviderID, req.ProviderID)
	assert.Equal(t, slot.OperatoryID, req.OperatoryID)
	assert.True(t, req.StartTime.Equal(slot.Time))
	assert.True(t, req.EndTime.Equal(slot.Time.Add(30*time.Minute)))
	assert.Contains(t, req.Note, "Cleaning")
	assert.Contains(t, req.Note, "a cleaning sometime next week")
}

func TestCommitClassifiesSlotRaceAsConflict(t *testing.T) {
	state, _ := commitReadyState(t)
	finalizer := NewBookingFinalizer(&stubScheduling{
		createApptFn: func(scheduling.AppointmentRequest) (*scheduling.Appointment, error) {
			return nil, scheduling.ErrSlotTaken
		},
	}, testLogger())

	_, herr := finalizer.Commit(context.Background(), state)
	require.NotNil(t, herr)
	assert.Equal(t, FailureConflict, herr.Class)
}

func TestCommitClassifiesOtherFailuresAsSystem(t *testing.T) {
	state, _ := commitReadyState(t)
	finalizer := NewBookingFinalizer(&stubScheduling{
		createApptFn: func(scheduling.AppointmentRequest) (*scheduling.Appointment, error) {
			return nil, errors.New("gateway timeout")
		},
	}, testLogger())

	_, herr := finalizer.Commit(context.Background(), state)
	require.NotNil(t, herr)
	assert.Equal(t, FailureSystem, herr.Class)
}

func TestCommitRefusesIncompleteState(t *testing.T) {
	client := &stubScheduling{}
	finalizer := NewBookingFinalizer(client, testLogger())

	state, _ := commitReadyState(t)
	state.Patient.ExternalPatientID = 0
	_, herr := finalizer.Commit(context.Background(), state)
	require.NotNil(t, herr)
	assert.Equal(t, FailureInvariant, herr.Class)

	state, _ = commitReadyState(t)
	state.Booking.SelectedSlot = nil
	_, herr = finalizer.Commit(context.Background(), state)
	require.NotNil(t, herr)
	assert.Equal(t, FailureInvariant, herr.Class)

	assert.Zero(t, client.apptCreates, "no commit attempt on missing preconditions")
}
