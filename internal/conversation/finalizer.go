package conversation

import (
	"context"
	"fmt"
	"time"

	"github.com/clearbook-ai/dental-voice-platform/internal/scheduling"
	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

// BookingFinalizer performs the commit half of the two-phase booking: it
// checks the commit preconditions and issues the appointment-create call.
// Failure classification is the caller's branch point; a slot conflict is
// a recovery edge, not a failure.
type BookingFinalizer struct {
	client scheduling.Client
	logger *logging.Logger
}

func NewBookingFinalizer(client scheduling.Client, logger *logging.Logger) *BookingFinalizer {
	if client == nil {
		panic("conversation: scheduling client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingFinalizer{client: client, logger: logger}
}

// Commit books the selected slot. Missing preconditions are invariant
// violations: the dispatcher should never have let the call get here
// without them.
func (f *BookingFinalizer) Commit(ctx context.Context, state *ConversationState) (*scheduling.Appointment, *HandlerError) {
	if !state.ReadyToCommit() {
		return nil, invariantErr(
			"commit preconditions missing: slot=%v patient=%d duration=%d",
			state.Booking.SelectedSlot != nil,
			state.Patient.ExternalPatientID,
			state.Booking.DurationMins,
		)
	}

	slot := *state.Booking.SelectedSlot
	appt, err := f.client.CreateAppointment(ctx, scheduling.AppointmentRequest{
		PatientID:   state.Patient.ExternalPatientID,
		ProviderID:  slot.ProviderID,
		OperatoryID: slot.OperatoryID,
		LocationID:  slot.LocationID,
		StartTime:   slot.Time,
		EndTime:     slot.Time.Add(time.Duration(state.Booking.DurationMins) * time.Minute),
		Note:        bookingNote(state),
	})
	if err != nil {
		if scheduling.IsConflict(err) {
			f.logger.Info("booking lost slot race",
				"call_id", state.CallID,
				"slot_time", slot.Time,
			)
			return nil, newHandlerError(FailureConflict, "", err)
		}
		return nil, systemErr(fmt.Errorf("booking commit: %w", err))
	}

	f.logger.Info("booking confirmed",
		"call_id", state.CallID,
		"appointment_id", appt.ID,
		"slot_time", slot.Time,
	)
	return appt, nil
}

// bookingNote is advisory text for the front desk, never a control value.
func bookingNote(state *ConversationState) string {
	note := fmt.Sprintf("Booked by phone assistant: %s", state.Booking.TypeName)
	if state.Booking.PatientRequest != "" {
		note += fmt.Sprintf(" (caller asked for %q)", state.Booking.PatientRequest)
	}
	return note
}
