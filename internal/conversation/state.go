// Package conversation holds the per-call booking state machine: the
// authoritative conversation state, the stage dispatcher, and the
// components that turn tool calls into scheduling-system operations.
package conversation

import (
	"fmt"
	"time"
)

// CandidateSlot is one open time window offered to the caller. Identity is
// time+provider+operatory; lists of these are replaced wholesale by each
// search and discarded once a booking attempt resolves.
type CandidateSlot struct {
	Time        time.Time `json:"time"`
	ProviderID  int64     `json:"providerId"`
	OperatoryID int64     `json:"operatoryId,omitempty"`
	LocationID  int64     `json:"locationId"`
}

// Same reports slot identity.
func (s CandidateSlot) Same(o CandidateSlot) bool {
	return s.Time.Equal(o.Time) && s.ProviderID == o.ProviderID && s.OperatoryID == o.OperatoryID
}

// PatientDetails is the caller's identity as collected during the call.
// ExternalPatientID is filled by the identity resolver at commit time.
type PatientDetails struct {
	FirstName           string `json:"firstName"`
	LastName            string `json:"lastName"`
	DateOfBirth         string `json:"dateOfBirth"` // YYYY-MM-DD
	Phone               string `json:"phone,omitempty"`
	Email               string `json:"email,omitempty"`
	ExternalPatientID   int64  `json:"externalPatientId,omitempty"`
	IsIdentityConfirmed bool   `json:"isIdentityConfirmed"`
}

// FullName joins first and last name for patient search.
func (p PatientDetails) FullName() string {
	return fmt.Sprintf("%s %s", p.FirstName, p.LastName)
}

// AppointmentBooking accumulates what the caller is booking.
type AppointmentBooking struct {
	AppointmentTypeID    int64           `json:"appointmentTypeId,omitempty"`
	TypeName             string          `json:"typeName,omitempty"`
	SpokenName           string          `json:"spokenName,omitempty"`
	DurationMins         int             `json:"durationMins,omitempty"`
	EligibleProviderIDs  []int64         `json:"eligibleProviderIds,omitempty"`
	EligibleOperatoryIDs []int64         `json:"eligibleOperatoryIds,omitempty"`
	PatientRequest       string          `json:"patientRequest,omitempty"`
	LastTimePreference   string          `json:"lastTimePreference,omitempty"`
	LastSearchDate       string          `json:"lastSearchDate,omitempty"` // YYYY-MM-DD
	PresentedSlots       []CandidateSlot `json:"presentedSlots,omitempty"`
	SelectedSlot         *CandidateSlot  `json:"selectedSlot,omitempty"`
}

// ConversationState is the single source of truth for one call. It is
// mutated only through Apply.
type ConversationState struct {
	CallID       string             `json:"callId"`
	PracticeID   int64              `json:"practiceId"`
	CurrentStage Stage              `json:"currentStage"`
	Patient      PatientDetails     `json:"patientDetails"`
	Booking      AppointmentBooking `json:"appointmentBooking"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// NewConversationState creates the initial state for a call.
func NewConversationState(callID string, practiceID int64) *ConversationState {
	return &ConversationState{
		CallID:       callID,
		PracticeID:   practiceID,
		CurrentStage: StageCollectingRequest,
		UpdatedAt:    time.Now().UTC(),
	}
}

// TypeSelection is the booking fields set when an appointment type matches.
type TypeSelection struct {
	AppointmentTypeID    int64
	TypeName             string
	SpokenName           string
	DurationMins         int
	EligibleProviderIDs  []int64
	EligibleOperatoryIDs []int64
	PatientRequest       string
}

// StateUpdate is the partial update a handler returns. Fields left at
// their zero value are not applied.
type StateUpdate struct {
	Stage *Stage

	Patient *PatientDetails

	TypeSelection  *TypeSelection
	TimePreference *string
	SearchDate     *string

	// PresentedSlots, when non-nil, replaces the offered list.
	PresentedSlots []CandidateSlot

	SelectedSlot      *CandidateSlot
	ClearSelectedSlot bool

	// RemovePresentedSlot drops one slot from the offered list, used on
	// a booking conflict so the lost time is not re-offered.
	RemovePresentedSlot *CandidateSlot
}

// Apply validates a partial update against the state invariants and
// returns the new state. The input state is never mutated; a rejected
// update returns an invariant-class error and no state.
func Apply(state *ConversationState, update StateUpdate) (*ConversationState, error) {
	if state == nil {
		return nil, invariantErr("apply on nil state")
	}

	next := *state
	next.Booking.EligibleProviderIDs = append([]int64(nil), state.Booking.EligibleProviderIDs...)
	next.Booking.EligibleOperatoryIDs = append([]int64(nil), state.Booking.EligibleOperatoryIDs...)
	next.Booking.PresentedSlots = append([]CandidateSlot(nil), state.Booking.PresentedSlots...)
	if state.Booking.SelectedSlot != nil {
		sel := *state.Booking.SelectedSlot
		next.Booking.SelectedSlot = &sel
	}

	if update.Patient != nil {
		next.Patient = *update.Patient
	}

	if update.TypeSelection != nil {
		ts := update.TypeSelection
		next.Booking.AppointmentTypeID = ts.AppointmentTypeID
		next.Booking.TypeName = ts.TypeName
		next.Booking.SpokenName = ts.SpokenName
		next.Booking.DurationMins = ts.DurationMins
		next.Booking.EligibleProviderIDs = append([]int64(nil), ts.EligibleProviderIDs...)
		next.Booking.EligibleOperatoryIDs = append([]int64(nil), ts.EligibleOperatoryIDs...)
		next.Booking.PatientRequest = ts.PatientRequest
		// A new appointment type invalidates any offered times.
		next.Booking.PresentedSlots = nil
		next.Booking.SelectedSlot = nil
	}

	if update.TimePreference != nil {
		next.Booking.LastTimePreference = *update.TimePreference
	}
	if update.SearchDate != nil {
		next.Booking.LastSearchDate = *update.SearchDate
	}

	if update.PresentedSlots != nil {
		next.Booking.PresentedSlots = append([]CandidateSlot(nil), update.PresentedSlots...)
		next.Booking.SelectedSlot = nil
	}

	if update.RemovePresentedSlot != nil {
		kept := next.Booking.PresentedSlots[:0]
		for _, s := range next.Booking.PresentedSlots {
			if !s.Same(*update.RemovePresentedSlot) {
				kept = append(kept, s)
			}
		}
		next.Booking.PresentedSlots = kept
	}

	if update.ClearSelectedSlot {
		next.Booking.SelectedSlot = nil
	}

	if update.SelectedSlot != nil {
		found := false
		for _, s := range next.Booking.PresentedSlots {
			if s.Same(*update.SelectedSlot) {
				found = true
				break
			}
		}
		if !found {
			return nil, invariantErr("selected slot %s is not among presented slots", update.SelectedSlot.Time)
		}
		sel := *update.SelectedSlot
		next.Booking.SelectedSlot = &sel
	}

	if update.Stage != nil {
		if !validTransition(state.CurrentStage, *update.Stage) {
			return nil, invariantErr("illegal stage transition %s -> %s", state.CurrentStage, *update.Stage)
		}
		next.CurrentStage = *update.Stage
	}

	if requiresSlotSelection(next.CurrentStage) && len(next.Booking.PresentedSlots) == 0 {
		return nil, invariantErr("stage %s requires presented slots", next.CurrentStage)
	}

	next.UpdatedAt = time.Now().UTC()
	return &next, nil
}

// ReadyToCommit reports whether the state carries everything a booking
// commit needs. A false here at commit time is an invariant violation.
func (s *ConversationState) ReadyToCommit() bool {
	return s.Booking.SelectedSlot != nil &&
		s.Patient.ExternalPatientID != 0 &&
		s.Booking.DurationMins > 0
}
