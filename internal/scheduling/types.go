// Package scheduling defines the narrow interface the conversation engine
// uses to talk to the external scheduling system. The system of record for
// providers, operatories, patients, and appointments lives behind this
// interface (NexHealth in production, a fake in tests).
package scheduling

import (
	"context"
	"time"
)

// Slot is one open appointment window offered by the scheduling system.
type Slot struct {
	// Time is the slot start with the practice's UTC offset.
	Time        time.Time `json:"time"`
	ProviderID  int64     `json:"provider_id"`
	OperatoryID int64     `json:"operatory_id,omitempty"`
	LocationID  int64     `json:"location_id"`
}

// SlotSearchRequest asks for open windows on a single date.
type SlotSearchRequest struct {
	Date         time.Time
	DurationMins int
	ProviderIDs  []int64
	OperatoryIDs []int64
	LocationID   int64
}

// SlotSearchResult carries the open windows plus an optional hint for the
// next date with any availability when the requested date is empty.
type SlotSearchResult struct {
	Slots             []Slot
	NextAvailableDate *time.Time
}

// Patient is the demographic record held by the scheduling system.
type Patient struct {
	ID          int64
	FirstName   string
	LastName    string
	DateOfBirth string // YYYY-MM-DD
	Phone       string
	Email       string
}

// PatientSearchQuery searches by name; DOB filtering happens locally because
// the external search treats it as a fuzzy hint, not a key.
type PatientSearchQuery struct {
	Name       string
	LocationID int64
}

// CreatePatientRequest creates a new patient record. The scheduling system
// requires a provider context for creation.
type CreatePatientRequest struct {
	Patient    Patient
	ProviderID int64
	LocationID int64
}

// AppointmentRequest books a concrete slot.
type AppointmentRequest struct {
	PatientID   int64
	ProviderID  int64
	OperatoryID int64
	LocationID  int64
	StartTime   time.Time
	EndTime     time.Time
	Note        string
}

// Appointment is the booked result.
type Appointment struct {
	ID        int64
	StartTime time.Time
	EndTime   time.Time
}

// Client is implemented by scheduling-system adapters.
type Client interface {
	GetAppointmentSlots(ctx context.Context, req SlotSearchRequest) (*SlotSearchResult, error)
	SearchPatients(ctx context.Context, q PatientSearchQuery) ([]Patient, error)
	CreatePatient(ctx context.Context, req CreatePatientRequest) (*Patient, error)
	CreateAppointment(ctx context.Context, req AppointmentRequest) (*Appointment, error)
}
