package nexhealth

import "time"

const (
	defaultBaseURL = "https://nexhealth.info"
	acceptHeader   = "application/vnd.Nexhealth+json;version=2"
)

// envelope is the NexHealth response wrapper shared by every endpoint.
type envelope[T any] struct {
	Code        bool     `json:"code"`
	Description string   `json:"description,omitempty"`
	Error       []string `json:"error,omitempty"`
	Data        T        `json:"data"`
	Count       int      `json:"count,omitempty"`
}

type authData struct {
	Token string `json:"token"`
}

// slotsEnvelope is the /appointment_slots response. Unlike the shared
// envelope it carries next_available_date at the top level.
type slotsEnvelope struct {
	Code              bool            `json:"code"`
	Description       string          `json:"description,omitempty"`
	Error             []string        `json:"error,omitempty"`
	Data              []providerSlots `json:"data"`
	NextAvailableDate string          `json:"next_available_date,omitempty"`
}

type providerSlots struct {
	LocationID int64      `json:"lid"`
	ProviderID int64      `json:"pid"`
	Slots      []slotJSON `json:"slots"`
}

type slotJSON struct {
	Time        string `json:"time"` // ISO-8601 with UTC offset
	OperatoryID int64  `json:"operatory_id,omitempty"`
}

type patientJSON struct {
	ID        int64      `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	Email     string     `json:"email,omitempty"`
	Bio       patientBio `json:"bio"`
}

type patientBio struct {
	DateOfBirth string `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	PhoneNumber string `json:"phone_number,omitempty"`
}

type patientsData struct {
	Patients []patientJSON `json:"patients"`
}

type createPatientData struct {
	User patientJSON `json:"user"`
}

type createPatientBody struct {
	Provider struct {
		ProviderID int64 `json:"provider_id"`
	} `json:"provider"`
	Patient struct {
		FirstName string     `json:"first_name"`
		LastName  string     `json:"last_name"`
		Email     string     `json:"email,omitempty"`
		Bio       patientBio `json:"bio"`
	} `json:"patient"`
}

type appointmentJSON struct {
	ID        int64  `json:"id"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type createAppointmentData struct {
	Appt appointmentJSON `json:"appt"`
}

type createAppointmentBody struct {
	Appt struct {
		PatientID   int64  `json:"patient_id"`
		ProviderID  int64  `json:"provider_id"`
		OperatoryID int64  `json:"operatory_id,omitempty"`
		StartTime   string `json:"start_time"`
		EndTime     string `json:"end_time"`
		Note        string `json:"note,omitempty"`
	} `json:"appt"`
}

// tokenState caches the bearer token from /authenticates.
type tokenState struct {
	value     string
	fetchedAt time.Time
}
