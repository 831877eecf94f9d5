package nexhealth

import (
	"fmt"
	"strings"

	"github.com/clearbook-ai/dental-voice-platform/internal/scheduling"
)

func apiError(op, description string, errs []string) error {
	msg := description
	if msg == "" && len(errs) > 0 {
		msg = errs[0]
	}
	if msg == "" {
		msg = "request rejected"
	}
	return fmt.Errorf("nexhealth: %s: %s", op, msg)
}

// classifyBookingError maps appointment-create failures onto the scheduling
// failure classes. NexHealth reports a lost slot race as an availability
// error on the requested window.
func classifyBookingError(description string, errs []string) error {
	msg := joinErrs(description, errs)
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "no longer available"),
		strings.Contains(lower, "not available"),
		strings.Contains(lower, "overlaps"),
		strings.Contains(lower, "already booked"):
		return fmt.Errorf("%w: %s", scheduling.ErrSlotTaken, msg)
	case strings.Contains(lower, "invalid"),
		strings.Contains(lower, "must be"),
		strings.Contains(lower, "required"):
		return fmt.Errorf("%w: %s", scheduling.ErrValidation, msg)
	default:
		return fmt.Errorf("nexhealth: appointments: %s", msg)
	}
}

// classifyCreatePatientError maps patient-create failures the same way.
func classifyCreatePatientError(description string, errs []string) error {
	msg := joinErrs(description, errs)
	lower := strings.ToLower(msg)

	switch {
	case strings.Contains(lower, "already exists"),
		strings.Contains(lower, "duplicate"),
		strings.Contains(lower, "has already been taken"):
		return fmt.Errorf("%w: %s", scheduling.ErrDuplicatePatient, msg)
	case strings.Contains(lower, "invalid"),
		strings.Contains(lower, "must be"),
		strings.Contains(lower, "required"),
		strings.Contains(lower, "blank"):
		return fmt.Errorf("%w: %s", scheduling.ErrValidation, msg)
	default:
		return fmt.Errorf("nexhealth: patients: %s", msg)
	}
}

func joinErrs(description string, errs []string) string {
	parts := make([]string, 0, len(errs)+1)
	if description != "" {
		parts = append(parts, description)
	}
	parts = append(parts, errs...)
	if len(parts) == 0 {
		return "request rejected"
	}
	return strings.Join(parts, "; ")
}
