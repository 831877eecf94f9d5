package scheduling

import "errors"

// Failure classes surfaced by scheduling-system adapters. The conversation
// engine branches recovery on these, so adapters must map their wire errors
// onto this set rather than returning raw transport errors.
var (
	// ErrSlotTaken means another actor booked the slot between search and
	// commit. Recoverable by offering a different time.
	ErrSlotTaken = errors.New("scheduling: slot no longer available")

	// ErrDuplicatePatient means the system rejected a create as a duplicate.
	ErrDuplicatePatient = errors.New("scheduling: duplicate patient")

	// ErrValidation means the request was rejected as malformed or
	// inconsistent (bad demographics, provider not bookable, etc.).
	ErrValidation = errors.New("scheduling: validation rejected")
)

// IsConflict reports whether err is the slot-taken race.
func IsConflict(err error) bool {
	return errors.Is(err, ErrSlotTaken)
}
