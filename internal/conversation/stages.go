package conversation

// Stage is the position of a call in the booking flow. Transitions form a
// directed graph with exactly two backward edges: the change-of-mind edge
// and the booking-conflict edge, both landing back on slot selection.
type Stage string

const (
	StageCollectingRequest         Stage = "COLLECTING_REQUEST"
	StageOfferingSlots             Stage = "OFFERING_SLOTS"
	StageAwaitingSlotConfirmation  Stage = "AWAITING_SLOT_CONFIRMATION"
	StageCollectingIdentity        Stage = "COLLECTING_IDENTITY"
	StageAwaitingFinalConfirmation Stage = "AWAITING_FINAL_CONFIRMATION"
	StageNoAvailability            Stage = "NO_AVAILABILITY"
	StageBookingConfirmed          Stage = "BOOKING_CONFIRMED"
)

// Tool names accepted from the voice front end.
const (
	ToolRequestAppointment    = "request_appointment"
	ToolSearchSlots           = "search_slots"
	ToolSelectSlot            = "select_slot"
	ToolProvidePatientDetails = "provide_patient_details"
	ToolConfirmBooking        = "confirm_booking"
	ToolEndCall               = "end_call"
)

// toolStages is the authoritative (toolName, stage) legality table. A tool
// invoked outside its stages is rejected at the dispatcher with a
// structured error, never silently ignored.
var toolStages = map[string][]Stage{
	ToolRequestAppointment: {
		StageCollectingRequest,
		StageNoAvailability,
	},
	ToolSearchSlots: {
		StageOfferingSlots,
		StageAwaitingSlotConfirmation,
		StageNoAvailability,
	},
	ToolSelectSlot: {
		StageAwaitingSlotConfirmation,
	},
	ToolProvidePatientDetails: {
		StageCollectingIdentity,
	},
	ToolConfirmBooking: {
		StageAwaitingFinalConfirmation,
	},
	ToolEndCall: {
		StageCollectingRequest,
		StageOfferingSlots,
		StageAwaitingSlotConfirmation,
		StageCollectingIdentity,
		StageAwaitingFinalConfirmation,
		StageNoAvailability,
		StageBookingConfirmed,
	},
}

// toolAllowed reports whether tool may run in the given stage.
func toolAllowed(tool string, stage Stage) bool {
	for _, s := range toolStages[tool] {
		if s == stage {
			return true
		}
	}
	return false
}

// knownTool reports whether the tool name is in the contract at all.
func knownTool(tool string) bool {
	_, ok := toolStages[tool]
	return ok
}

// stageEdges lists the legal forward edges plus the two recovery edges.
// Self-transitions (re-prompts) are always legal and not listed.
var stageEdges = map[Stage][]Stage{
	StageCollectingRequest: {
		StageOfferingSlots,
	},
	StageOfferingSlots: {
		StageAwaitingSlotConfirmation,
		StageNoAvailability,
	},
	StageAwaitingSlotConfirmation: {
		StageCollectingIdentity,
		StageAwaitingFinalConfirmation,
		StageOfferingSlots,
		StageNoAvailability,
	},
	StageCollectingIdentity: {
		StageAwaitingFinalConfirmation,
	},
	StageAwaitingFinalConfirmation: {
		StageBookingConfirmed,
		// Change-of-mind and conflict edges.
		StageAwaitingSlotConfirmation,
		StageOfferingSlots,
		StageNoAvailability,
	},
	StageNoAvailability: {
		StageOfferingSlots,
		StageAwaitingSlotConfirmation,
	},
	StageBookingConfirmed: {},
}

// validTransition reports whether the state may move from one stage to
// another. Staying put is always valid.
func validTransition(from, to Stage) bool {
	if from == to {
		return true
	}
	for _, s := range stageEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// requiresSlotSelection reports whether the stage needs a non-empty
// presentedSlots list to be meaningful.
func requiresSlotSelection(stage Stage) bool {
	return stage == StageAwaitingSlotConfirmation
}

// Terminal reports whether the stage ends the booking flow.
func (s Stage) Terminal() bool {
	return s == StageBookingConfirmed
}
