package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/clearbook-ai/dental-voice-platform/internal/matching"
	"github.com/clearbook-ai/dental-voice-platform/internal/practice"
)

// handlerOutcome is what every stage handler returns. The dispatcher
// applies the update and persists the result unconditionally, so stage
// reversions on failure take effect.
type handlerOutcome struct {
	update    StateUpdate
	message   string
	err       *HandlerError
	end       bool
	endReason string
}

// HandleToolCall is the single entry point of the tool-call contract:
// load state, check legality, run the handler, persist, respond. A
// previously seen tool call id replays its recorded outcome without
// re-executing anything.
func (s *Service) HandleToolCall(ctx context.Context, call ToolCall) ToolResult {
	started := s.now()

	if call.CallID == "" {
		return ToolResult{
			Message: msgGenericSorry,
			Error:   &ToolError{Class: FailureInvariant},
		}
	}

	unlock := s.store.Lock(call.CallID)
	defer unlock()

	if replay := s.replayFromLedger(ctx, call); replay != nil {
		return *replay
	}

	result := s.dispatch(ctx, call)

	s.recordToLedger(ctx, call, result)

	outcome := "ok"
	if result.Error != nil {
		outcome = string(result.Error.Class)
	}
	s.metrics.ObserveToolCall(call.Name, outcome, time.Since(started).Seconds())
	return result
}

func (s *Service) replayFromLedger(ctx context.Context, call ToolCall) *ToolResult {
	if s.ledger == nil || call.ID == "" {
		return nil
	}
	entry, err := s.ledger.Get(ctx, call.ID)
	if err != nil {
		// A ledger outage must not take the call down; the handler path
		// is still safe because state transitions are checked.
		s.logger.Warn("ledger lookup failed, proceeding without replay protection",
			"tool_call_id", call.ID, "error", err)
		return nil
	}
	if entry == nil {
		return nil
	}

	s.logger.Info("replaying recorded tool call outcome", "tool_call_id", call.ID)
	result := &ToolResult{Message: entry.Message, Stage: Stage(entry.Stage)}
	if entry.ErrorClass != "" {
		result.Error = &ToolError{Class: FailureClass(entry.ErrorClass), Code: entry.ErrorCode}
	}
	return result
}

func (s *Service) recordToLedger(ctx context.Context, call ToolCall, result ToolResult) {
	if s.ledger == nil || call.ID == "" {
		return
	}
	entry := &LedgerEntry{
		ToolCallID: call.ID,
		CallID:     call.CallID,
		Message:    result.Message,
		Stage:      string(result.Stage),
	}
	if result.Error != nil {
		entry.ErrorClass = string(result.Error.Class)
		entry.ErrorCode = result.Error.Code
	}
	if err := s.ledger.Record(ctx, entry); err != nil {
		s.logger.Warn("ledger record failed", "tool_call_id", call.ID, "error", err)
	}
}

func (s *Service) dispatch(ctx context.Context, call ToolCall) (result ToolResult) {
	// A panic escaping a handler is a defect; it must still leave the
	// caller with a spoken response.
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("handler panicked",
				"call_id", call.CallID,
				"tool", call.Name,
				"panic", fmt.Sprint(r),
			)
			result = ToolResult{
				Message: msgGenericSorry,
				Error:   &ToolError{Class: FailureInvariant},
			}
		}
	}()

	if !knownTool(call.Name) {
		return ToolResult{
			Message: msgGenericSorry,
			Error:   &ToolError{Class: FailureInvariant, Code: CodeUnknownTool},
		}
	}

	dir, err := s.directory.Directory(ctx)
	if err != nil {
		s.logger.Error("practice directory load failed", "error", err)
		return ToolResult{
			Message: msgStaffFollowUp,
			Error:   &ToolError{Class: FailureSystem},
		}
	}

	state, err := s.store.Load(ctx, call.CallID)
	switch {
	case errors.Is(err, ErrStateNotFound):
		state = NewConversationState(call.CallID, dir.Practice.ID)
	case err != nil:
		s.logger.Error("state load failed", "call_id", call.CallID, "error", err)
		return ToolResult{
			Message: msgStaffFollowUp,
			Error:   &ToolError{Class: FailureSystem},
		}
	}

	if !toolAllowed(call.Name, state.CurrentStage) {
		s.logger.Warn("tool not allowed in stage",
			"call_id", call.CallID,
			"tool", call.Name,
			"stage", state.CurrentStage,
		)
		return ToolResult{
			Message: stagePrompt(state),
			Stage:   state.CurrentStage,
			Error:   &ToolError{Class: FailureUserAmbiguity, Code: CodeToolNotAllowed},
		}
	}

	outcome := s.invoke(ctx, dir, state, call)

	next, applyErr := Apply(state, outcome.update)
	if applyErr != nil {
		s.logger.Error("state update rejected",
			"call_id", call.CallID,
			"tool", call.Name,
			"error", applyErr,
		)
		next = state
		outcome.message = msgGenericSorry
		outcome.err = invariantErr("rejected update: %v", applyErr)
	}

	if outcome.end {
		if s.archive != nil {
			if err := s.archive.Archive(ctx, next, outcome.endReason); err != nil {
				s.logger.Error("call archive failed", "call_id", call.CallID, "error", err)
			}
		}
		if err := s.store.Delete(ctx, call.CallID); err != nil {
			s.logger.Error("state delete failed", "call_id", call.CallID, "error", err)
		}
	} else if err := s.store.Save(ctx, next); err != nil {
		// The response still goes out; the next tool call re-anchors.
		s.logger.Error("state save failed", "call_id", call.CallID, "error", err)
	}

	result = ToolResult{Message: outcome.message, Stage: next.CurrentStage}
	if outcome.err != nil {
		result.Error = &ToolError{Class: outcome.err.Class, Code: outcome.err.Code}
		if outcome.err.Class == FailureInvariant || outcome.err.Class == FailureSystem {
			s.logger.Error("handler failure",
				"call_id", call.CallID,
				"tool", call.Name,
				"class", outcome.err.Class,
				"error", outcome.err,
			)
		}
	}
	return result
}

func (s *Service) invoke(ctx context.Context, dir *practice.Directory, state *ConversationState, call ToolCall) handlerOutcome {
	switch call.Name {
	case ToolRequestAppointment:
		return s.handleRequestAppointment(ctx, dir, state, call.Arguments)
	case ToolSearchSlots:
		return s.handleSearchSlots(ctx, dir, state, call.Arguments)
	case ToolSelectSlot:
		return s.handleSelectSlot(ctx, dir, state, call.Arguments)
	case ToolProvidePatientDetails:
		return s.handleProvidePatientDetails(ctx, dir, state, call.Arguments)
	case ToolConfirmBooking:
		return s.handleConfirmBooking(ctx, dir, state, call.Arguments)
	case ToolEndCall:
		return s.handleEndCall(ctx, state, call.Arguments)
	default:
		return handlerOutcome{
			message: msgGenericSorry,
			err:     &HandlerError{Class: FailureInvariant, Code: CodeUnknownTool},
		}
	}
}

func (s *Service) handleRequestAppointment(ctx context.Context, dir *practice.Directory, state *ConversationState, raw json.RawMessage) handlerOutcome {
	var args requestAppointmentArgs
	_ = json.Unmarshal(raw, &args)
	request := strings.TrimSpace(args.Request)
	if request == "" {
		return handlerOutcome{
			message: "What kind of appointment can I set up for you today?",
			err:     &HandlerError{Class: FailureUserAmbiguity},
		}
	}

	match, herr := s.typeMatcher.Match(ctx, request, dir)
	if herr != nil {
		return s.failureOutcome(herr, StateUpdate{})
	}
	if match == nil {
		names := make([]string, 0, len(dir.BookableTypes()))
		for _, at := range dir.BookableTypes() {
			names = append(names, at.Name)
		}
		return handlerOutcome{
			message: fmt.Sprintf("I want to make sure I book the right visit. We offer %s. Which would you like?", joinSpoken(names)),
			err:     &HandlerError{Class: FailureUserAmbiguity},
		}
	}

	stage := StageOfferingSlots
	return handlerOutcome{
		update: StateUpdate{
			Stage: &stage,
			TypeSelection: &TypeSelection{
				AppointmentTypeID:    match.Type.ID,
				TypeName:             match.Type.Name,
				SpokenName:           strings.ToLower(match.Type.Name),
				DurationMins:         match.Type.DurationMins,
				EligibleProviderIDs:  match.EligibleProviderIDs,
				EligibleOperatoryIDs: match.EligibleOperatoryIDs,
				PatientRequest:       request,
			},
		},
		message: fmt.Sprintf("Of course, a %s. What day works best for you?", strings.ToLower(match.Type.Name)),
	}
}

func (s *Service) handleSearchSlots(ctx context.Context, dir *practice.Directory, state *ConversationState, raw json.RawMessage) handlerOutcome {
	var args searchSlotsArgs
	_ = json.Unmarshal(raw, &args)

	loc, err := dir.Practice.Location()
	if err != nil {
		return s.failureOutcome(systemErr(err), StateUpdate{})
	}

	date, derr := NormalizeDate(args.Date, s.now(), loc)
	if derr != nil {
		return handlerOutcome{
			message: "Which day would you like to come in? You can say a date like September 3rd, or a day like next Tuesday.",
			err:     &HandlerError{Class: FailureUserAmbiguity},
		}
	}

	pref := ParseTimePreference(args.TimePreference)
	return s.searchAndOffer(ctx, dir, state, date, pref, loc)
}

// searchAndOffer runs one slot search and builds the offer or the
// no-availability response. Shared by search_slots and the
// change-of-mind path in confirm_booking.
func (s *Service) searchAndOffer(ctx context.Context, dir *practice.Directory, state *ConversationState, date time.Time, pref TimePreference, loc *time.Location) handlerOutcome {
	outcome, herr := s.slotSearcher.Search(
		ctx,
		date,
		state.Booking.DurationMins,
		state.Booking.EligibleProviderIDs,
		state.Booking.EligibleOperatoryIDs,
		dir.Practice.LocationID,
		pref,
		loc,
	)
	if herr != nil {
		return s.failureOutcome(herr, StateUpdate{})
	}

	dateStr := date.Format("2006-01-02")
	prefStr := string(pref)
	update := StateUpdate{
		SearchDate:        &dateStr,
		TimePreference:    &prefStr,
		ClearSelectedSlot: true,
	}

	if len(outcome.Slots) == 0 {
		stage := StageNoAvailability
		update.Stage = &stage
		update.PresentedSlots = []CandidateSlot{}

		msg := fmt.Sprintf("I'm sorry, I don't see any openings around %s.", SpeakDate(date, loc))
		if outcome.NextAvailableDate != nil {
			msg += fmt.Sprintf(" The next available day looks like %s. Would you like me to check that day, or try a different date?",
				SpeakDate(*outcome.NextAvailableDate, loc))
		} else {
			msg += " Would you like me to try a different date?"
		}
		return handlerOutcome{update: update, message: msg}
	}

	stage := StageAwaitingSlotConfirmation
	update.Stage = &stage
	update.PresentedSlots = outcome.Slots

	var msg strings.Builder
	if outcome.PreferenceRelaxed {
		fmt.Fprintf(&msg, "I didn't find anything in the %s, but I do have other times. ", pref)
	}
	if allSameDay(outcome.Slots, loc) {
		fmt.Fprintf(&msg, "On %s I have %s. Which works best for you?",
			SpeakDate(outcome.Slots[0].Time, loc), speakSlotTimes(outcome.Slots, loc))
	} else {
		fmt.Fprintf(&msg, "The soonest I have is %s. Which works best for you?",
			speakSlotTimes(outcome.Slots, loc))
	}
	return handlerOutcome{update: update, message: msg.String()}
}

func (s *Service) handleSelectSlot(ctx context.Context, dir *practice.Directory, state *ConversationState, raw json.RawMessage) handlerOutcome {
	var args selectSlotArgs
	_ = json.Unmarshal(raw, &args)

	loc, err := dir.Practice.Location()
	if err != nil {
		return s.failureOutcome(systemErr(err), StateUpdate{})
	}

	chosen, herr := s.slotSelector.Select(ctx, args.Selection, state.Booking.PresentedSlots, loc)
	if herr != nil {
		return s.failureOutcome(herr, StateUpdate{})
	}
	if chosen == nil {
		// Re-offer the exact candidate times, never a generic retry.
		return handlerOutcome{
			message: fmt.Sprintf("Sorry, just to be sure — I have %s. Which one would you like?",
				speakSlotTimes(state.Booking.PresentedSlots, loc)),
			err: &HandlerError{Class: FailureUserAmbiguity},
		}
	}

	if state.Patient.IsIdentityConfirmed {
		stage := StageAwaitingFinalConfirmation
		return handlerOutcome{
			update:  StateUpdate{Stage: &stage, SelectedSlot: chosen},
			message: fmt.Sprintf("Great, %s. Shall I go ahead and book it?", SpeakSlot(*chosen, loc)),
		}
	}

	stage := StageCollectingIdentity
	return handlerOutcome{
		update:  StateUpdate{Stage: &stage, SelectedSlot: chosen},
		message: fmt.Sprintf("Great, %s. Can I get your first and last name, and your date of birth?", SpeakSlot(*chosen, loc)),
	}
}

func (s *Service) handleProvidePatientDetails(ctx context.Context, dir *practice.Directory, state *ConversationState, raw json.RawMessage) handlerOutcome {
	var args patientDetailsArgs
	_ = json.Unmarshal(raw, &args)

	if strings.TrimSpace(args.FirstName) == "" || strings.TrimSpace(args.LastName) == "" {
		return handlerOutcome{
			message: "Could you give me your first and last name, please?",
			err:     &HandlerError{Class: FailureUserAmbiguity},
		}
	}
	if _, err := time.Parse("2006-01-02", args.DateOfBirth); err != nil {
		return handlerOutcome{
			message: fmt.Sprintf("Thanks, %s. And what is your date of birth?", strings.TrimSpace(args.FirstName)),
			err:     &HandlerError{Class: FailureUserAmbiguity},
		}
	}

	loc, err := dir.Practice.Location()
	if err != nil {
		return s.failureOutcome(systemErr(err), StateUpdate{})
	}
	if state.Booking.SelectedSlot == nil {
		return s.failureOutcome(invariantErr("collecting identity without a selected slot"), StateUpdate{})
	}

	patient := PatientDetails{
		FirstName:           strings.TrimSpace(args.FirstName),
		LastName:            strings.TrimSpace(args.LastName),
		DateOfBirth:         args.DateOfBirth,
		Phone:               strings.TrimSpace(args.Phone),
		Email:               strings.TrimSpace(args.Email),
		IsIdentityConfirmed: true,
	}
	stage := StageAwaitingFinalConfirmation
	return handlerOutcome{
		update: StateUpdate{Stage: &stage, Patient: &patient},
		message: fmt.Sprintf("Thanks, %s. So that's a %s on %s. Shall I book it?",
			patient.FirstName,
			state.Booking.SpokenName,
			SpeakSlot(*state.Booking.SelectedSlot, loc)),
	}
}

func (s *Service) handleConfirmBooking(ctx context.Context, dir *practice.Directory, state *ConversationState, raw json.RawMessage) handlerOutcome {
	var args confirmBookingArgs
	_ = json.Unmarshal(raw, &args)

	loc, err := dir.Practice.Location()
	if err != nil {
		return s.failureOutcome(systemErr(err), StateUpdate{})
	}
	if state.Booking.SelectedSlot == nil {
		return s.failureOutcome(invariantErr("final confirmation without a selected slot"), StateUpdate{})
	}
	selected := *state.Booking.SelectedSlot

	reply, cerr := s.matcher.ClassifyReply(ctx, args.Reply)
	if cerr != nil {
		// A classification outage reads as an unclear reply; re-asking
		// costs one turn and avoids aborting a near-complete booking.
		s.logger.Warn("reply classification failed, re-asking", "error", cerr)
		reply = matching.ReplyUnclear
	}

	switch reply {
	case matching.ReplyAffirmative:
		return s.commitBooking(ctx, dir, state, selected, loc)

	case matching.ReplyChangeRequest:
		pref := ParseTimePreference(args.TimePreference)
		if pref != PreferenceNone && state.Booking.LastSearchDate != "" {
			date, derr := time.ParseInLocation("2006-01-02", state.Booking.LastSearchDate, loc)
			if derr == nil {
				return s.searchAndOffer(ctx, dir, state, date, pref, loc)
			}
		}
		stage := StageOfferingSlots
		return handlerOutcome{
			update:  StateUpdate{Stage: &stage, ClearSelectedSlot: true},
			message: "No problem. Would you like me to look for a different day or time?",
		}

	default:
		return handlerOutcome{
			message: fmt.Sprintf("Just to confirm — should I book the %s for %s? You can say yes, or ask for a different time.",
				state.Booking.SpokenName, SpeakSlot(selected, loc)),
			err: &HandlerError{Class: FailureUserAmbiguity},
		}
	}
}

func (s *Service) commitBooking(ctx context.Context, dir *practice.Directory, state *ConversationState, selected CandidateSlot, loc *time.Location) handlerOutcome {
	working := *state

	if working.Patient.ExternalPatientID == 0 {
		res, herr := s.identity.Resolve(ctx, working.Patient, selected.ProviderID, dir.Practice.LocationID)
		if herr != nil {
			stage := StageOfferingSlots
			update := StateUpdate{Stage: &stage, ClearSelectedSlot: true}
			out := s.failureOutcome(herr, update)
			if herr.Class == FailureSystem {
				s.notifyStaff(ctx, state, "patient lookup failed during booking")
			}
			return out
		}
		working.Patient.ExternalPatientID = res.ExternalPatientID
	}
	patient := working.Patient

	appt, herr := s.finalizer.Commit(ctx, &working)
	if herr != nil {
		switch herr.Class {
		case FailureConflict:
			s.metrics.ObserveBookingConflict()
			remaining := withoutSlot(state.Booking.PresentedSlots, selected)
			update := StateUpdate{
				Patient:             &patient,
				RemovePresentedSlot: &selected,
				ClearSelectedSlot:   true,
			}
			if len(remaining) > 0 {
				stage := StageAwaitingSlotConfirmation
				update.Stage = &stage
				return handlerOutcome{
					update: update,
					message: fmt.Sprintf("I'm so sorry — that time was just taken. I still have %s. Would one of those work?",
						speakSlotTimes(remaining, loc)),
					err: herr,
				}
			}
			stage := StageOfferingSlots
			update.Stage = &stage
			return handlerOutcome{
				update:  update,
				message: "I'm so sorry — that time was just taken, and I don't have another opening from that search. Would you like me to look at other days?",
				err:     herr,
			}

		case FailureSystem:
			stage := StageOfferingSlots
			s.notifyStaff(ctx, state, "booking commit failed")
			return handlerOutcome{
				update:  StateUpdate{Stage: &stage, Patient: &patient, ClearSelectedSlot: true},
				message: msgStaffFollowUp,
				err:     herr,
			}

		default:
			stage := StageOfferingSlots
			return s.failureOutcome(herr, StateUpdate{Stage: &stage, Patient: &patient, ClearSelectedSlot: true})
		}
	}

	s.metrics.ObserveBookingConfirmed()
	stage := StageBookingConfirmed
	return handlerOutcome{
		update: StateUpdate{
			Stage:          &stage,
			Patient:        &patient,
			PresentedSlots: []CandidateSlot{},
		},
		message: fmt.Sprintf("You're all set, %s! I've booked your %s for %s. We'll see you then.",
			patient.FirstName, state.Booking.SpokenName, SpeakSlot(CandidateSlot{Time: appt.StartTime, ProviderID: selected.ProviderID}, loc)),
	}
}

func (s *Service) handleEndCall(ctx context.Context, state *ConversationState, raw json.RawMessage) handlerOutcome {
	var args endCallArgs
	_ = json.Unmarshal(raw, &args)

	msg := "Thanks for calling. Goodbye!"
	if state.CurrentStage == StageBookingConfirmed {
		msg = "You're all set. Thanks for calling, and see you soon!"
	}
	reason := args.Reason
	if reason == "" {
		reason = "caller ended"
	}
	return handlerOutcome{message: msg, end: true, endReason: reason}
}

// failureOutcome maps a classified error to the user-facing message and
// the state update to persist alongside it.
func (s *Service) failureOutcome(herr *HandlerError, update StateUpdate) handlerOutcome {
	out := handlerOutcome{update: update, err: herr}
	switch herr.Class {
	case FailureConfiguration:
		out.message = msgContactOffice
	case FailureSystem:
		out.message = msgStaffFollowUp
	default:
		out.message = msgGenericSorry
	}
	return out
}

// stagePrompt re-anchors the caller when a tool arrives out of turn.
func stagePrompt(state *ConversationState) string {
	switch state.CurrentStage {
	case StageCollectingRequest:
		return "What kind of appointment can I set up for you today?"
	case StageOfferingSlots:
		return "What day would you like to come in?"
	case StageAwaitingSlotConfirmation:
		return "Which of the times I mentioned works best for you?"
	case StageCollectingIdentity:
		return "Can I get your first and last name, and your date of birth?"
	case StageAwaitingFinalConfirmation:
		return "Shall I go ahead and book that time for you?"
	case StageNoAvailability:
		return "Would you like me to check a different day?"
	case StageBookingConfirmed:
		return "You're all set. Is there anything else I can help with?"
	default:
		return msgGenericSorry
	}
}

func withoutSlot(slots []CandidateSlot, drop CandidateSlot) []CandidateSlot {
	var out []CandidateSlot
	for _, s := range slots {
		if !s.Same(drop) {
			out = append(out, s)
		}
	}
	return out
}
