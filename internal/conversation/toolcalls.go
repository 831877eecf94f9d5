package conversation

import "encoding/json"

// ToolCall is one structured request from the voice front end.
type ToolCall struct {
	ID        string          `json:"id"`
	CallID    string          `json:"callId"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is what the front end speaks or acts on. Message is forwarded
// verbatim; Error is present only for structured failures.
type ToolResult struct {
	Message string     `json:"message"`
	Stage   Stage      `json:"stage"`
	Error   *ToolError `json:"error,omitempty"`
}

// ToolError is the structured failure surface of the tool-call contract.
type ToolError struct {
	Class FailureClass `json:"class"`
	Code  string       `json:"code,omitempty"`
}

// Argument payloads per tool.

type requestAppointmentArgs struct {
	Request string `json:"request"`
}

type searchSlotsArgs struct {
	Date           string `json:"date"`
	TimePreference string `json:"timePreference,omitempty"`
}

type selectSlotArgs struct {
	Selection string `json:"selection"`
}

type patientDetailsArgs struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

type confirmBookingArgs struct {
	Reply          string `json:"reply"`
	TimePreference string `json:"timePreference,omitempty"`
}

type endCallArgs struct {
	Reason string `json:"reason,omitempty"`
}
