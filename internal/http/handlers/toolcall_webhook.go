// Package handlers holds the HTTP handlers that adapt the voice
// platform's webhook envelope onto the tool-call contract.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/clearbook-ai/dental-voice-platform/internal/conversation"
	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

// ToolCallEvent is the webhook payload the voice platform posts when the
// assistant invokes one of our tools during a call.
type ToolCallEvent struct {
	// CallID groups turns within a single phone call.
	CallID string `json:"call_id"`
	// ToolName is the invoked tool.
	ToolName string `json:"tool_name"`
	// ToolCallID uniquely identifies this invocation; it must be echoed
	// back so the platform can correlate the result, and it keys our
	// replay protection.
	ToolCallID string `json:"tool_call_id"`
	// Arguments carries the tool-specific parameters.
	Arguments json.RawMessage `json:"arguments"`
}

// ToolCallResponse is the JSON body returned to the voice platform. The
// platform's TTS engine speaks Response to the caller.
type ToolCallResponse struct {
	ToolCallID string `json:"tool_call_id"`
	Response   string `json:"response"`
	Stage      string `json:"stage,omitempty"`
	Error      *conversation.ToolError `json:"error,omitempty"`
}

// ToolCallProcessor is what the webhook needs from the conversation
// engine.
type ToolCallProcessor interface {
	HandleToolCall(ctx context.Context, call conversation.ToolCall) conversation.ToolResult
}

// ToolCallHandler handles POST /webhooks/voice/tool-call. Processing is
// synchronous: the caller is on the line waiting for the spoken reply, so
// queueing would add unacceptable delay.
type ToolCallHandler struct {
	service ToolCallProcessor
	logger  *logging.Logger
}

func NewToolCallHandler(service ToolCallProcessor, logger *logging.Logger) *ToolCallHandler {
	if service == nil {
		panic("handlers: tool call processor required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ToolCallHandler{service: service, logger: logger}
}

func (h *ToolCallHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.logger.Error("tool-call: failed to read body", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	var event ToolCallEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Error("tool-call: failed to parse event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	if strings.TrimSpace(event.CallID) == "" || strings.TrimSpace(event.ToolName) == "" {
		h.logger.Warn("tool-call: missing call id or tool name")
		http.Error(w, "call_id and tool_name are required", http.StatusBadRequest)
		return
	}

	h.logger.Info("tool-call: received",
		"call_id", event.CallID,
		"tool", event.ToolName,
		"tool_call_id", event.ToolCallID,
	)

	result := h.service.HandleToolCall(r.Context(), conversation.ToolCall{
		ID:        event.ToolCallID,
		CallID:    event.CallID,
		Name:      event.ToolName,
		Arguments: event.Arguments,
	})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(ToolCallResponse{
		ToolCallID: event.ToolCallID,
		Response:   result.Message,
		Stage:      string(result.Stage),
		Error:      result.Error,
	})
}
