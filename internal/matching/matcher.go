package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

// Candidate is one entry of a closed selection set.
type Candidate struct {
	ID    string
	Label string
	Hints []string // alternate phrasings, keywords
}

// Result is the outcome of one constrained selection. Matched false means
// the utterance did not clearly pick any candidate; callers must treat that
// as "ask again", never as an error.
type Result struct {
	ID      string
	Matched bool
}

// ReplyClass is the closed classification of a caller's reply to the final
// booking confirmation prompt.
type ReplyClass string

const (
	ReplyAffirmative   ReplyClass = "affirmative"
	ReplyChangeRequest ReplyClass = "change_request"
	ReplyUnclear       ReplyClass = "unclear"
)

// Matcher resolves caller speech against closed candidate sets.
type Matcher interface {
	MatchAppointmentType(ctx context.Context, utterance string, candidates []Candidate) (Result, error)
	MatchSlot(ctx context.Context, utterance string, candidates []Candidate) (Result, error)
	ClassifyReply(ctx context.Context, utterance string) (ReplyClass, error)
}

// LLMMatcher implements Matcher with a single-turn structured-output call.
type LLMMatcher struct {
	client  LLMClient
	modelID string
	timeout time.Duration
	logger  *logging.Logger
}

var _ Matcher = (*LLMMatcher)(nil)

// NewLLMMatcher creates a matcher over the given LLM client. A zero timeout
// disables the per-call deadline.
func NewLLMMatcher(client LLMClient, modelID string, timeout time.Duration, logger *logging.Logger) *LLMMatcher {
	if client == nil {
		panic("matching: llm client required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LLMMatcher{
		client:  client,
		modelID: modelID,
		timeout: timeout,
		logger:  logger,
	}
}

const selectionSystemPrompt = `You match a caller's words against a fixed list of options.
Reply with a single JSON object and nothing else: {"id": "<option id>"} if
exactly one option clearly matches, or {"id": null} if none does or the
request is ambiguous between options. Never invent ids.`

const replySystemPrompt = `You classify a caller's reply to the question
"shall I go ahead and book this appointment?".
Reply with a single JSON object and nothing else: {"class": "affirmative"}
if the caller agrees, {"class": "change_request"} if the caller wants a
different time, day, or appointment, or {"class": "unclear"} otherwise.`

// MatchAppointmentType resolves an appointment request against the
// practice's configured types.
func (m *LLMMatcher) MatchAppointmentType(ctx context.Context, utterance string, candidates []Candidate) (Result, error) {
	return m.selectOne(ctx, "appointment type", utterance, candidates)
}

// MatchSlot resolves a slot choice against the times read to the caller.
func (m *LLMMatcher) MatchSlot(ctx context.Context, utterance string, candidates []Candidate) (Result, error) {
	return m.selectOne(ctx, "offered time", utterance, candidates)
}

// ClassifyReply classifies the caller's answer to the final confirmation.
func (m *LLMMatcher) ClassifyReply(ctx context.Context, utterance string) (ReplyClass, error) {
	if strings.TrimSpace(utterance) == "" {
		return ReplyUnclear, nil
	}

	ctx, cancel := m.withDeadline(ctx)
	defer cancel()

	resp, err := m.client.Complete(ctx, LLMRequest{
		Model:       m.modelID,
		System:      []string{replySystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: utterance}},
		MaxTokens:   64,
		Temperature: 0,
	})
	if err != nil {
		return ReplyUnclear, fmt.Errorf("matching: classify reply: %w", err)
	}

	var parsed struct {
		Class string `json:"class"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		m.logger.Warn("matching: unparseable classification, treating as unclear", "text", resp.Text)
		return ReplyUnclear, nil
	}

	switch ReplyClass(parsed.Class) {
	case ReplyAffirmative, ReplyChangeRequest:
		return ReplyClass(parsed.Class), nil
	default:
		return ReplyUnclear, nil
	}
}

func (m *LLMMatcher) selectOne(ctx context.Context, kind, utterance string, candidates []Candidate) (Result, error) {
	if strings.TrimSpace(utterance) == "" || len(candidates) == 0 {
		return Result{}, nil
	}

	ctx, cancel := m.withDeadline(ctx)
	defer cancel()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Options (%s):\n", kind)
	for _, c := range candidates {
		fmt.Fprintf(&sb, "- id=%s: %s", c.ID, c.Label)
		if len(c.Hints) > 0 {
			fmt.Fprintf(&sb, " (also known as: %s)", strings.Join(c.Hints, ", "))
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "\nCaller said: %q", utterance)

	resp, err := m.client.Complete(ctx, LLMRequest{
		Model:       m.modelID,
		System:      []string{selectionSystemPrompt},
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: sb.String()}},
		MaxTokens:   64,
		Temperature: 0,
	})
	if err != nil {
		return Result{}, fmt.Errorf("matching: select %s: %w", kind, err)
	}

	var parsed struct {
		ID *string `json:"id"`
	}
	if err := json.Unmarshal([]byte(extractJSON(resp.Text)), &parsed); err != nil {
		m.logger.Warn("matching: unparseable selection, treating as no match", "kind", kind, "text", resp.Text)
		return Result{}, nil
	}
	if parsed.ID == nil {
		return Result{}, nil
	}

	// An id outside the candidate set is a hallucination, not a match.
	for _, c := range candidates {
		if c.ID == *parsed.ID {
			return Result{ID: c.ID, Matched: true}, nil
		}
	}
	m.logger.Warn("matching: model returned unknown id", "kind", kind, "id", *parsed.ID)
	return Result{}, nil
}

func (m *LLMMatcher) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, m.timeout)
}

// extractJSON strips code fences and surrounding prose so a well-meaning
// model that wraps its answer still parses.
func extractJSON(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "{"); start >= 0 {
		if end := strings.LastIndex(s, "}"); end > start {
			return s[start : end+1]
		}
	}
	return s
}
