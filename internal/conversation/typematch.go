package conversation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/clearbook-ai/dental-voice-platform/internal/matching"
	"github.com/clearbook-ai/dental-voice-platform/internal/practice"
	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

// TypeMatch is a resolved appointment request: the configured type plus
// the providers and operatories that can serve it.
type TypeMatch struct {
	Type                 practice.AppointmentType
	EligibleProviderIDs  []int64
	EligibleOperatoryIDs []int64
}

// TypeMatcher resolves a free-text appointment request to one configured
// appointment type.
type TypeMatcher struct {
	matcher matching.Matcher
	logger  *logging.Logger
}

func NewTypeMatcher(matcher matching.Matcher, logger *logging.Logger) *TypeMatcher {
	if matcher == nil {
		panic("conversation: matcher required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &TypeMatcher{matcher: matcher, logger: logger}
}

// Match returns (nil, nil) when the request did not clearly name a
// configured type; the caller re-prompts. Configuration gaps are returned
// as classified errors and must not advance the stage.
func (t *TypeMatcher) Match(ctx context.Context, request string, dir *practice.Directory) (*TypeMatch, *HandlerError) {
	bookable := dir.BookableTypes()
	if len(bookable) == 0 {
		return nil, newHandlerError(FailureConfiguration, CodeNoAppointmentTypes,
			fmt.Errorf("practice %d has no bookable appointment types", dir.Practice.ID))
	}

	candidates := make([]matching.Candidate, 0, len(bookable))
	for _, at := range bookable {
		candidates = append(candidates, matching.Candidate{
			ID:    strconv.FormatInt(at.ID, 10),
			Label: at.Name,
			Hints: at.Keywords,
		})
	}

	result, err := t.matcher.MatchAppointmentType(ctx, request, candidates)
	if err != nil {
		return nil, systemErr(err)
	}
	if !result.Matched {
		return nil, nil
	}

	// Re-fetch by id; a name echoed back by the matcher is never trusted.
	typeID, err := strconv.ParseInt(result.ID, 10, 64)
	if err != nil {
		return nil, invariantErr("matcher returned non-numeric type id %q", result.ID)
	}
	matched, ok := dir.TypeByID(typeID)
	if !ok || !matched.Bookable {
		return nil, invariantErr("matcher returned unknown type id %d", typeID)
	}

	providers := dir.EligibleProviders(matched.ID)
	if len(providers) == 0 {
		return nil, newHandlerError(FailureConfiguration, CodeNoProviderForType,
			fmt.Errorf("no active provider accepts type %q", matched.Name))
	}

	providerIDs := make([]int64, 0, len(providers))
	var operatoryIDs []int64
	for _, p := range providers {
		providerIDs = append(providerIDs, p.ID)
		operatoryIDs = append(operatoryIDs, dir.OperatoryIDsFor(p.ID)...)
	}

	t.logger.Info("appointment type matched",
		"type", matched.Name,
		"providers", len(providerIDs),
	)
	return &TypeMatch{
		Type:                 *matched,
		EligibleProviderIDs:  providerIDs,
		EligibleOperatoryIDs: operatoryIDs,
	}, nil
}
