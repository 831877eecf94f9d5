package conversation

import (
	"context"
	"time"

	"github.com/clearbook-ai/dental-voice-platform/internal/matching"
	"github.com/clearbook-ai/dental-voice-platform/internal/observability/metrics"
	"github.com/clearbook-ai/dental-voice-platform/internal/practice"
	"github.com/clearbook-ai/dental-voice-platform/internal/scheduling"
	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

// DirectorySource resolves the practice configuration for this
// deployment. Implemented by practice.Loader.
type DirectorySource interface {
	Directory(ctx context.Context) (*practice.Directory, error)
}

// StaffNotifier alerts the front desk when a call needs human follow-up.
type StaffNotifier interface {
	BookingFollowUp(ctx context.Context, callID, patientName, detail string) error
}

// Service owns the per-call booking state machine. One Service handles
// all calls for a practice; per-call serialization lives in the state
// store.
type Service struct {
	store     *StateStore
	ledger    *ToolCallLedger
	archive   *CallArchive
	directory DirectorySource
	matcher   matching.Matcher
	notifier  StaffNotifier
	metrics   *metrics.CallMetrics

	typeMatcher  *TypeMatcher
	slotSearcher *SlotSearcher
	slotSelector *SlotSelector
	identity     *IdentityResolver
	finalizer    *BookingFinalizer

	now    func() time.Time
	logger *logging.Logger
}

// ServiceDeps collects the collaborators a Service needs. Ledger,
// Archive, and Notifier are optional; everything else is required.
type ServiceDeps struct {
	Store      *StateStore
	Ledger     *ToolCallLedger
	Archive    *CallArchive
	Directory  DirectorySource
	Scheduling scheduling.Client
	Matcher    matching.Matcher
	Notifier   StaffNotifier
	Metrics    *metrics.CallMetrics
	Rules      SlotSearchRules
	Logger     *logging.Logger
	Now        func() time.Time
}

func NewService(deps ServiceDeps) *Service {
	if deps.Store == nil {
		panic("conversation: state store required")
	}
	if deps.Directory == nil {
		panic("conversation: directory source required")
	}
	if deps.Scheduling == nil {
		panic("conversation: scheduling client required")
	}
	if deps.Matcher == nil {
		panic("conversation: matcher required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		store:        deps.Store,
		ledger:       deps.Ledger,
		archive:      deps.Archive,
		directory:    deps.Directory,
		matcher:      deps.Matcher,
		notifier:     deps.Notifier,
		metrics:      deps.Metrics,
		typeMatcher:  NewTypeMatcher(deps.Matcher, logger),
		slotSearcher: NewSlotSearcher(deps.Scheduling, deps.Rules, logger),
		slotSelector: NewSlotSelector(deps.Matcher),
		identity:     NewIdentityResolver(deps.Scheduling, logger),
		finalizer:    NewBookingFinalizer(deps.Scheduling, logger),
		now:          now,
		logger:       logger,
	}
}

// notifyStaff fires a follow-up alert; delivery failure is logged, never
// surfaced to the caller.
func (s *Service) notifyStaff(ctx context.Context, state *ConversationState, detail string) {
	if s.notifier == nil {
		return
	}
	name := state.Patient.FullName()
	if name == " " {
		name = "unknown caller"
	}
	if err := s.notifier.BookingFollowUp(ctx, state.CallID, name, detail); err != nil {
		s.logger.Error("staff follow-up notification failed",
			"call_id", state.CallID,
			"error", err,
		)
	}
}
