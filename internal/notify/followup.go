package notify

import (
	"context"
	"fmt"

	"github.com/clearbook-ai/dental-voice-platform/pkg/logging"
)

// FollowUpNotifier emails the front desk when a call needs a human to
// finish scheduling. It implements conversation.StaffNotifier.
type FollowUpNotifier struct {
	sender EmailSender
	to     string
	logger *logging.Logger
}

func NewFollowUpNotifier(sender EmailSender, to string, logger *logging.Logger) *FollowUpNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &FollowUpNotifier{sender: sender, to: to, logger: logger}
}

// BookingFollowUp alerts staff about a call that could not be booked.
func (n *FollowUpNotifier) BookingFollowUp(ctx context.Context, callID, patientName, detail string) error {
	if n == nil || n.sender == nil || n.to == "" {
		return nil
	}
	msg := EmailMessage{
		To:      n.to,
		Subject: fmt.Sprintf("Follow up needed: call %s", callID),
		Body: fmt.Sprintf(
			"The phone assistant could not finish booking for %s.\n\nCall ID: %s\nReason: %s\n\nPlease reach out to the caller to complete scheduling.",
			patientName, callID, detail,
		),
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: follow-up email: %w", err)
	}
	n.logger.Info("staff follow-up sent", "call_id", callID)
	return nil
}
