package notify

import (
	"context"
	"strings"
	"testing"
)

type stubSender struct {
	sent []EmailMessage
}

func (s *stubSender) Send(ctx context.Context, msg EmailMessage) error {
	s.sent = append(s.sent, msg)
	return nil
}

func TestBookingFollowUp(t *testing.T) {
	sender := &stubSender{}
	n := NewFollowUpNotifier(sender, "frontdesk@example.com", nil)

	if err := n.BookingFollowUp(context.Background(), "call-1", "Ana Diaz", "booking commit failed"); err != nil {
		t.Fatalf("BookingFollowUp: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d emails, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "frontdesk@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if !strings.Contains(msg.Body, "Ana Diaz") || !strings.Contains(msg.Body, "call-1") {
		t.Errorf("body missing details: %q", msg.Body)
	}
}

func TestBookingFollowUpWithoutSenderIsNoop(t *testing.T) {
	n := NewFollowUpNotifier(nil, "", nil)
	if err := n.BookingFollowUp(context.Background(), "call-1", "Ana", "x"); err != nil {
		t.Fatalf("expected noop, got %v", err)
	}
}
