// Package notify delivers staff follow-up alerts for calls the assistant
// could not finish booking.
package notify

import "context"

// EmailMessage is one outbound email.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
	HTML    string
}

// EmailSender delivers email.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}
