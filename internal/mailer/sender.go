// Package mailer adapts the outbound email provider and renders the
// newsletter's transactional and campaign messages.
package mailer

import (
	"context"
	"time"
)

// Message is a single outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	ReplyTo string
}

// SendResult contains the outcome of a send attempt. A provider rejection is
// reported as Success=false with Error set, not as an error return, so
// callers can do per-recipient accounting without unwrapping.
type SendResult struct {
	Success   bool
	MessageID string
	Error     error
	SentAt    time.Time
}

// Sender delivers a single email. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, msg *Message) (*SendResult, error)
}
