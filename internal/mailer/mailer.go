// Package mailer sends outreach mail to saved users. The browser-driven
// implementation composes through the Gmail web UI using a logged-in Chrome
// profile, which avoids SMTP credentials entirely.
package mailer

import (
	"context"
)

// Mailer sends a single message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// NoOpMailer discards all mail. It is used when no Chrome profile is
// configured.
type NoOpMailer struct{}

func (NoOpMailer) Send(context.Context, string, string, string) error { return nil }
