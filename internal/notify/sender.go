// Package notify composes booking emails, hands them to a Sender and
// records every attempt in the email audit log.
package notify

import (
	"context"
	"log/slog"
	"time"
)

// Message is one outgoing email.
type Message struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Created time.Time `json:"created"`
}

// Sender delivers a Message. Implementations must be safe for concurrent
// use.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender writes messages to the log instead of delivering them. It is the
// default for local runs.
type LogSender struct {
	log *slog.Logger
}

// NewLogSender constructs a LogSender.
func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, m Message) error {
	s.log.InfoContext(ctx, "mail",
		slog.String("message_id", m.ID),
		slog.String("to", m.To),
		slog.String("subject", m.Subject),
		slog.String("body", m.Body),
	)
	return nil
}
