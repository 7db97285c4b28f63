package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Shivanand-hulikatti/session-booking/internal/model"
)

// Directory resolves notification addresses.
type Directory interface {
	EmailFor(teacher string) string
	AdminEmail() string
}

// EventLogger records the outcome of each send. *service.Ledger satisfies
// it; LogEmailEvent must not fail.
type EventLogger interface {
	LogEmailEvent(ctx context.Context, ev model.EmailEvent)
}

// Dispatcher turns booking changes into emails.
type Dispatcher struct {
	sender Sender
	dir    Directory
	events EventLogger
	from   string
	log    *slog.Logger
	now    func() time.Time
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(sender Sender, dir Directory, events EventLogger, from string, log *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, dir: dir, events: events, from: from, log: log, now: time.Now}
}

// BookingConfirmed mails the salesperson, the teacher and the admin. The
// salesperson's copy leaves out the teacher; the teacher's copy leaves out
// the salesperson.
func (d *Dispatcher) BookingConfirmed(ctx context.Context, b model.Booking) {
	d.send(ctx, b.SalespersonEmail, "Your class is confirmed",
		"Dear "+b.SalespersonName+",\n\nYour class has been successfully booked.\n\n"+
			details(b, false))

	d.send(ctx, d.dir.EmailFor(b.Teacher), "New session assigned",
		"You have a new session to conduct.\n\n"+details(b, false))

	d.send(ctx, d.dir.AdminEmail(), "New booking created",
		"A new booking has been created:\n\n"+details(b, true))
}

// BookingCancelled mails the salesperson and the teacher.
func (d *Dispatcher) BookingCancelled(ctx context.Context, b model.Booking) {
	d.send(ctx, b.SalespersonEmail, "Class cancelled",
		"Dear "+b.SalespersonName+",\n\nYour scheduled class has been cancelled.\n\n"+
			summary(b))

	d.send(ctx, d.dir.EmailFor(b.Teacher), "Session cancelled",
		"Your assigned session has been cancelled.\n\n"+summary(b))
}

// Reminder mails teacher the list of their sessions on date.
func (d *Dispatcher) Reminder(ctx context.Context, teacher, date string, bookings []model.Booking) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You have %d session(s) on %s.\n", len(bookings), date)
	for _, b := range bookings {
		sb.WriteString("\n")
		sb.WriteString(summary(b))
	}
	d.send(ctx, d.dir.EmailFor(teacher), "Reminder: sessions on "+date, sb.String())
}

// Resend repeats a logged email as a new attempt.
func (d *Dispatcher) Resend(ctx context.Context, ev model.EmailEvent) model.EmailEvent {
	return d.send(ctx, ev.ToAddr, ev.Subject, ev.Body)
}

// send delivers one email and logs the outcome. An empty address is skipped
// without an audit record since no attempt is made.
func (d *Dispatcher) send(ctx context.Context, to, subject, body string) model.EmailEvent {
	ev := model.EmailEvent{ToAddr: to, Subject: subject, Body: body}
	if strings.TrimSpace(to) == "" {
		d.log.WarnContext(ctx, "mail skipped, no recipient", slog.String("subject", subject))
		return ev
	}

	m := Message{
		ID:      uuid.NewString(),
		From:    d.from,
		To:      to,
		Subject: subject,
		Body:    body,
		Created: d.now().UTC(),
	}
	ev.TS = m.Created
	if err := d.sender.Send(ctx, m); err != nil {
		ev.Status = model.EmailFailed
		ev.Error = err.Error()
		d.log.WarnContext(ctx, "mail failed",
			slog.String("message_id", m.ID),
			slog.String("to", to),
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
	} else {
		ev.Status = model.EmailSent
	}
	d.events.LogEmailEvent(ctx, ev)
	return ev
}

func details(b model.Booking, internal bool) string {
	var sb strings.Builder
	line := func(k, v string) {
		if v == "" {
			v = "N/A"
		}
		fmt.Fprintf(&sb, "%s: %s\n", k, v)
	}
	line("School", b.SchoolName)
	line("Grade", b.Grade)
	line("Subject", b.Subject)
	line("Date", b.Date)
	line("Slot", b.Slot)
	line("Type", string(b.BookingType))
	line("Topic", b.Topic)
	if internal {
		line("Teacher", b.Teacher)
		line("Salesperson", b.SalespersonName)
		line("Salesperson Email", b.SalespersonEmail)
	}
	return sb.String()
}

func summary(b model.Booking) string {
	return fmt.Sprintf("School: %s\nSubject: %s\nDate: %s\nSlot: %s\n", b.SchoolName, b.Subject, b.Date, b.Slot)
}
