// Package scheduler runs the periodic jobs of the service on a cron
// schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Shivanand-hulikatti/session-booking/internal/model"
	"github.com/Shivanand-hulikatti/session-booking/internal/service"
)

// BookingLister reads bookings for a date.
type BookingLister interface {
	ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
}

// Reminder sends one teacher their sessions for a date.
type Reminder interface {
	Reminder(ctx context.Context, teacher, date string, bookings []model.Booking)
}

// Reminders mails every teacher booked tomorrow a list of their sessions.
type Reminders struct {
	bookings BookingLister
	notify   Reminder
	loc      *time.Location
	log      *slog.Logger
}

// NewReminders constructs the reminder job. Dates are computed in loc.
func NewReminders(bookings BookingLister, notify Reminder, loc *time.Location, log *slog.Logger) *Reminders {
	return &Reminders{bookings: bookings, notify: notify, loc: loc, log: log}
}

// RunOnce sends reminders for the day after now and returns how many
// teachers were reminded.
func (r *Reminders) RunOnce(ctx context.Context, now time.Time) (int, error) {
	date := service.BookingWindow{Location: r.loc}.Tomorrow(now)

	bookings, err := r.bookings.ListBookings(ctx, model.BookingFilter{Date: date})
	if err != nil {
		return 0, fmt.Errorf("list bookings for %s: %w", date, err)
	}

	byTeacher := make(map[string][]model.Booking)
	for _, b := range bookings {
		byTeacher[b.Teacher] = append(byTeacher[b.Teacher], b)
	}
	teachers := make([]string, 0, len(byTeacher))
	for t := range byTeacher {
		teachers = append(teachers, t)
	}
	sort.Strings(teachers)

	for _, t := range teachers {
		list := byTeacher[t]
		sort.Slice(list, func(i, j int) bool { return list[i].Slot < list[j].Slot })
		r.notify.Reminder(ctx, t, date, list)
	}
	return len(teachers), nil
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

// New returns a scheduler whose schedules are interpreted in loc.
func New(loc *time.Location, log *slog.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		log:  log,
	}
}

// AddReminders schedules r on spec, a standard five-field cron expression.
func (s *Scheduler) AddReminders(spec string, r *Reminders) error {
	_, err := s.cron.AddFunc(spec, func() {
		ctx := context.Background()
		n, err := r.RunOnce(ctx, time.Now())
		if err != nil {
			s.log.ErrorContext(ctx, "reminder job failed", slog.String("error", err.Error()))
			return
		}
		s.log.InfoContext(ctx, "reminders sent", slog.Int("teachers", n))
	})
	if err != nil {
		return fmt.Errorf("schedule reminders %q: %w", spec, err)
	}
	return nil
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler and waits for running jobs, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Entries reports how many jobs are scheduled.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
