package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/Shivanand-hulikatti/session-booking/internal/model"
)

// Roster supplies the ordered teacher candidates for a subject.
type Roster interface {
	CandidatesForSubject(subject string) []string
}

// Notifier is told about bookings after they are committed. Calls are made
// off the request path.
type Notifier interface {
	BookingConfirmed(ctx context.Context, b model.Booking)
	BookingCancelled(ctx context.Context, b model.Booking)
}

// DefaultSlots are the bookable slots of a school day.
var DefaultSlots = []string{
	"10:00–10:40", "10:40–11:20", "11:20–12:00", "12:20–13:00",
	"13:00–13:40", "13:40–14:20", "14:20–15:00", "15:00–15:40",
}

// DefaultCatalog builds the catalog offered to salespeople. Teachers feeds
// the admin blackout form.
func DefaultCatalog(subjects, teachers []string) model.Catalog {
	return model.Catalog{
		BookingTypes: []string{string(model.LiveClass), string(model.ProductTraining)},
		Slots:        slices.Clone(DefaultSlots),
		Subjects:     slices.Clone(subjects),
		Curricula:    []string{"CBSE", "ICSE", "State Board", "Other"},
		Teachers:     slices.Clone(teachers),
	}
}

// Desk is the salesperson-facing front of the ledger. It applies the
// booking window and catalog, picks a teacher when none is given and sends
// notifications once the ledger has accepted a change.
type Desk struct {
	ledger   *Ledger
	roster   Roster
	notifier Notifier
	window   BookingWindow
	catalog  model.Catalog
	validate *validator.Validate
	log      *slog.Logger

	wg sync.WaitGroup
}

// NewDesk constructs a Desk.
func NewDesk(ledger *Ledger, roster Roster, notifier Notifier, window BookingWindow, catalog model.Catalog, log *slog.Logger) *Desk {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Desk{
		ledger:   ledger,
		roster:   roster,
		notifier: notifier,
		window:   window,
		catalog:  catalog,
		validate: v,
		log:      log,
	}
}

// Catalog returns the offered choices.
func (d *Desk) Catalog() model.Catalog {
	return d.catalog
}

// Book validates req against the window and catalog, assigns a teacher if
// req.Teacher is empty and creates the booking. Confirmation emails are
// sent in the background.
func (d *Desk) Book(ctx context.Context, req model.CreateBookingRequest) (*model.Booking, error) {
	req = req.Trimmed()
	if err := d.checkStruct(req); err != nil {
		return nil, err
	}

	if err := d.window.Check(req.Date); err != nil {
		return nil, err
	}
	if len(d.catalog.Slots) > 0 && !slices.Contains(d.catalog.Slots, req.Slot) {
		return nil, model.Invalid("slot", "is not an offered slot")
	}
	if len(d.catalog.Subjects) > 0 && !slices.Contains(d.catalog.Subjects, req.Subject) {
		return nil, model.Invalid("subject", "is not an offered subject")
	}

	if req.Teacher == "" {
		teacher, err := d.pickTeacher(ctx, req.Subject, req.Date, req.Slot)
		if err != nil {
			return nil, err
		}
		req.Teacher = teacher
	}

	b, err := d.ledger.CreateBooking(ctx, req)
	if err != nil {
		return nil, err
	}
	d.notify(ctx, func(ctx context.Context) { d.notifier.BookingConfirmed(ctx, *b) })
	return b, nil
}

// Cancel deletes a booking and notifies the salesperson and teacher.
func (d *Desk) Cancel(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := d.ledger.CancelBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	d.notify(ctx, func(ctx context.Context) { d.notifier.BookingCancelled(ctx, *b) })
	return b, nil
}

// Candidates reports the availability of every roster teacher for subject,
// in priority order.
func (d *Desk) Candidates(ctx context.Context, subject, date, slot string) ([]model.Availability, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, model.Invalid("subject", "is required")
	}
	var s *string
	if slot = strings.TrimSpace(slot); slot != "" {
		s = &slot
	}

	out := []model.Availability{}
	for _, teacher := range d.roster.CandidatesForSubject(subject) {
		a, err := d.ledger.QueryAvailability(ctx, teacher, date, s)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

// Wait blocks until all background notifications have finished.
func (d *Desk) Wait() {
	d.wg.Wait()
}

func (d *Desk) pickTeacher(ctx context.Context, subject, date, slot string) (string, error) {
	candidates, err := d.Candidates(ctx, subject, date, slot)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", model.Invalid("teacher", fmt.Sprintf("no teacher is mapped to %s", subject))
	}
	for _, c := range candidates {
		if c.Available {
			return c.Teacher, nil
		}
	}
	return "", model.Invalid("teacher", "no teacher available for this subject, date and slot")
}

func (d *Desk) notify(ctx context.Context, fn func(context.Context)) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.log.ErrorContext(ctx, "notification panicked", slog.Any("panic", r))
			}
		}()
		fn(ctx)
	}()
}

// checkStruct runs the request's validate tags and reports the first
// failure as a *model.ValidationError.
func (d *Desk) checkStruct(req model.CreateBookingRequest) error {
	err := d.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.Invalid("request", err.Error())
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return model.Invalid(fe.Field(), "is required")
	case "email":
		return model.Invalid(fe.Field(), "must be a valid email address")
	case "datetime":
		return model.Invalid(fe.Field(), "must be YYYY-MM-DD")
	}
	return model.Invalid(fe.Field(), "failed "+fe.Tag())
}
