// Package service implements the booking ledger and the orchestration that
// sits between HTTP handlers and the storage layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/session-booking/internal/model"
)

// Ledger owns bookings and teacher unavailability and enforces the two
// scheduling invariants: one booking per (school, subject, date, slot) and
// one booking per (teacher, date, slot).
type Ledger struct {
	store  LedgerStore
	events EmailEventWriter
	log    *slog.Logger
	now    func() time.Time
}

// NewLedger constructs a Ledger over the given storage.
func NewLedger(store LedgerStore, events EmailEventWriter, log *slog.Logger) *Ledger {
	return &Ledger{store: store, events: events, log: log, now: time.Now}
}

// ─── Bookings ─────────────────────────────────────────────────────────────────

// CreateBooking validates req and inserts it as a new booking.
//
// The checks run in a fixed order inside one storage transaction and the
// first failure wins:
//
//  1. teacher blacked out for the date, or for exactly this slot
//  2. (school, subject, date, slot) already booked
//  3. (teacher, date, slot) already booked
//
// The store serialises transactions that share a key, and its unique
// constraints catch anything the pre-checks miss. Either way the caller sees
// the same conflict error.
func (l *Ledger) CreateBooking(ctx context.Context, req model.CreateBookingRequest) (*model.Booking, error) {
	b, err := newBooking(req)
	if err != nil {
		return nil, err
	}

	err = l.store.WithinBookingTx(ctx, b.SchoolSlot(), b.TeacherSlot(), func(tx BookingTx) error {
		block, err := tx.FindBlock(ctx, b.Teacher, b.Date, b.Slot)
		if err != nil {
			return fmt.Errorf("check unavailability: %w", err)
		}
		if block != nil {
			return blockedError(block)
		}

		taken, err := tx.SchoolSlotTaken(ctx, b.SchoolSlot())
		if err != nil {
			return fmt.Errorf("check school slot: %w", err)
		}
		if taken {
			return &model.ConflictError{Kind: model.ErrDuplicateSchoolSlot, Key: b.SchoolSlot()}
		}

		taken, err = tx.TeacherSlotTaken(ctx, b.TeacherSlot())
		if err != nil {
			return fmt.Errorf("check teacher slot: %w", err)
		}
		if taken {
			return &model.ConflictError{Kind: model.ErrTeacherDoubleBooking, Key: b.TeacherSlot()}
		}

		b.CreatedAt = l.now().UTC()
		return tx.InsertBooking(ctx, b)
	})
	if err != nil {
		return nil, classify("create booking", conflictWithKey(err, b))
	}

	l.log.InfoContext(ctx, "booking created",
		slog.Int64("booking_id", b.ID),
		slog.String("school", b.SchoolName),
		slog.String("teacher", b.Teacher),
		slog.String("date", b.Date),
		slog.String("slot", b.Slot),
	)
	return b, nil
}

// GetBooking returns a single booking or model.ErrNotFound.
func (l *Ledger) GetBooking(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := l.store.GetBooking(ctx, id)
	if err != nil {
		return nil, classify("get booking", err)
	}
	return b, nil
}

// ListBookings returns bookings matching f, latest date first.
func (l *Ledger) ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	f.SalespersonEmail = strings.TrimSpace(f.SalespersonEmail)
	f.SchoolName = strings.TrimSpace(f.SchoolName)
	f.Subject = strings.TrimSpace(f.Subject)
	f.Teacher = strings.TrimSpace(f.Teacher)
	f.Date = strings.TrimSpace(f.Date)
	if f.Date != "" {
		if err := checkDate(f.Date); err != nil {
			return nil, err
		}
	}

	bookings, err := l.store.ListBookings(ctx, f)
	if err != nil {
		return nil, classify("list bookings", err)
	}
	return bookings, nil
}

// CancelBooking deletes a booking, freeing both of its keys, and returns
// the deleted row.
func (l *Ledger) CancelBooking(ctx context.Context, id int64) (*model.Booking, error) {
	b, err := l.store.DeleteBooking(ctx, id)
	if err != nil {
		return nil, classify("cancel booking", err)
	}

	l.log.InfoContext(ctx, "booking cancelled",
		slog.Int64("booking_id", b.ID),
		slog.String("teacher", b.Teacher),
		slog.String("date", b.Date),
		slog.String("slot", b.Slot),
	)
	return b, nil
}

// ─── Availability ─────────────────────────────────────────────────────────────

// RecordUnavailability stores a blackout for teacher on date. A nil or blank
// slot blocks the whole day. Duplicates are accepted.
func (l *Ledger) RecordUnavailability(ctx context.Context, req model.UnavailabilityRequest) (*model.Unavailability, error) {
	u := &model.Unavailability{
		Teacher: strings.TrimSpace(req.Teacher),
		Date:    strings.TrimSpace(req.Date),
		Slot:    trimSlot(req.Slot),
	}
	if u.Teacher == "" {
		return nil, model.Invalid("teacher", "is required")
	}
	if err := checkDate(u.Date); err != nil {
		return nil, err
	}

	if err := l.store.InsertUnavailability(ctx, u); err != nil {
		return nil, classify("record unavailability", err)
	}

	l.log.InfoContext(ctx, "teacher marked unavailable",
		slog.Int64("unavailability_id", u.ID),
		slog.String("teacher", u.Teacher),
		slog.String("date", u.Date),
		slog.Bool("full_day", u.FullDay()),
	)
	return u, nil
}

// ListUnavailability returns every blackout, latest date first.
func (l *Ledger) ListUnavailability(ctx context.Context) ([]model.Unavailability, error) {
	out, err := l.store.ListUnavailability(ctx)
	if err != nil {
		return nil, classify("list unavailability", err)
	}
	return out, nil
}

// DeleteUnavailability removes one blackout record.
func (l *Ledger) DeleteUnavailability(ctx context.Context, id int64) error {
	if err := l.store.DeleteUnavailability(ctx, id); err != nil {
		return classify("delete unavailability", err)
	}
	return nil
}

// QueryAvailability reports whether teacher could take slot on date. The
// answer is advisory: CreateBooking checks again on its own.
//
// Without a slot only full-day blackouts make the teacher unavailable.
func (l *Ledger) QueryAvailability(ctx context.Context, teacher, date string, slot *string) (*model.Availability, error) {
	teacher = strings.TrimSpace(teacher)
	date = strings.TrimSpace(date)
	if teacher == "" {
		return nil, model.Invalid("teacher", "is required")
	}
	if err := checkDate(date); err != nil {
		return nil, err
	}

	a := &model.Availability{Teacher: teacher, Date: date, Available: true}
	if s := trimSlot(slot); s != nil {
		a.Slot = *s
	}

	block, err := l.store.FindBlock(ctx, teacher, date, a.Slot)
	if err != nil {
		return nil, classify("query availability", err)
	}
	if block != nil {
		a.Available = false
		a.Reason = model.ReasonSlotBlocked
		if block.FullDay() {
			a.Reason = model.ReasonFullDayBlocked
		}
		return a, nil
	}

	if a.Slot == "" {
		return a, nil
	}
	taken, err := l.store.TeacherSlotTaken(ctx, model.TeacherSlotKey{Teacher: teacher, Date: date, Slot: a.Slot})
	if err != nil {
		return nil, classify("query availability", err)
	}
	if taken {
		a.Available = false
		a.Reason = model.ReasonAlreadyBooked
	}
	return a, nil
}

// ─── Email audit ──────────────────────────────────────────────────────────────

// LogEmailEvent appends one email outcome to the audit log. It never fails:
// persistence errors are logged and dropped so that email auditing cannot
// affect booking flows.
func (l *Ledger) LogEmailEvent(ctx context.Context, ev model.EmailEvent) {
	if ev.TS.IsZero() {
		ev.TS = l.now().UTC()
	}
	switch ev.Status {
	case model.EmailSent:
		ev.Error = ""
	case model.EmailFailed:
		if strings.TrimSpace(ev.Error) == "" {
			ev.Error = "unknown error"
		}
	default:
		ev.Error = fmt.Sprintf("unrecognised status %q", ev.Status)
		ev.Status = model.EmailFailed
	}

	if err := l.events.InsertEmailEvent(ctx, &ev); err != nil {
		l.log.WarnContext(ctx, "email event not recorded",
			slog.String("to", ev.ToAddr),
			slog.String("subject", ev.Subject),
			slog.String("status", string(ev.Status)),
			slog.String("error", err.Error()),
		)
	}
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func newBooking(req model.CreateBookingRequest) (*model.Booking, error) {
	b := &model.Booking{
		SchoolName:        strings.TrimSpace(req.SchoolName),
		TitleUsed:         strings.TrimSpace(req.TitleUsed),
		Grade:             strings.TrimSpace(req.Grade),
		Curriculum:        strings.TrimSpace(req.Curriculum),
		Subject:           strings.TrimSpace(req.Subject),
		Date:              strings.TrimSpace(req.Date),
		Slot:              strings.TrimSpace(req.Slot),
		Topic:             strings.TrimSpace(req.Topic),
		SalespersonName:   strings.TrimSpace(req.SalespersonName),
		SalespersonNumber: strings.TrimSpace(req.SalespersonNumber),
		SalespersonEmail:  strings.TrimSpace(req.SalespersonEmail),
		Teacher:           strings.TrimSpace(req.Teacher),
	}

	if strings.TrimSpace(req.BookingType) == "" {
		return nil, model.Invalid("booking_type", "is required")
	}
	bt, ok := model.ParseBookingType(req.BookingType)
	if !ok {
		return nil, model.Invalid("booking_type", "must be LiveClass or ProductTraining")
	}
	b.BookingType = bt

	required := []struct{ field, value string }{
		{"school_name", b.SchoolName},
		{"subject", b.Subject},
		{"date", b.Date},
		{"slot", b.Slot},
		{"teacher", b.Teacher},
		{"salesperson_name", b.SalespersonName},
		{"salesperson_number", b.SalespersonNumber},
		{"salesperson_email", b.SalespersonEmail},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, model.Invalid(r.field, "is required")
		}
	}
	if err := checkDate(b.Date); err != nil {
		return nil, err
	}

	switch b.BookingType {
	case model.LiveClass:
		if b.Grade == "" {
			return nil, model.Invalid("grade", "is required for LiveClass")
		}
	case model.ProductTraining:
		b.Grade = ""
	}
	return b, nil
}

func checkDate(date string) error {
	if date == "" {
		return model.Invalid("date", "is required")
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		return model.Invalid("date", "must be YYYY-MM-DD")
	}
	return nil
}

func trimSlot(slot *string) *string {
	if slot == nil {
		return nil
	}
	s := strings.TrimSpace(*slot)
	if s == "" {
		return nil
	}
	return &s
}

func blockedError(u *model.Unavailability) error {
	key := model.TeacherSlotKey{Teacher: u.Teacher, Date: u.Date}
	if u.Slot != nil {
		key.Slot = *u.Slot
	}
	return &model.ConflictError{Kind: model.ErrTeacherUnavailable, Key: key}
}

// conflictWithKey attaches the offending key to a bare conflict sentinel
// coming from a storage uniqueness violation.
func conflictWithKey(err error, b *model.Booking) error {
	var ce *model.ConflictError
	if errors.As(err, &ce) {
		return err
	}
	switch {
	case errors.Is(err, model.ErrDuplicateSchoolSlot):
		return &model.ConflictError{Kind: model.ErrDuplicateSchoolSlot, Key: b.SchoolSlot()}
	case errors.Is(err, model.ErrTeacherDoubleBooking):
		return &model.ConflictError{Kind: model.ErrTeacherDoubleBooking, Key: b.TeacherSlot()}
	}
	return err
}

// classify passes ledger error kinds through and turns everything else
// into a *model.StorageError.
func classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrTeacherUnavailable),
		errors.Is(err, model.ErrDuplicateSchoolSlot),
		errors.Is(err, model.ErrTeacherDoubleBooking),
		errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrStorage):
		return err
	}
	return &model.StorageError{Op: op, Err: err}
}
