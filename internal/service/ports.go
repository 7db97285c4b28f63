package service

import (
	"context"

	"github.com/Shivanand-hulikatti/session-booking/internal/model"
)

// SlotReader answers the existence questions the ledger asks before
// inserting a booking.
type SlotReader interface {
	// FindBlock returns a blackout covering teacher on date: a full-day
	// record, or a record for exactly slot when slot is non-empty. Full-day
	// records are preferred. It returns nil when the teacher is free.
	FindBlock(ctx context.Context, teacher, date, slot string) (*model.Unavailability, error)
	SchoolSlotTaken(ctx context.Context, key model.SchoolSlotKey) (bool, error)
	TeacherSlotTaken(ctx context.Context, key model.TeacherSlotKey) (bool, error)
}

// BookingTx is the view of storage inside one CreateBooking unit of work.
type BookingTx interface {
	SlotReader
	// InsertBooking assigns b.ID. A uniqueness violation is reported as
	// model.ErrDuplicateSchoolSlot or model.ErrTeacherDoubleBooking.
	InsertBooking(ctx context.Context, b *model.Booking) error
}

// LedgerStore is the persistence the ledger owns.
type LedgerStore interface {
	SlotReader

	// WithinBookingTx runs fn atomically. Concurrent calls sharing either
	// key are serialised; if fn returns an error nothing is written.
	WithinBookingTx(ctx context.Context, school model.SchoolSlotKey, teacher model.TeacherSlotKey, fn func(tx BookingTx) error) error

	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	ListBookings(ctx context.Context, f model.BookingFilter) ([]model.Booking, error)
	DeleteBooking(ctx context.Context, id int64) (*model.Booking, error)

	InsertUnavailability(ctx context.Context, u *model.Unavailability) error
	ListUnavailability(ctx context.Context) ([]model.Unavailability, error)
	DeleteUnavailability(ctx context.Context, id int64) error
}

// EmailEventWriter appends to the email audit log.
type EmailEventWriter interface {
	InsertEmailEvent(ctx context.Context, e *model.EmailEvent) error
}
