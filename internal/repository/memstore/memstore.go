// Package memstore is an in-process implementation of the ledger's storage
// contract. A single mutex stands in for database transactions; uniqueness
// is enforced on insert the same way the PostgreSQL constraints are.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Shivanand-hulikatti/session-booking/internal/model"
	"github.com/Shivanand-hulikatti/session-booking/internal/service"
)

// Store holds bookings, unavailability and email events in memory.
type Store struct {
	mu sync.Mutex

	bookings      []model.Booking
	nextBookingID int64

	unavailability []model.Unavailability
	nextUnavailID  int64

	events      []model.EmailEvent
	nextEventID int64
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// ─── Booking transaction ──────────────────────────────────────────────────────

type tx struct {
	s       *Store
	pending []model.Booking
}

// WithinBookingTx runs fn holding the store lock. Inserts become visible
// only when fn returns nil.
func (s *Store) WithinBookingTx(ctx context.Context, _ model.SchoolSlotKey, _ model.TeacherSlotKey, fn func(service.BookingTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s}
	if err := fn(t); err != nil {
		return err
	}
	s.bookings = append(s.bookings, t.pending...)
	return nil
}

func (t *tx) FindBlock(_ context.Context, teacher, date, slot string) (*model.Unavailability, error) {
	return t.s.findBlock(teacher, date, slot), nil
}

func (t *tx) SchoolSlotTaken(_ context.Context, key model.SchoolSlotKey) (bool, error) {
	return t.s.schoolSlotTaken(key, t.pending), nil
}

func (t *tx) TeacherSlotTaken(_ context.Context, key model.TeacherSlotKey) (bool, error) {
	return t.s.teacherSlotTaken(key, t.pending), nil
}

func (t *tx) InsertBooking(_ context.Context, b *model.Booking) error {
	if t.s.schoolSlotTaken(b.SchoolSlot(), t.pending) {
		return fmt.Errorf("insert booking: %w", model.ErrDuplicateSchoolSlot)
	}
	if t.s.teacherSlotTaken(b.TeacherSlot(), t.pending) {
		return fmt.Errorf("insert booking: %w", model.ErrTeacherDoubleBooking)
	}
	t.s.nextBookingID++
	b.ID = t.s.nextBookingID
	t.pending = append(t.pending, *b)
	return nil
}

// ─── Slot reads ───────────────────────────────────────────────────────────────

// FindBlock implements service.SlotReader.
func (s *Store) FindBlock(_ context.Context, teacher, date, slot string) (*model.Unavailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findBlock(teacher, date, slot), nil
}

// SchoolSlotTaken implements service.SlotReader.
func (s *Store) SchoolSlotTaken(_ context.Context, key model.SchoolSlotKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schoolSlotTaken(key, nil), nil
}

// TeacherSlotTaken implements service.SlotReader.
func (s *Store) TeacherSlotTaken(_ context.Context, key model.TeacherSlotKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.teacherSlotTaken(key, nil), nil
}

func (s *Store) findBlock(teacher, date, slot string) *model.Unavailability {
	var slotMatch *model.Unavailability
	for i := range s.unavailability {
		u := s.unavailability[i]
		if u.Teacher != teacher || u.Date != date {
			continue
		}
		if u.Slot == nil {
			return cloneUnavailability(u)
		}
		if slot != "" && *u.Slot == slot && slotMatch == nil {
			slotMatch = cloneUnavailability(u)
		}
	}
	return slotMatch
}

// cloneUnavailability copies u so callers never share its slot pointer
// with the store.
func cloneUnavailability(u model.Unavailability) *model.Unavailability {
	if u.Slot != nil {
		slot := *u.Slot
		u.Slot = &slot
	}
	return &u
}

func (s *Store) schoolSlotTaken(key model.SchoolSlotKey, pending []model.Booking) bool {
	for _, list := range [][]model.Booking{s.bookings, pending} {
		for i := range list {
			if list[i].SchoolSlot() == key {
				return true
			}
		}
	}
	return false
}

func (s *Store) teacherSlotTaken(key model.TeacherSlotKey, pending []model.Booking) bool {
	for _, list := range [][]model.Booking{s.bookings, pending} {
		for i := range list {
			if list[i].TeacherSlot() == key {
				return true
			}
		}
	}
	return false
}

// ─── Bookings ─────────────────────────────────────────────────────────────────

// GetBooking returns a booking or model.ErrNotFound.
func (s *Store) GetBooking(_ context.Context, id int64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bookings {
		if s.bookings[i].ID == id {
			b := s.bookings[i]
			return &b, nil
		}
	}
	return nil, model.ErrNotFound
}

// ListBookings returns matching bookings ordered by date then creation time,
// both descending.
func (s *Store) ListBookings(_ context.Context, f model.BookingFilter) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Booking
	for _, b := range s.bookings {
		if matches(b, f) {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func matches(b model.Booking, f model.BookingFilter) bool {
	return (f.SalespersonEmail == "" || b.SalespersonEmail == f.SalespersonEmail) &&
		(f.SchoolName == "" || b.SchoolName == f.SchoolName) &&
		(f.Subject == "" || b.Subject == f.Subject) &&
		(f.Teacher == "" || b.Teacher == f.Teacher) &&
		(f.Date == "" || b.Date == f.Date)
}

// DeleteBooking removes a booking and returns it.
func (s *Store) DeleteBooking(_ context.Context, id int64) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.bookings {
		if s.bookings[i].ID == id {
			b := s.bookings[i]
			s.bookings = append(s.bookings[:i], s.bookings[i+1:]...)
			return &b, nil
		}
	}
	return nil, model.ErrNotFound
}

// ─── Unavailability ───────────────────────────────────────────────────────────

// InsertUnavailability assigns u.ID and stores a copy.
func (s *Store) InsertUnavailability(_ context.Context, u *model.Unavailability) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUnavailID++
	u.ID = s.nextUnavailID
	s.unavailability = append(s.unavailability, *cloneUnavailability(*u))
	return nil
}

// ListUnavailability returns all records, latest date first.
func (s *Store) ListUnavailability(_ context.Context) ([]model.Unavailability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Unavailability, 0, len(s.unavailability))
	for _, u := range s.unavailability {
		out = append(out, *cloneUnavailability(u))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

// DeleteUnavailability removes one record or returns model.ErrNotFound.
func (s *Store) DeleteUnavailability(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.unavailability {
		if s.unavailability[i].ID == id {
			s.unavailability = append(s.unavailability[:i], s.unavailability[i+1:]...)
			return nil
		}
	}
	return model.ErrNotFound
}

// ─── Email events ─────────────────────────────────────────────────────────────

// InsertEmailEvent appends e and assigns its ID.
func (s *Store) InsertEmailEvent(_ context.Context, e *model.EmailEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextEventID++
	e.ID = s.nextEventID
	s.events = append(s.events, *e)
	return nil
}

// ListEmailEvents returns up to limit events, newest first.
func (s *Store) ListEmailEvents(_ context.Context, limit int) ([]model.EmailEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.EmailEvent, 0, min(limit, len(s.events)))
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// GetEmailEvent returns one event or model.ErrNotFound.
func (s *Store) GetEmailEvent(_ context.Context, id int64) (*model.EmailEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			e := s.events[i]
			return &e, nil
		}
	}
	return nil, model.ErrNotFound
}

// Ping always succeeds; it lets the store stand in for the database in
// health checks.
func (s *Store) Ping(context.Context) error { return nil }
