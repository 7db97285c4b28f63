// Package model defines the core domain types for the session booking system.
package model

import (
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

// BookingType distinguishes live classes from product-training sessions.
type BookingType string

const (
	LiveClass       BookingType = "LiveClass"
	ProductTraining BookingType = "ProductTraining"
)

// ParseBookingType accepts the enum values as well as the spaced labels
// shown to salespeople ("Live Class", "Product Training").
func ParseBookingType(s string) (BookingType, bool) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "")) {
	case "liveclass":
		return LiveClass, true
	case "producttraining":
		return ProductTraining, true
	}
	return "", false
}

// Booking is a confirmed reservation of a teacher for a school/subject
// at a given date and slot.
type Booking struct {
	ID                int64       `json:"id"`
	BookingType       BookingType `json:"booking_type"`
	SchoolName        string      `json:"school_name"`
	TitleUsed         string      `json:"title_used,omitempty"`
	Grade             string      `json:"grade,omitempty"`
	Curriculum        string      `json:"curriculum,omitempty"`
	Subject           string      `json:"subject"`
	Date              string      `json:"date"`
	Slot              string      `json:"slot"`
	Topic             string      `json:"topic,omitempty"`
	SalespersonName   string      `json:"salesperson_name"`
	SalespersonNumber string      `json:"salesperson_number"`
	SalespersonEmail  string      `json:"salesperson_email"`
	Teacher           string      `json:"teacher"`
	CreatedAt         time.Time   `json:"created_at"`
}

// SchoolSlot returns the (school, subject, date, slot) key of the booking.
func (b *Booking) SchoolSlot() SchoolSlotKey {
	return SchoolSlotKey{SchoolName: b.SchoolName, Subject: b.Subject, Date: b.Date, Slot: b.Slot}
}

// TeacherSlot returns the (teacher, date, slot) key of the booking.
func (b *Booking) TeacherSlot() TeacherSlotKey {
	return TeacherSlotKey{Teacher: b.Teacher, Date: b.Date, Slot: b.Slot}
}

// SchoolSlotKey identifies the unique school booking of a subject in a slot.
type SchoolSlotKey struct {
	SchoolName string `json:"school_name"`
	Subject    string `json:"subject"`
	Date       string `json:"date"`
	Slot       string `json:"slot"`
}

// TeacherSlotKey identifies a teacher's slot on a date.
type TeacherSlotKey struct {
	Teacher string `json:"teacher"`
	Date    string `json:"date"`
	Slot    string `json:"slot"`
}

// CreateBookingRequest is the payload for creating a booking. Teacher may be
// left empty when the caller wants one assigned from the roster.
type CreateBookingRequest struct {
	BookingType       string `json:"booking_type" validate:"required"`
	SchoolName        string `json:"school_name" validate:"required"`
	TitleUsed         string `json:"title_used"`
	Grade             string `json:"grade"`
	Curriculum        string `json:"curriculum"`
	Subject           string `json:"subject" validate:"required"`
	Date              string `json:"date" validate:"required,datetime=2006-01-02"`
	Slot              string `json:"slot" validate:"required"`
	Topic             string `json:"topic"`
	SalespersonName   string `json:"salesperson_name" validate:"required"`
	SalespersonNumber string `json:"salesperson_number" validate:"required"`
	SalespersonEmail  string `json:"salesperson_email" validate:"required,email"`
	Teacher           string `json:"teacher"`
}

// Trimmed returns a copy of r with surrounding whitespace removed from every
// field.
func (r CreateBookingRequest) Trimmed() CreateBookingRequest {
	for _, f := range []*string{
		&r.BookingType, &r.SchoolName, &r.TitleUsed, &r.Grade, &r.Curriculum,
		&r.Subject, &r.Date, &r.Slot, &r.Topic,
		&r.SalespersonName, &r.SalespersonNumber, &r.SalespersonEmail, &r.Teacher,
	} {
		*f = strings.TrimSpace(*f)
	}
	return r
}

// BookingFilter narrows ListBookings. Empty fields match everything.
type BookingFilter struct {
	SalespersonEmail string
	SchoolName       string
	Subject          string
	Teacher          string
	Date             string
}

// Unavailability is a teacher-declared blackout. A nil Slot blocks the
// whole date.
type Unavailability struct {
	ID      int64   `json:"id"`
	Teacher string  `json:"teacher"`
	Date    string  `json:"date"`
	Slot    *string `json:"slot"`
}

// FullDay reports whether the record blocks the entire date.
func (u *Unavailability) FullDay() bool {
	return u.Slot == nil
}

// UnavailabilityRequest is the payload for recording a blackout.
type UnavailabilityRequest struct {
	Teacher string  `json:"teacher" validate:"required"`
	Date    string  `json:"date" validate:"required,datetime=2006-01-02"`
	Slot    *string `json:"slot"`
}

// AvailabilityReason explains why a teacher cannot take a slot.
type AvailabilityReason string

const (
	ReasonFullDayBlocked AvailabilityReason = "full_day_blocked"
	ReasonSlotBlocked    AvailabilityReason = "slot_blocked"
	ReasonAlreadyBooked  AvailabilityReason = "already_booked"
)

// Availability is the answer to an availability query.
type Availability struct {
	Teacher   string             `json:"teacher"`
	Date      string             `json:"date"`
	Slot      string             `json:"slot,omitempty"`
	Available bool               `json:"available"`
	Reason    AvailabilityReason `json:"reason,omitempty"`
}

// EmailStatus is the outcome of one send attempt.
type EmailStatus string

const (
	EmailSent   EmailStatus = "sent"
	EmailFailed EmailStatus = "failed"
)

// EmailEvent is an append-only audit record of a notification attempt.
type EmailEvent struct {
	ID      int64       `json:"id"`
	TS      time.Time   `json:"ts"`
	ToAddr  string      `json:"to"`
	Subject string      `json:"subject"`
	Status  EmailStatus `json:"status"`
	Error   string      `json:"error,omitempty"`
	Body    string      `json:"-"`
}

// Catalog lists the choices offered to salespeople.
type Catalog struct {
	BookingTypes []string `json:"booking_types"`
	Slots        []string `json:"slots"`
	Subjects     []string `json:"subjects"`
	Curricula    []string `json:"curricula"`
	Teachers     []string `json:"teachers"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
	Key   any    `json:"key,omitempty"`
}

// BookingResult summarises the outcome of a single booking attempt.
// Used in the concurrent test harness.
type BookingResult struct {
	Booking *Booking
	Err     error
}
