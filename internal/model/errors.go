package model

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the ledger matches exactly one of
// these through errors.Is.
var (
	ErrValidation           = errors.New("validation error")
	ErrTeacherUnavailable   = errors.New("teacher is unavailable")
	ErrDuplicateSchoolSlot  = errors.New("school already has this subject booked in the slot")
	ErrTeacherDoubleBooking = errors.New("teacher is already booked in the slot")
	ErrStorage              = errors.New("storage error")
	ErrNotFound             = errors.New("not found")
)

// ValidationError names the offending request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid is shorthand for a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError carries the scheduling key a request collided with. Kind is
// one of ErrTeacherUnavailable, ErrDuplicateSchoolSlot or
// ErrTeacherDoubleBooking; Key is a SchoolSlotKey or TeacherSlotKey.
type ConflictError struct {
	Kind error
	Key  any
}

func (e *ConflictError) Error() string {
	switch k := e.Key.(type) {
	case SchoolSlotKey:
		return fmt.Sprintf("%s: %s / %s on %s %s", e.Kind, k.SchoolName, k.Subject, k.Date, k.Slot)
	case TeacherSlotKey:
		if k.Slot == "" {
			return fmt.Sprintf("%s: %s on %s", e.Kind, k.Teacher, k.Date)
		}
		return fmt.Sprintf("%s: %s on %s %s", e.Kind, k.Teacher, k.Date, k.Slot)
	}
	return e.Kind.Error()
}

func (e *ConflictError) Unwrap() error { return e.Kind }

// StorageError wraps an underlying persistence failure. It is safe to retry
// the whole operation that produced it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStorage, e.Op, e.Err)
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }

// KindOf returns the short machine name of err's kind, or "" if err is not
// a ledger error.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrTeacherUnavailable):
		return "teacher_unavailable"
	case errors.Is(err, ErrDuplicateSchoolSlot):
		return "duplicate_school_slot"
	case errors.Is(err, ErrTeacherDoubleBooking):
		return "teacher_double_booking"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrStorage):
		return "storage"
	}
	return ""
}
