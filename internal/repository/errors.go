package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Shivanand-hulikatti/session-booking/internal/model"
)

const (
	uniqueViolation = "23505"

	schoolSlotConstraint  = "bookings_school_subject_date_slot_key"
	teacherSlotConstraint = "bookings_teacher_date_slot_key"
)

// mapWriteError turns a unique violation on one of the booking constraints
// into the matching ledger conflict. Other errors pass through unchanged.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch pgErr.ConstraintName {
	case schoolSlotConstraint:
		return errors.Join(model.ErrDuplicateSchoolSlot, err)
	case teacherSlotConstraint:
		return errors.Join(model.ErrTeacherDoubleBooking, err)
	}
	return err
}
