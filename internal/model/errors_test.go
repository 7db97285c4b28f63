package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConflictError_MatchesKind(t *testing.T) {
	err := fmt.Errorf("create booking: %w", &ConflictError{
		Kind: ErrDuplicateSchoolSlot,
		Key:  SchoolSlotKey{SchoolName: "Oak Elementary", Subject: "Math", Date: "2024-09-10", Slot: "10:00–10:40"},
	})

	assert.ErrorIs(t, err, ErrDuplicateSchoolSlot)
	assert.NotErrorIs(t, err, ErrTeacherDoubleBooking)
	assert.Contains(t, err.Error(), "Oak Elementary")

	var ce *ConflictError
	if assert.True(t, errors.As(err, &ce)) {
		assert.Equal(t, "Math", ce.Key.(SchoolSlotKey).Subject)
	}
	assert.Equal(t, "duplicate_school_slot", KindOf(err))
}

func TestStorageError_MatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := &StorageError{Op: "insert booking", Err: cause}

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "storage", KindOf(err))
}

func TestValidationError(t *testing.T) {
	err := Invalid("grade", "is required for LiveClass")

	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation error: grade is required for LiveClass", err.Error())
	assert.Equal(t, "", KindOf(errors.New("other")))
}

func TestParseBookingType(t *testing.T) {
	tests := []struct {
		in   string
		want BookingType
		ok   bool
	}{
		{"LiveClass", LiveClass, true},
		{"Live Class", LiveClass, true},
		{" product training ", ProductTraining, true},
		{"ProductTraining", ProductTraining, true},
		{"Webinar", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseBookingType(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
