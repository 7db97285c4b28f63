package service

import (
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/session-booking/internal/model"
)

// BookingWindow decides which dates are open for new bookings. All
// calendar arithmetic happens in Location.
type BookingWindow struct {
	Location *time.Location
	// CutoffHour closes bookings for tomorrow once the local clock reaches
	// it. Zero closes tomorrow all day; 24 never closes it.
	CutoffHour  int
	HorizonDays int
	Now         func() time.Time
}

// Check returns a *model.ValidationError on "date" when date is outside the
// window: not after today, beyond the horizon, or tomorrow past the cutoff.
func (w BookingWindow) Check(date string) error {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}

	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return model.Invalid("date", "must be YYYY-MM-DD")
	}
	local := now().In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	ahead := int(day.Sub(today).Hours() / 24)

	switch {
	case ahead < 1:
		return model.Invalid("date", "must be after today")
	case ahead > w.HorizonDays:
		return model.Invalid("date", fmt.Sprintf("must be within %d days", w.HorizonDays))
	case ahead == 1 && local.Hour() >= w.CutoffHour:
		return model.Invalid("date", fmt.Sprintf("bookings for tomorrow close at %02d:00", w.CutoffHour))
	}
	return nil
}

// Tomorrow returns the next calendar date in the window's location.
func (w BookingWindow) Tomorrow(now time.Time) string {
	loc := w.Location
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).AddDate(0, 0, 1).Format(model.DateLayout)
}
