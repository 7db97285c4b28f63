package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/session-booking/internal/model"
	"github.com/Shivanand-hulikatti/session-booking/internal/repository/memstore"
	"github.com/Shivanand-hulikatti/session-booking/internal/roster"
	"github.com/Shivanand-hulikatti/session-booking/internal/service"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) BookingConfirmed(ctx context.Context, b model.Booking) {
	m.Called(ctx, b)
}

func (m *mockNotifier) BookingCancelled(ctx context.Context, b model.Booking) {
	m.Called(ctx, b)
}

// The fixed clock sits the morning before 2024-09-10.
var deskNow = time.Date(2024, 9, 9, 9, 0, 0, 0, time.UTC)

func newDesk(t *testing.T) (*service.Desk, *service.Ledger, *mockNotifier) {
	t.Helper()
	store := memstore.New()
	ledger := service.NewLedger(store, store, discard)
	r := roster.Default("admin@example.com")
	n := &mockNotifier{}
	window := service.BookingWindow{
		Location:    time.UTC,
		CutoffHour:  14,
		HorizonDays: 60,
		Now:         func() time.Time { return deskNow },
	}
	desk := service.NewDesk(ledger, r, n, window, service.DefaultCatalog(r.Subjects(), r.Teachers()), discard)
	return desk, ledger, n
}

func scienceRequest() model.CreateBookingRequest {
	return model.CreateBookingRequest{
		BookingType:       "Live Class",
		SchoolName:        "Oak Elementary",
		Grade:             "5",
		Curriculum:        "CBSE",
		Subject:           "Science",
		Date:              "2024-09-10",
		Slot:              "10:00–10:40",
		SalespersonName:   "Ravi",
		SalespersonNumber: "9876543210",
		SalespersonEmail:  "ravi@example.com",
	}
}

func TestDesk_BookAssignsFirstAvailableTeacher(t *testing.T) {
	ctx := context.Background()
	desk, ledger, n := newDesk(t)
	n.On("BookingConfirmed", mock.Anything, mock.AnythingOfType("model.Booking")).Return()

	_, err := ledger.RecordUnavailability(ctx, model.UnavailabilityRequest{Teacher: "Kalpana Ma'am", Date: "2024-09-10"})
	require.NoError(t, err)

	b, err := desk.Book(ctx, scienceRequest())
	require.NoError(t, err)
	assert.Equal(t, "Payal", b.Teacher)

	// Payal is now busy in that slot; a second school gets Sneha.
	req := scienceRequest()
	req.SchoolName = "Pine High"
	b2, err := desk.Book(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "Sneha", b2.Teacher)

	req.SchoolName = "Elm Academy"
	_, err = desk.Book(ctx, req)
	require.ErrorIs(t, err, model.ErrValidation)
	assert.Contains(t, err.Error(), "no teacher available")

	desk.Wait()
	n.AssertNumberOfCalls(t, "BookingConfirmed", 2)
}

func TestDesk_BookTrimsBeforeValidating(t *testing.T) {
	ctx := context.Background()
	desk, _, n := newDesk(t)
	n.On("BookingConfirmed", mock.Anything, mock.AnythingOfType("model.Booking")).Return()

	req := scienceRequest()
	req.Date = " 2024-09-10 "
	req.SalespersonEmail = " ravi@example.com\t"
	req.Slot = " 10:00–10:40"
	req.Subject = "Science "
	req.Teacher = "  "

	b, err := desk.Book(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "2024-09-10", b.Date)
	assert.Equal(t, "ravi@example.com", b.SalespersonEmail)
	assert.Equal(t, "10:00–10:40", b.Slot)
	assert.Equal(t, "Kalpana Ma'am", b.Teacher)

	desk.Wait()
	n.AssertNumberOfCalls(t, "BookingConfirmed", 1)
}

func TestDesk_BookKeepsExplicitTeacher(t *testing.T) {
	desk, _, n := newDesk(t)
	n.On("BookingConfirmed", mock.Anything, mock.Anything).Return()

	req := scienceRequest()
	req.Teacher = "Sneha"
	b, err := desk.Book(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "Sneha", b.Teacher)

	desk.Wait()
	n.AssertCalled(t, "BookingConfirmed", mock.Anything, *b)
}

func TestDesk_BookRejectsBeforeTouchingLedger(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(r *model.CreateBookingRequest)
		field string
	}{
		{"today", func(r *model.CreateBookingRequest) { r.Date = "2024-09-09" }, "date"},
		{"beyond horizon", func(r *model.CreateBookingRequest) { r.Date = "2025-01-01" }, "date"},
		{"bad date format", func(r *model.CreateBookingRequest) { r.Date = "10-09-2024" }, "date"},
		{"unknown slot", func(r *model.CreateBookingRequest) { r.Slot = "09:00–09:40" }, "slot"},
		{"unknown subject", func(r *model.CreateBookingRequest) { r.Subject = "Art" }, "subject"},
		{"bad email", func(r *model.CreateBookingRequest) { r.SalespersonEmail = "ravi" }, "salesperson_email"},
		{"missing school", func(r *model.CreateBookingRequest) { r.SchoolName = "" }, "school_name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			desk, ledger, n := newDesk(t)
			req := scienceRequest()
			tt.edit(&req)

			_, err := desk.Book(context.Background(), req)
			require.ErrorIs(t, err, model.ErrValidation)
			var ve *model.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)

			all, err := ledger.ListBookings(context.Background(), model.BookingFilter{})
			require.NoError(t, err)
			assert.Empty(t, all)
			desk.Wait()
			n.AssertNotCalled(t, "BookingConfirmed", mock.Anything, mock.Anything)
		})
	}
}

func TestDesk_BookConflictDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	desk, _, n := newDesk(t)
	n.On("BookingConfirmed", mock.Anything, mock.Anything).Return().Once()

	_, err := desk.Book(ctx, scienceRequest())
	require.NoError(t, err)
	req := scienceRequest()
	req.Teacher = "Sneha"
	_, err = desk.Book(ctx, req)
	require.ErrorIs(t, err, model.ErrDuplicateSchoolSlot)

	desk.Wait()
	n.AssertExpectations(t)
}

func TestDesk_Cancel(t *testing.T) {
	ctx := context.Background()
	desk, _, n := newDesk(t)
	n.On("BookingConfirmed", mock.Anything, mock.Anything).Return()
	n.On("BookingCancelled", mock.Anything, mock.Anything).Return()

	b, err := desk.Book(ctx, scienceRequest())
	require.NoError(t, err)

	cancelled, err := desk.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, cancelled.ID)

	_, err = desk.Cancel(ctx, b.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	desk.Wait()
	n.AssertNumberOfCalls(t, "BookingCancelled", 1)
}

func TestDesk_NotificationOutlivesRequestContext(t *testing.T) {
	desk, _, n := newDesk(t)
	var notifyCtxErr error
	n.On("BookingConfirmed", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		notifyCtxErr = args.Get(0).(context.Context).Err()
	}).Return()

	ctx, cancel := context.WithCancel(context.Background())
	_, err := desk.Book(ctx, scienceRequest())
	require.NoError(t, err)
	cancel()

	desk.Wait()
	assert.NoError(t, notifyCtxErr)
}

func TestDesk_Candidates(t *testing.T) {
	ctx := context.Background()
	desk, ledger, _ := newDesk(t)
	slot := "10:00–10:40"
	_, err := ledger.RecordUnavailability(ctx, model.UnavailabilityRequest{Teacher: "Payal", Date: "2024-09-10", Slot: &slot})
	require.NoError(t, err)

	got, err := desk.Candidates(ctx, "Science", "2024-09-10", slot)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Kalpana Ma'am", got[0].Teacher)
	assert.True(t, got[0].Available)
	assert.False(t, got[1].Available)
	assert.Equal(t, model.ReasonSlotBlocked, got[1].Reason)

	none, err := desk.Candidates(ctx, "Art", "2024-09-10", slot)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = desk.Candidates(ctx, "", "2024-09-10", slot)
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestDefaultCatalog(t *testing.T) {
	c := service.DefaultCatalog([]string{"Hindi"}, []string{"Bharti Ma'am"})
	assert.Equal(t, []string{"LiveClass", "ProductTraining"}, c.BookingTypes)
	assert.Len(t, c.Slots, 8)
	assert.Equal(t, []string{"Hindi"}, c.Subjects)
	assert.Contains(t, c.Curricula, "State Board")
	assert.Equal(t, []string{"Bharti Ma'am"}, c.Teachers)
}
