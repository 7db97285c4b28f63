package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/session-booking/internal/model"
	"github.com/Shivanand-hulikatti/session-booking/internal/repository/memstore"
	"github.com/Shivanand-hulikatti/session-booking/internal/roster"
	"github.com/Shivanand-hulikatti/session-booking/internal/service"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, msg Message) error {
	return m.Called(ctx, msg).Error(0)
}

const rosterYAML = `
subjects:
  - name: Science
    teachers: [Payal]
teachers:
  - name: Payal
    email: payal@example.com
`

func setup(t *testing.T) (*Dispatcher, *mockSender, *memstore.Store) {
	t.Helper()
	r, err := roster.Parse([]byte(rosterYAML), "admin@example.com")
	require.NoError(t, err)
	store := memstore.New()
	ledger := service.NewLedger(store, store, discard)
	sender := &mockSender{}
	return NewDispatcher(sender, r, ledger, "bookings@example.com", discard), sender, store
}

func booking() model.Booking {
	return model.Booking{
		ID:               7,
		BookingType:      model.LiveClass,
		SchoolName:       "Oak Elementary",
		Grade:            "5",
		Subject:          "Science",
		Date:             "2024-09-10",
		Slot:             "10:00–10:40",
		SalespersonName:  "Ravi",
		SalespersonEmail: "ravi@example.com",
		Teacher:          "Payal",
	}
}

func to(addr string) any {
	return mock.MatchedBy(func(m Message) bool { return m.To == addr })
}

func TestBookingConfirmed_MailsThreeRecipients(t *testing.T) {
	ctx := context.Background()
	d, sender, store := setup(t)
	sender.On("Send", mock.Anything, to("ravi@example.com")).Return(nil)
	sender.On("Send", mock.Anything, to("payal@example.com")).Return(nil)
	sender.On("Send", mock.Anything, to("admin@example.com")).Return(errors.New("mailbox full"))

	d.BookingConfirmed(ctx, booking())
	sender.AssertExpectations(t)

	for _, call := range sender.Calls {
		m := call.Arguments.Get(1).(Message)
		assert.Equal(t, "bookings@example.com", m.From)
		assert.NotEmpty(t, m.ID)
		switch m.To {
		case "ravi@example.com":
			assert.NotContains(t, m.Body, "Payal", "salesperson copy hides the teacher")
		case "payal@example.com":
			assert.NotContains(t, m.Body, "ravi@example.com", "teacher copy hides the salesperson")
			assert.Contains(t, m.Body, "Topic: N/A")
		case "admin@example.com":
			assert.Contains(t, m.Body, "Teacher: Payal")
			assert.Contains(t, m.Body, "Salesperson Email: ravi@example.com")
		}
	}

	events, err := store.ListEmailEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "admin@example.com", events[0].ToAddr)
	assert.Equal(t, model.EmailFailed, events[0].Status)
	assert.Equal(t, "mailbox full", events[0].Error)
	assert.Equal(t, model.EmailSent, events[1].Status)
	assert.NotEmpty(t, events[1].Body)
}

func TestBookingCancelled_TeacherFallsBackToAdmin(t *testing.T) {
	ctx := context.Background()
	d, sender, store := setup(t)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil)

	b := booking()
	b.Teacher = "Sneha"
	d.BookingCancelled(ctx, b)

	require.Len(t, sender.Calls, 2)
	assert.Equal(t, "admin@example.com", sender.Calls[1].Arguments.Get(1).(Message).To)

	events, err := store.ListEmailEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestSend_SkipsEmptyRecipient(t *testing.T) {
	ctx := context.Background()
	r := roster.Default("")
	store := memstore.New()
	sender := &mockSender{}
	d := NewDispatcher(sender, r, service.NewLedger(store, store, discard), "", discard)
	sender.On("Send", mock.Anything, mock.Anything).Return(nil)

	d.BookingConfirmed(ctx, booking())

	// Only the salesperson has an address.
	sender.AssertNumberOfCalls(t, "Send", 1)
	events, err := store.ListEmailEvents(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestReminder(t *testing.T) {
	d, sender, _ := setup(t)
	sender.On("Send", mock.Anything, to("payal@example.com")).Return(nil)

	second := booking()
	second.SchoolName = "Pine High"
	second.Slot = "11:20–12:00"
	d.Reminder(context.Background(), "Payal", "2024-09-10", []model.Booking{booking(), second})

	m := sender.Calls[0].Arguments.Get(1).(Message)
	assert.Equal(t, "Reminder: sessions on 2024-09-10", m.Subject)
	assert.Contains(t, m.Body, "2 session(s)")
	assert.Contains(t, m.Body, "Pine High")
}

func TestLog_ListAndResend(t *testing.T) {
	ctx := context.Background()
	d, sender, store := setup(t)
	sender.On("Send", mock.Anything, to("ravi@example.com")).Return(errors.New("timeout")).Once()
	sender.On("Send", mock.Anything, to("ravi@example.com")).Return(nil).Once()
	sender.On("Send", mock.Anything, to("payal@example.com")).Return(nil)

	d.BookingCancelled(ctx, booking())
	log := NewLog(store, d)

	events, err := log.List(ctx, 0)
	require.NoError(t, err)
	var failed model.EmailEvent
	for _, e := range events {
		if e.ToAddr == "ravi@example.com" {
			failed = e
		}
	}
	require.Equal(t, model.EmailFailed, failed.Status)

	again, err := log.Resend(ctx, failed.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EmailSent, again.Status)
	assert.Equal(t, failed.Subject, again.Subject)

	after, err := log.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, after, len(events)+1, "resend appends a new event")

	_, err = log.Resend(ctx, 9999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestLogSender(t *testing.T) {
	assert.NoError(t, NewLogSender(discard).Send(context.Background(), Message{To: "a@example.com"}))
}

func TestPublishing(t *testing.T) {
	m := Message{ID: "abc", To: "a@example.com", Subject: "Hi", Body: "Body", Created: time.Unix(1700000000, 0).UTC()}
	pub, err := publishing(m)
	require.NoError(t, err)

	assert.Equal(t, "application/json", pub.ContentType)
	assert.Equal(t, amqp.Persistent, pub.DeliveryMode)
	assert.Equal(t, "abc", pub.MessageId)
	assert.Equal(t, m.Created, pub.Timestamp)

	var decoded Message
	require.NoError(t, json.Unmarshal(pub.Body, &decoded))
	assert.Equal(t, m.To, decoded.To)
	assert.Equal(t, m.Body, decoded.Body)
	assert.True(t, m.Created.Equal(decoded.Created))
}
