package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/Shivanand-hulikatti/session-booking/internal/model"
)

// DefaultListLimit is used when List is called without a positive limit.
const DefaultListLimit = 200

// EventStore reads back the email audit log.
type EventStore interface {
	ListEmailEvents(ctx context.Context, limit int) ([]model.EmailEvent, error)
	GetEmailEvent(ctx context.Context, id int64) (*model.EmailEvent, error)
}

// Log exposes the audit log to administrators.
type Log struct {
	store      EventStore
	dispatcher *Dispatcher
}

// NewLog constructs a Log.
func NewLog(store EventStore, dispatcher *Dispatcher) *Log {
	return &Log{store: store, dispatcher: dispatcher}
}

// List returns the latest events, newest first.
func (l *Log) List(ctx context.Context, limit int) ([]model.EmailEvent, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	events, err := l.store.ListEmailEvents(ctx, limit)
	if err != nil {
		return nil, &model.StorageError{Op: "list email events", Err: err}
	}
	return events, nil
}

// Resend sends the email behind event id again. The new attempt is logged
// as a new event and returned.
func (l *Log) Resend(ctx context.Context, id int64) (*model.EmailEvent, error) {
	ev, err := l.store.GetEmailEvent(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		return nil, &model.StorageError{Op: "get email event", Err: err}
	}
	if ev.ToAddr == "" {
		return nil, model.Invalid("to", fmt.Sprintf("email event %d has no recipient", id))
	}

	out := l.dispatcher.Resend(ctx, *ev)
	return &out, nil
}
