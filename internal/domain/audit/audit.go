package audit

import (
	"context"
	"errors"
	"time"

	"staybook/internal/domain/booking"
)

type EventType string

const (
	EventCreated       EventType = "created"
	EventConfirmed     EventType = "confirmed"
	EventRejected      EventType = "rejected"
	EventCancelled     EventType = "cancelled"
	EventStatusChanged EventType = "status_changed"
	EventCheckedIn     EventType = "checked_in"
	EventCheckedOut    EventType = "checked_out"
	EventCompleted     EventType = "completed"
)

// EventTypeFor maps a lifecycle target to its log event type.
func EventTypeFor(to booking.Status) EventType {
	switch to {
	case booking.StatusPending:
		return EventCreated
	case booking.StatusConfirmed:
		return EventConfirmed
	case booking.StatusRejected:
		return EventRejected
	case booking.StatusCancelled:
		return EventCancelled
	case booking.StatusCheckedIn:
		return EventCheckedIn
	case booking.StatusCheckedOut:
		return EventCheckedOut
	case booking.StatusCompleted:
		return EventCompleted
	}
	return EventStatusChanged
}

// Entry is one immutable line of a booking's history.
type Entry struct {
	ID             string
	BookingID      booking.BookingID
	Sequence       int
	EventType      EventType
	PreviousStatus booking.Status
	NewStatus      booking.Status
	TriggeredBy    string
	ActorType      booking.ActorType
	Reason         string
	Metadata       map[string]string
	CreatedAt      time.Time
}

// Repository is append-only: there is no update or delete.
type Repository interface {
	Append(ctx context.Context, entry Entry) error
	ListByBooking(ctx context.Context, id booking.BookingID) ([]Entry, error)
}

var ErrRepositoryMissing = errors.New("audit: repository missing")

type RecordParams struct {
	BookingID      booking.BookingID
	EventType      EventType
	PreviousStatus booking.Status
	NewStatus      booking.Status
	Actor          booking.Actor
	Reason         string
	Metadata       map[string]string
	At             time.Time
}

// Recorder appends entries and escalates every failure to a persistence
// error so the enclosing unit of work rolls back.
type Recorder struct {
	Repo        Repository
	IDGenerator func() string
}

func (r Recorder) Record(ctx context.Context, p RecordParams) error {
	if r.Repo == nil {
		return booking.Persistence("audit append", ErrRepositoryMissing)
	}
	if p.EventType == "" {
		p.EventType = EventTypeFor(p.NewStatus)
	}
	meta := make(map[string]string, len(p.Metadata))
	for k, v := range p.Metadata {
		meta[k] = v
	}
	entry := Entry{
		BookingID:      p.BookingID,
		EventType:      p.EventType,
		PreviousStatus: p.PreviousStatus,
		NewStatus:      p.NewStatus,
		ActorType:      p.Actor.Type,
		Reason:         p.Reason,
		Metadata:       meta,
		CreatedAt:      p.At.UTC(),
	}
	if p.Actor.Type != booking.ActorSystem {
		entry.TriggeredBy = p.Actor.ID
	}
	if r.IDGenerator != nil {
		entry.ID = r.IDGenerator()
	}
	if err := r.Repo.Append(ctx, entry); err != nil {
		return &booking.PersistenceError{Op: "audit append", Err: err}
	}
	return nil
}
