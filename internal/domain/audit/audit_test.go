package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/booking"
)

type sliceRepo struct {
	entries []Entry
	err     error
}

func (r *sliceRepo) Append(_ context.Context, e Entry) error {
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *sliceRepo) ListByBooking(_ context.Context, id booking.BookingID) ([]Entry, error) {
	return r.entries, nil
}

func TestRecordFillsEntry(t *testing.T) {
	repo := &sliceRepo{}
	rec := Recorder{Repo: repo, IDGenerator: func() string { return "e-1" }}
	meta := map[string]string{"nights": "4"}
	at := time.Date(2024, 11, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))

	err := rec.Record(context.Background(), RecordParams{
		BookingID: "b-1",
		NewStatus: booking.StatusPending,
		Actor:     booking.Guest("g-1"),
		Metadata:  meta,
		At:        at,
	})
	require.NoError(t, err)
	require.Len(t, repo.entries, 1)
	got := repo.entries[0]
	assert.Equal(t, "e-1", got.ID)
	assert.Equal(t, EventCreated, got.EventType)
	assert.Equal(t, "g-1", got.TriggeredBy)
	assert.Equal(t, booking.ActorGuest, got.ActorType)
	assert.Equal(t, time.UTC, got.CreatedAt.Location())

	meta["nights"] = "99"
	assert.Equal(t, "4", got.Metadata["nights"], "metadata is copied")
}

func TestRecordSystemActorHasNoTrigger(t *testing.T) {
	repo := &sliceRepo{}
	require.NoError(t, Recorder{Repo: repo}.Record(context.Background(), RecordParams{
		BookingID:      "b-1",
		PreviousStatus: booking.StatusCheckedOut,
		NewStatus:      booking.StatusCompleted,
		Actor:          booking.System(),
	}))
	assert.Empty(t, repo.entries[0].TriggeredBy)
	assert.Equal(t, EventCompleted, repo.entries[0].EventType)
}

func TestRecordFailureIsPersistenceError(t *testing.T) {
	rec := Recorder{Repo: &sliceRepo{err: errors.New("write timeout")}}
	err := rec.Record(context.Background(), RecordParams{BookingID: "b-1", NewStatus: booking.StatusConfirmed, Actor: booking.Host("h")})
	assert.ErrorIs(t, err, booking.ErrPersistence)

	err = Recorder{}.Record(context.Background(), RecordParams{})
	assert.ErrorIs(t, err, booking.ErrPersistence)
}

func TestEventTypeFor(t *testing.T) {
	assert.Equal(t, EventCheckedIn, EventTypeFor(booking.StatusCheckedIn))
	assert.Equal(t, EventStatusChanged, EventTypeFor(booking.Status("archived")))
}
