package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

type fakeIntervals struct {
	items []Interval
}

func (f *fakeIntervals) Overlapping(_ context.Context, listingID listings.ListingID, r daterange.DateRange) ([]Interval, error) {
	var out []Interval
	for _, iv := range f.items {
		if iv.ListingID == listingID && iv.Range.Overlaps(r) {
			out = append(out, iv)
		}
	}
	return out, nil
}

func (f *fakeIntervals) Reserve(_ context.Context, iv Interval) error {
	f.items = append(f.items, iv)
	return nil
}

func (f *fakeIntervals) Release(_ context.Context, listingID listings.ListingID, id booking.BookingID) error {
	return nil
}

type fakeBookings map[booking.BookingID]*booking.Booking

func (f fakeBookings) ByID(_ context.Context, id booking.BookingID) (*booking.Booking, error) {
	if b, ok := f[id]; ok {
		return b, nil
	}
	return nil, booking.ErrBookingNotFound
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func stay(from, to int) daterange.DateRange {
	return daterange.DateRange{CheckIn: day(from), CheckOut: day(to)}
}

func fixture() Checker {
	bookings := fakeBookings{
		"a": {ID: "a", ListingID: "l-1", Range: stay(1, 5), Status: booking.StatusConfirmed},
		"b": {ID: "b", ListingID: "l-1", Range: stay(5, 8), Status: booking.StatusPending},
		"c": {ID: "c", ListingID: "l-1", Range: stay(12, 14), Status: booking.StatusCancelled},
		"d": {ID: "d", ListingID: "l-2", Range: stay(1, 30), Status: booking.StatusConfirmed},
	}
	intervals := &fakeIntervals{}
	for _, id := range []booking.BookingID{"b", "a", "c", "d"} {
		_ = intervals.Reserve(context.Background(), IntervalFor(bookings[id]))
	}
	return Checker{Intervals: intervals, Bookings: bookings}
}

func TestFindConflicts(t *testing.T) {
	c := fixture()
	ctx := context.Background()

	conflicts, err := c.FindConflicts(ctx, "l-1", stay(3, 6))
	require.NoError(t, err)
	require.Len(t, conflicts, 2)
	assert.Equal(t, booking.BookingID("a"), conflicts[0].ID)
	assert.Equal(t, booking.BookingID("b"), conflicts[1].ID)

	conflicts, err = c.FindConflicts(ctx, "l-1", stay(12, 13))
	require.NoError(t, err)
	assert.Empty(t, conflicts, "cancelled stays do not hold nights")
}

func TestIsAvailableAllowsTurnover(t *testing.T) {
	c := fixture()
	ok, err := c.IsAvailable(context.Background(), "l-1", stay(8, 10))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.IsAvailable(context.Background(), "l-1", stay(7, 10))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlockedClipsAndMerges(t *testing.T) {
	c := fixture()
	blocked, err := c.Blocked(context.Background(), "l-1", stay(3, 20))
	require.NoError(t, err)
	// c is still reserved in the fake store, so it shows up on its own.
	require.Len(t, blocked, 2)
	assert.Equal(t, stay(3, 8), blocked[0])
	assert.Equal(t, stay(12, 14), blocked[1])
}

func TestCheckerRequiresPorts(t *testing.T) {
	_, err := Checker{}.FindConflicts(context.Background(), "l-1", stay(1, 2))
	assert.ErrorIs(t, err, ErrCheckerMisconfigured)
}
