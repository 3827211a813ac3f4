package availability

import (
	"context"
	"errors"
	"sort"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

var (
	ErrOverlappingRange = errors.New("availability: range overlaps with an existing stay")
	ErrIntervalNotFound = errors.New("availability: interval not found")
)

// Interval is a committed stay occupying nights on a listing.
type Interval struct {
	ListingID listings.ListingID
	BookingID booking.BookingID
	Range     daterange.DateRange
}

// IntervalStore is the source of truth for occupancy. Reserve must fail with
// ErrOverlappingRange, at the latest on commit, if any night is already held.
type IntervalStore interface {
	Overlapping(ctx context.Context, listingID listings.ListingID, r daterange.DateRange) ([]Interval, error)
	Reserve(ctx context.Context, interval Interval) error
	Release(ctx context.Context, listingID listings.ListingID, bookingID booking.BookingID) error
}

// SortIntervals orders by check-in, then booking id.
func SortIntervals(items []Interval) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Range.CheckIn.Equal(items[j].Range.CheckIn) {
			return items[i].BookingID < items[j].BookingID
		}
		return items[i].Range.CheckIn.Before(items[j].Range.CheckIn)
	})
}

// IntervalFor builds the interval a booking occupies.
func IntervalFor(b *booking.Booking) Interval {
	return Interval{ListingID: b.ListingID, BookingID: b.ID, Range: b.Range}
}
