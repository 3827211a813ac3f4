package availability

import (
	"context"
	"errors"

	"staybook/internal/domain/booking"
	"staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

// BookingLookup resolves interval owners.
type BookingLookup interface {
	ByID(ctx context.Context, id booking.BookingID) (*booking.Booking, error)
}

// Checker answers free/blocked questions for a listing. Callers must pass
// a valid range; inverted or empty ranges are rejected upstream.
type Checker struct {
	Intervals IntervalStore
	Bookings  BookingLookup
}

var ErrCheckerMisconfigured = errors.New("availability: checker misconfigured")

func (c Checker) IsAvailable(ctx context.Context, listingID listings.ListingID, r daterange.DateRange) (bool, error) {
	conflicts, err := c.FindConflicts(ctx, listingID, r)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// FindConflicts returns the live bookings whose nights intersect r.
func (c Checker) FindConflicts(ctx context.Context, listingID listings.ListingID, r daterange.DateRange) ([]*booking.Booking, error) {
	if c.Intervals == nil || c.Bookings == nil {
		return nil, ErrCheckerMisconfigured
	}
	intervals, err := c.Intervals.Overlapping(ctx, listingID, r)
	if err != nil {
		return nil, err
	}
	SortIntervals(intervals)
	out := make([]*booking.Booking, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.Range.Overlaps(r) {
			continue
		}
		b, err := c.Bookings.ByID(ctx, iv.BookingID)
		if err != nil {
			if errors.Is(err, booking.ErrBookingNotFound) {
				// Interval without a row still blocks the nights.
				out = append(out, &booking.Booking{ID: iv.BookingID, ListingID: listingID, Range: iv.Range, Status: booking.StatusPending})
				continue
			}
			return nil, err
		}
		if !b.HoldsNights() {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Blocked lists occupied ranges clipped to window, merging stays that touch.
// It never exposes who holds the nights.
func (c Checker) Blocked(ctx context.Context, listingID listings.ListingID, window daterange.DateRange) ([]daterange.DateRange, error) {
	if c.Intervals == nil {
		return nil, ErrCheckerMisconfigured
	}
	intervals, err := c.Intervals.Overlapping(ctx, listingID, window)
	if err != nil {
		return nil, err
	}
	SortIntervals(intervals)
	out := make([]daterange.DateRange, 0, len(intervals))
	for _, iv := range intervals {
		clipped, ok := iv.Range.Clip(window)
		if !ok {
			continue
		}
		if n := len(out); n > 0 {
			if merged, ok := out[n-1].Merge(clipped); ok {
				out[n-1] = merged
				continue
			}
		}
		out = append(out, clipped)
	}
	return out, nil
}
