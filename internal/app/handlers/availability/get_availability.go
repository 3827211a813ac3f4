package availability

import (
	"context"
	"errors"
	"time"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainrange "staybook/internal/domain/shared/daterange"
)

const GetAvailabilityKey = "availability.get"

// MaxWindowNights bounds a single availability read.
const MaxWindowNights = 731

type GetAvailabilityQuery struct {
	ListingID string    `validate:"required,max=128"`
	From      time.Time `validate:"required"`
	To        time.Time `validate:"required"`
}

func (q GetAvailabilityQuery) Key() string { return GetAvailabilityKey }

type GetAvailabilityHandler struct {
	UoWFactory uow.UoWFactory
}

// Handle lists blocked ranges only; bookings and guests are never exposed.
func (h *GetAvailabilityHandler) Handle(ctx context.Context, q GetAvailabilityQuery) (*dto.Availability, error) {
	window, err := domainrange.New(q.From, q.To)
	if err != nil {
		return nil, &domainbooking.ValidationError{Field: "to", Reason: "must be after from"}
	}
	if window.Nights() > MaxWindowNights {
		return nil, &domainbooking.ValidationError{Field: "to", Reason: "window too large"}
	}

	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	listingID := domainlistings.ListingID(q.ListingID)
	if _, err := unit.Listings().Snapshot(ctx, listingID); err != nil {
		if errors.Is(err, domainlistings.ErrListingNotFound) {
			return nil, &domainbooking.ValidationError{Field: "listing_id", Reason: "unknown listing"}
		}
		return nil, domainbooking.Persistence("load listing", err)
	}

	checker := domainavailability.Checker{Intervals: unit.Intervals(), Bookings: unit.Bookings()}
	blocked, err := checker.Blocked(ctx, listingID, window)
	if err != nil {
		return nil, domainbooking.Persistence("read availability", err)
	}
	return dto.MapAvailability(q.ListingID, window, blocked), nil
}

var _ queries.Handler[GetAvailabilityQuery, *dto.Availability] = (*GetAvailabilityHandler)(nil)
