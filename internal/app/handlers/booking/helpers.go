package booking

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
)

// loadAuthorized fetches a booking and checks the actor against it. Unknown
// bookings and failed checks look the same to the caller.
func loadAuthorized(ctx context.Context, unit uow.UnitOfWork, id domainbooking.BookingID, actor domainbooking.Actor) (*domainbooking.Booking, error) {
	b, err := unit.Bookings().ByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainbooking.ErrBookingNotFound) {
			return nil, domainbooking.ErrForbidden
		}
		return nil, domainbooking.Persistence("load booking", err)
	}
	owner, err := listingOwner(ctx, unit, b.ListingID)
	if err != nil {
		return nil, err
	}
	if err := b.Authorize(actor, owner); err != nil {
		return nil, err
	}
	return b, nil
}

// listingOwner resolves the current host of a listing. A listing that has
// disappeared has no owner, so no host can act on its bookings.
func listingOwner(ctx context.Context, unit uow.UnitOfWork, id domainlistings.ListingID) (domainlistings.HostID, error) {
	snap, err := unit.Listings().Snapshot(ctx, id)
	if err != nil {
		if errors.Is(err, domainlistings.ErrListingNotFound) {
			return "", nil
		}
		return "", domainbooking.Persistence("load listing", err)
	}
	return snap.Host, nil
}

func recordEvents(ctx context.Context, unit uow.UnitOfWork, encoder outbox.EventEncoder, b *domainbooking.Booking) error {
	if err := outbox.RecordDomainEvents(ctx, unit.Outbox(), encoder, b.PullEvents()); err != nil {
		return domainbooking.Persistence("stage events", err)
	}
	return nil
}

func clockOrDefault(c policies.Clock) policies.Clock {
	if c == nil {
		return policies.SystemClock{}
	}
	return c
}

func metricsOrDefault(m policies.Metrics) policies.Metrics {
	if m == nil {
		return policies.NopMetrics{}
	}
	return m
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}

func amount(v int64) string {
	return strconv.FormatInt(v, 10)
}
