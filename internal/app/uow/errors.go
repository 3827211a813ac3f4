package uow

import (
	"context"
	"errors"

	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	"staybook/internal/domain/shared/daterange"
)

// CommitError maps a failed commit onto the booking error taxonomy. A store
// that refuses overlapping nights at commit time reports a date conflict;
// anything else is a retryable persistence failure.
func CommitError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domainavailability.ErrOverlappingRange) {
		return &domainbooking.ConflictError{}
	}
	return domainbooking.Persistence("commit", err)
}

// StayClaim is implemented by commands that reserve nights on a listing.
type StayClaim interface {
	ClaimedStay() (domainlistings.ListingID, daterange.DateRange, bool)
}

// DescribeConflict fills a conflict raised by the store, which carries no
// details, with the live stays now holding the claimed nights. The lookup
// runs in a fresh read-only unit since the failed one may refuse reads.
// Any lookup failure leaves err as it was.
func DescribeConflict(ctx context.Context, factory UoWFactory, claim any, err error) error {
	var conflict *domainbooking.ConflictError
	if factory == nil || !errors.As(err, &conflict) || len(conflict.Conflicts) > 0 {
		return err
	}
	sc, ok := claim.(StayClaim)
	if !ok {
		return err
	}
	listingID, dr, ok := sc.ClaimedStay()
	if !ok {
		return err
	}
	ctx = context.WithoutCancel(ctx)
	unit, beginErr := factory.Begin(ctx, TxOptions{ReadOnly: true})
	if beginErr != nil {
		return err
	}
	defer func() { _ = unit.Rollback(ctx) }()

	checker := domainavailability.Checker{Intervals: unit.Intervals(), Bookings: unit.Bookings()}
	found, lookupErr := checker.FindConflicts(ctx, listingID, dr)
	if lookupErr != nil || len(found) == 0 {
		return err
	}
	return domainbooking.NewConflictError(found)
}
