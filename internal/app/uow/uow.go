package uow

import (
	"context"

	"staybook/internal/app/outbox"
	domainaudit "staybook/internal/domain/audit"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
)

// UnitOfWork coordinates repositories inside a transaction boundary. Either
// everything staged through it becomes visible on Commit or nothing does.
type UnitOfWork interface {
	Listings() domainlistings.Reader
	Bookings() domainbooking.Repository
	Intervals() domainavailability.IntervalStore
	Activity() domainaudit.Repository
	Outbox() outbox.Outbox

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances.
type UoWFactory interface {
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}
