package booking

import (
	"context"
	"time"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

const ListDueForCompletionKey = "booking.due_for_completion"

// ListDueForCompletionQuery finds checked-out stays whose grace window closed
// before Now.
type ListDueForCompletionQuery struct {
	Now   time.Time
	Grace time.Duration
	Limit int
}

func (q ListDueForCompletionQuery) Key() string { return ListDueForCompletionKey }

type ListDueForCompletionHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *ListDueForCompletionHandler) Handle(ctx context.Context, q ListDueForCompletionQuery) (*dto.DueBookings, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	due, err := unit.Bookings().ListCheckedOutBefore(ctx, q.Now.UTC().Add(-q.Grace), limit)
	if err != nil {
		return nil, domainbooking.Persistence("list due bookings", err)
	}
	out := &dto.DueBookings{IDs: make([]string, 0, len(due))}
	for _, b := range due {
		out.IDs = append(out.IDs, string(b.ID))
	}
	return out, nil
}

var _ queries.Handler[ListDueForCompletionQuery, *dto.DueBookings] = (*ListDueForCompletionHandler)(nil)
