package booking

import (
	"context"

	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

const (
	GetBookingKey        = "booking.get"
	GetBookingHistoryKey = "booking.history"
)

type GetBookingQuery struct {
	BookingID string              `validate:"required"`
	Actor     domainbooking.Actor `validate:"-"`
}

func (q GetBookingQuery) Key() string { return GetBookingKey }

func (q GetBookingQuery) ActingAs() domainbooking.Actor { return q.Actor }

type GetBookingHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHandler) Handle(ctx context.Context, q GetBookingQuery) (*dto.Booking, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	booking, err := loadAuthorized(ctx, unit, domainbooking.BookingID(q.BookingID), q.Actor)
	if err != nil {
		return nil, err
	}
	return dto.MapBooking(booking), nil
}

// GetBookingHistoryQuery returns the activity log oldest first.
type GetBookingHistoryQuery struct {
	BookingID string              `validate:"required"`
	Actor     domainbooking.Actor `validate:"-"`
}

func (q GetBookingHistoryQuery) Key() string { return GetBookingHistoryKey }

func (q GetBookingHistoryQuery) ActingAs() domainbooking.Actor { return q.Actor }

type GetBookingHistoryHandler struct {
	UoWFactory uow.UoWFactory
}

func (h *GetBookingHistoryHandler) Handle(ctx context.Context, q GetBookingHistoryQuery) (*dto.History, error) {
	unit, ctx, cleanup, err := support.BeginReadOnlyUnit(ctx, h.UoWFactory)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	booking, err := loadAuthorized(ctx, unit, domainbooking.BookingID(q.BookingID), q.Actor)
	if err != nil {
		return nil, err
	}
	entries, err := unit.Activity().ListByBooking(ctx, booking.ID)
	if err != nil {
		return nil, domainbooking.Persistence("list activity", err)
	}
	return dto.MapHistory(booking.ID, entries), nil
}

var _ queries.Handler[GetBookingQuery, *dto.Booking] = (*GetBookingHandler)(nil)
var _ queries.Handler[GetBookingHistoryQuery, *dto.History] = (*GetBookingHistoryHandler)(nil)
