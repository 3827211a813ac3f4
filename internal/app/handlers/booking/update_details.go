package booking

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

const UpdatePendingDetailsKey = "booking.update_details"

// UpdatePendingDetailsCommand edits guest free text. Nil fields stay as they are.
type UpdatePendingDetailsCommand struct {
	BookingID       string              `validate:"required"`
	Actor           domainbooking.Actor `validate:"-"`
	SpecialRequests *string             `validate:"omitempty,max=2000"`
	Notes           *string             `validate:"omitempty,max=2000"`
	ArrivalTime     *string             `validate:"omitempty,max=32"`
}

func (c UpdatePendingDetailsCommand) Key() string { return UpdatePendingDetailsKey }

func (c UpdatePendingDetailsCommand) ActingAs() domainbooking.Actor { return c.Actor }

type UpdatePendingDetailsHandler struct {
	UoWFactory uow.UoWFactory
	Clock      policies.Clock
}

func (h *UpdatePendingDetailsHandler) Handle(ctx context.Context, cmd UpdatePendingDetailsCommand) (*dto.Booking, error) {
	return support.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) (*dto.Booking, error) {
		booking, err := loadAuthorized(ctx, unit, domainbooking.BookingID(cmd.BookingID), cmd.Actor)
		if err != nil {
			return nil, err
		}
		details := domainbooking.Details{
			SpecialRequests: cmd.SpecialRequests,
			Notes:           cmd.Notes,
			ArrivalTime:     cmd.ArrivalTime,
		}
		if err := booking.UpdateDetails(cmd.Actor, details, clockOrDefault(h.Clock).Now()); err != nil {
			return nil, err
		}
		if err := unit.Bookings().Save(ctx, booking); err != nil {
			return nil, domainbooking.Persistence("save booking", err)
		}
		return dto.MapBooking(booking), nil
	})
}

var _ commands.Handler[UpdatePendingDetailsCommand, *dto.Booking] = (*UpdatePendingDetailsHandler)(nil)
