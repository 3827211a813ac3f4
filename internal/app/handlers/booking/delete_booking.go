package booking

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainaudit "staybook/internal/domain/audit"
	domainbooking "staybook/internal/domain/booking"
)

const DeleteBookingKey = "booking.delete"

// DeleteBookingCommand hides a booking. Its history stays.
type DeleteBookingCommand struct {
	BookingID string              `validate:"required"`
	Actor     domainbooking.Actor `validate:"-"`
	Reason    string              `validate:"max=500"`
}

func (c DeleteBookingCommand) Key() string { return DeleteBookingKey }

func (c DeleteBookingCommand) ActingAs() domainbooking.Actor { return c.Actor }

type DeleteBookingHandler struct {
	UoWFactory uow.UoWFactory
	Clock      policies.Clock
	Logger     *slog.Logger
}

func (h *DeleteBookingHandler) Handle(ctx context.Context, cmd DeleteBookingCommand) (*dto.Booking, error) {
	return support.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) (*dto.Booking, error) {
		booking, err := loadAuthorized(ctx, unit, domainbooking.BookingID(cmd.BookingID), cmd.Actor)
		if err != nil {
			return nil, err
		}
		now := clockOrDefault(h.Clock).Now().UTC()
		released, err := booking.SoftDelete(cmd.Actor, now)
		if err != nil {
			return nil, err
		}
		if err := unit.Bookings().Save(ctx, booking); err != nil {
			return nil, domainbooking.Persistence("save booking", err)
		}
		if released {
			if err := unit.Intervals().Release(ctx, booking.ListingID, booking.ID); err != nil {
				return nil, domainbooking.Persistence("release nights", err)
			}
		}
		recorder := domainaudit.Recorder{Repo: unit.Activity(), IDGenerator: uuid.NewString}
		if err := recorder.Record(ctx, domainaudit.RecordParams{
			BookingID:      booking.ID,
			EventType:      domainaudit.EventStatusChanged,
			PreviousStatus: booking.Status,
			NewStatus:      booking.Status,
			Actor:          cmd.Actor,
			Reason:         cmd.Reason,
			Metadata:       map[string]string{"record_state": string(domainbooking.RecordDeleted)},
			At:             now,
		}); err != nil {
			return nil, err
		}
		loggerOrDefault(h.Logger).Info("booking deleted", "booking_id", booking.ID, "released", released)
		return dto.MapBooking(booking), nil
	})
}

var _ commands.Handler[DeleteBookingCommand, *dto.Booking] = (*DeleteBookingHandler)(nil)
