package booking

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainaudit "staybook/internal/domain/audit"
	domainbooking "staybook/internal/domain/booking"
)

const RequestTransitionKey = "booking.transition"

type RequestTransitionCommand struct {
	BookingID string              `validate:"required"`
	Actor     domainbooking.Actor `validate:"-"`
	To        string              `validate:"required"`
	Reason    string              `validate:"max=500"`
}

func (c RequestTransitionCommand) Key() string { return RequestTransitionKey }

func (c RequestTransitionCommand) ActingAs() domainbooking.Actor { return c.Actor }

type RequestTransitionHandler struct {
	UoWFactory uow.UoWFactory
	Clock      policies.Clock
	Rules      domainbooking.Rules
	Encoder    outbox.EventEncoder
	Metrics    policies.Metrics
	Logger     *slog.Logger
}

func (h *RequestTransitionHandler) Handle(ctx context.Context, cmd RequestTransitionCommand) (*dto.Booking, error) {
	return support.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) (*dto.Booking, error) {
		return h.transition(ctx, unit, cmd)
	})
}

func (h *RequestTransitionHandler) transition(ctx context.Context, unit uow.UnitOfWork, cmd RequestTransitionCommand) (*dto.Booking, error) {
	booking, err := loadAuthorized(ctx, unit, domainbooking.BookingID(cmd.BookingID), cmd.Actor)
	if err != nil {
		return nil, err
	}
	to, err := domainbooking.ParseStatus(cmd.To)
	if err != nil {
		return nil, &domainbooking.ValidationError{Field: "to", Reason: "unknown status"}
	}

	now := clockOrDefault(h.Clock).Now().UTC()
	tr, err := booking.Transition(cmd.Actor, to, cmd.Reason, now, h.Rules)
	if err != nil {
		return nil, err
	}
	if err := unit.Bookings().Save(ctx, booking); err != nil {
		return nil, domainbooking.Persistence("save booking", err)
	}
	if tr.ReleasesNights {
		if err := unit.Intervals().Release(ctx, booking.ListingID, booking.ID); err != nil {
			return nil, domainbooking.Persistence("release nights", err)
		}
	}

	recorder := domainaudit.Recorder{Repo: unit.Activity(), IDGenerator: uuid.NewString}
	if err := recorder.Record(ctx, domainaudit.RecordParams{
		BookingID:      booking.ID,
		PreviousStatus: tr.From,
		NewStatus:      tr.To,
		Actor:          tr.Actor,
		Reason:         tr.Reason,
		At:             tr.At,
	}); err != nil {
		return nil, err
	}
	if err := recordEvents(ctx, unit, h.Encoder, booking); err != nil {
		return nil, err
	}

	metricsOrDefault(h.Metrics).StatusChanged(string(tr.From), string(tr.To))
	loggerOrDefault(h.Logger).Info("booking status changed",
		"booking_id", booking.ID,
		"from", tr.From,
		"to", tr.To,
		"actor", tr.Actor.Type,
	)
	return dto.MapBooking(booking), nil
}

var _ commands.Handler[RequestTransitionCommand, *dto.Booking] = (*RequestTransitionHandler)(nil)
