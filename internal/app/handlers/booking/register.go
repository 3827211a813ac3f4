package booking

import (
	"log/slog"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainpricing "staybook/internal/domain/pricing"
)

// Deps is what the booking handlers share.
type Deps struct {
	UoWFactory  uow.UoWFactory
	Clock       policies.Clock
	Pricing     domainpricing.Policy
	Rules       domainbooking.Rules
	Encoder     outbox.EventEncoder
	IDGenerator func() string
	Metrics     policies.Metrics
	Logger      *slog.Logger
}

// Register attaches every booking command and query to the buses.
func Register(cmds *commands.InMemoryBus, qs *queries.InMemoryBus, d Deps) {
	commands.RegisterHandler[CreateBookingCommand, *dto.Booking](cmds, CreateBookingKey, &CreateBookingHandler{
		UoWFactory:  d.UoWFactory,
		Clock:       d.Clock,
		Pricing:     d.Pricing,
		Encoder:     d.Encoder,
		IDGenerator: d.IDGenerator,
		Metrics:     d.Metrics,
		Logger:      d.Logger,
	})
	commands.RegisterHandler[RequestTransitionCommand, *dto.Booking](cmds, RequestTransitionKey, &RequestTransitionHandler{
		UoWFactory: d.UoWFactory,
		Clock:      d.Clock,
		Rules:      d.Rules,
		Encoder:    d.Encoder,
		Metrics:    d.Metrics,
		Logger:     d.Logger,
	})
	commands.RegisterHandler[UpdatePendingDetailsCommand, *dto.Booking](cmds, UpdatePendingDetailsKey, &UpdatePendingDetailsHandler{
		UoWFactory: d.UoWFactory,
		Clock:      d.Clock,
	})
	commands.RegisterHandler[DeleteBookingCommand, *dto.Booking](cmds, DeleteBookingKey, &DeleteBookingHandler{
		UoWFactory: d.UoWFactory,
		Clock:      d.Clock,
		Logger:     d.Logger,
	})

	queries.RegisterHandler[GetBookingQuery, *dto.Booking](qs, GetBookingKey, &GetBookingHandler{UoWFactory: d.UoWFactory})
	queries.RegisterHandler[GetBookingHistoryQuery, *dto.History](qs, GetBookingHistoryKey, &GetBookingHistoryHandler{UoWFactory: d.UoWFactory})
	queries.RegisterHandler[ListDueForCompletionQuery, *dto.DueBookings](qs, ListDueForCompletionKey, &ListDueForCompletionHandler{UoWFactory: d.UoWFactory})
}
