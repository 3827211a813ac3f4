package booking

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	"staybook/internal/app/handlers/support"
	"staybook/internal/app/middleware"
	"staybook/internal/app/outbox"
	"staybook/internal/app/policies"
	"staybook/internal/app/uow"
	domainaudit "staybook/internal/domain/audit"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainlistings "staybook/internal/domain/listings"
	domainpricing "staybook/internal/domain/pricing"
	domainrange "staybook/internal/domain/shared/daterange"
)

const CreateBookingKey = "booking.create"

type CreateBookingCommand struct {
	ListingID       string    `validate:"required,max=128"`
	GuestID         string    `validate:"required,max=128"`
	CheckIn         time.Time `validate:"required"`
	CheckOut        time.Time `validate:"required"`
	Guests          int       `validate:"min=1"`
	SpecialRequests string    `validate:"max=2000"`
	IdempotencyKeyV string    `validate:"max=128" field:"idempotency_key"`
}

func (c CreateBookingCommand) Key() string { return CreateBookingKey }

func (c CreateBookingCommand) IdempotencyKey() string {
	if c.IdempotencyKeyV == "" {
		return ""
	}
	return c.GuestID + ":" + c.IdempotencyKeyV
}

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

func (c CreateBookingCommand) LockKey() string { return c.ListingID }

func (c CreateBookingCommand) ActingAs() domainbooking.Actor { return domainbooking.Guest(c.GuestID) }

func (c CreateBookingCommand) ClaimedStay() (domainlistings.ListingID, domainrange.DateRange, bool) {
	dr, err := domainrange.New(c.CheckIn, c.CheckOut)
	if err != nil {
		return "", domainrange.DateRange{}, false
	}
	return domainlistings.ListingID(c.ListingID), dr, true
}

type CreateBookingHandler struct {
	UoWFactory  uow.UoWFactory
	Clock       policies.Clock
	Pricing     domainpricing.Policy
	Encoder     outbox.EventEncoder
	IDGenerator func() string
	Metrics     policies.Metrics
	Logger      *slog.Logger
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	return support.InUnit(ctx, h.UoWFactory, func(ctx context.Context, unit uow.UnitOfWork) (*dto.Booking, error) {
		return h.create(ctx, unit, cmd)
	})
}

func (h *CreateBookingHandler) create(ctx context.Context, unit uow.UnitOfWork, cmd CreateBookingCommand) (*dto.Booking, error) {
	dr, err := domainrange.New(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, &domainbooking.ValidationError{Field: "check_out", Reason: "must be after check_in"}
	}
	now := clockOrDefault(h.Clock).Now().UTC()
	if !dr.CheckIn.After(now) {
		return nil, &domainbooking.ValidationError{Field: "check_in", Reason: "must be in the future"}
	}
	if cmd.Guests < 1 {
		return nil, &domainbooking.ValidationError{Field: "guests", Reason: "must be at least 1"}
	}

	listing, err := unit.Listings().Snapshot(ctx, domainlistings.ListingID(cmd.ListingID))
	if err != nil {
		if errors.Is(err, domainlistings.ErrListingNotFound) {
			return nil, &domainbooking.ValidationError{Field: "listing_id", Reason: "unknown listing"}
		}
		return nil, domainbooking.Persistence("load listing", err)
	}
	if err := listing.Validate(); err != nil {
		return nil, &domainbooking.ValidationError{Field: "listing_id", Reason: "listing is not bookable"}
	}
	if cmd.Guests > listing.MaxGuests {
		return nil, &domainbooking.ValidationError{Field: "guests", Reason: "exceeds listing capacity"}
	}

	checker := domainavailability.Checker{Intervals: unit.Intervals(), Bookings: unit.Bookings()}
	conflicts, err := checker.FindConflicts(ctx, listing.ID, dr)
	if err != nil {
		return nil, domainbooking.Persistence("check availability", err)
	}
	if len(conflicts) > 0 {
		metricsOrDefault(h.Metrics).BookingConflict(string(listing.ID))
		return nil, domainbooking.NewConflictError(conflicts)
	}

	price, err := domainpricing.Quote(listing, dr, h.Pricing)
	if err != nil {
		return nil, &domainbooking.ValidationError{Field: "price", Reason: err.Error()}
	}

	booking, err := domainbooking.NewBooking(domainbooking.CreateParams{
		ID:              domainbooking.BookingID(h.newID()),
		Listing:         listing,
		GuestID:         cmd.GuestID,
		Range:           dr,
		Guests:          cmd.Guests,
		Price:           price,
		SpecialRequests: cmd.SpecialRequests,
		CreatedAt:       now,
	})
	if err != nil {
		return nil, err
	}

	if err := unit.Bookings().Insert(ctx, booking); err != nil {
		return nil, domainbooking.Persistence("insert booking", err)
	}
	if err := unit.Intervals().Reserve(ctx, domainavailability.IntervalFor(booking)); err != nil {
		if errors.Is(err, domainavailability.ErrOverlappingRange) {
			metricsOrDefault(h.Metrics).BookingConflict(string(listing.ID))
			return nil, uow.DescribeConflict(ctx, h.UoWFactory, cmd, &domainbooking.ConflictError{})
		}
		return nil, domainbooking.Persistence("reserve nights", err)
	}

	recorder := domainaudit.Recorder{Repo: unit.Activity(), IDGenerator: uuid.NewString}
	if err := recorder.Record(ctx, domainaudit.RecordParams{
		BookingID: booking.ID,
		EventType: domainaudit.EventCreated,
		NewStatus: booking.Status,
		Actor:     cmd.ActingAs(),
		Metadata: map[string]string{
			"nights":   strconv.Itoa(booking.Nights()),
			"guests":   strconv.Itoa(booking.Guests),
			"total":    amount(booking.Price.Total.Amount),
			"currency": booking.Price.Total.Currency,
		},
		At: now,
	}); err != nil {
		return nil, err
	}

	if err := recordEvents(ctx, unit, h.Encoder, booking); err != nil {
		return nil, err
	}

	loggerOrDefault(h.Logger).Info("booking requested",
		"booking_id", booking.ID,
		"listing_id", booking.ListingID,
		"nights", booking.Nights(),
		"total", booking.Price.Total.String(),
	)
	return dto.MapBooking(booking), nil
}

func (h *CreateBookingHandler) newID() string {
	if h.IDGenerator != nil {
		return h.IDGenerator()
	}
	return uuid.NewString()
}

var _ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
var _ middleware.ListingScoped = CreateBookingCommand{}
