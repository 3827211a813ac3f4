package schedule

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/dto"
	bookinghandlers "staybook/internal/app/handlers/booking"
	"staybook/internal/app/policies"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
)

var ErrSweeperNotConfigured = errors.New("schedule: sweeper missing buses")

// CompletionSweeper is the timer that moves checked-out stays to completed
// once the grace period has passed. It acts as the system actor and goes
// through the command bus like any other caller.
type CompletionSweeper struct {
	Commands commands.Bus
	Queries  queries.Bus
	Clock    policies.Clock
	Grace    time.Duration
	Interval time.Duration
	Batch    int
	Logger   *slog.Logger
}

func (s *CompletionSweeper) Run(ctx context.Context) error {
	if s.Commands == nil || s.Queries == nil {
		return ErrSweeperNotConfigured
	}
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger().Error("completion sweep failed", "error", err)
			}
		}
	}
}

// SweepOnce completes every due booking it can and reports how many moved.
// A booking that changed state in the meantime is skipped, not retried.
func (s *CompletionSweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.now()
	due, err := queries.Ask[bookinghandlers.ListDueForCompletionQuery, *dto.DueBookings](ctx, s.Queries, bookinghandlers.ListDueForCompletionQuery{
		Now:   now,
		Grace: s.Grace,
		Limit: s.Batch,
	})
	if err != nil {
		return 0, err
	}
	if due == nil {
		return 0, nil
	}
	completed := 0
	var errs []error
	for _, id := range due.IDs {
		if err := ctx.Err(); err != nil {
			return completed, err
		}
		_, err := commands.Dispatch[bookinghandlers.RequestTransitionCommand, *dto.Booking](ctx, s.Commands, bookinghandlers.RequestTransitionCommand{
			BookingID: id,
			Actor:     domainbooking.System(),
			To:        string(domainbooking.StatusCompleted),
			Reason:    "grace period elapsed",
		})
		switch {
		case err == nil:
			completed++
		case errors.Is(err, domainbooking.ErrInvalidTransition), errors.Is(err, domainbooking.ErrForbidden):
			s.logger().Info("booking no longer due", "booking_id", id, "error", err)
		default:
			errs = append(errs, err)
		}
	}
	if completed > 0 {
		s.logger().Info("completed bookings", "count", completed)
	}
	return completed, errors.Join(errs...)
}

func (s *CompletionSweeper) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now()
}

func (s *CompletionSweeper) interval() time.Duration {
	if s.Interval <= 0 {
		return 15 * time.Minute
	}
	return s.Interval
}

func (s *CompletionSweeper) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.Logger
}
