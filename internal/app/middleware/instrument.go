package middleware

import (
	"context"
	"errors"
	"time"

	"staybook/internal/app/commands"
	"staybook/internal/app/policies"
	domainbooking "staybook/internal/domain/booking"
)

// Instrument reports every command's latency and outcome.
func Instrument(m policies.Metrics) CommandMiddleware {
	if m == nil {
		m = policies.NopMetrics{}
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			started := time.Now()
			res, err := nextFn(ctx, cmd)
			m.ObserveCommand(cmd.Key(), Outcome(err), time.Since(started))
			return res, err
		})
	}
}

// Outcome classifies err for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domainbooking.ErrValidation):
		return "invalid"
	case errors.Is(err, domainbooking.ErrConflict):
		return "conflict"
	case errors.Is(err, domainbooking.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domainbooking.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domainbooking.ErrImmutableBooking):
		return "immutable"
	case errors.Is(err, domainbooking.ErrPersistence):
		return "persistence"
	}
	return "error"
}
