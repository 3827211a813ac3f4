package middleware

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
)

type Authorizer interface {
	Authorize(ctx context.Context, message any) error
}

// ActorScoped messages name who is acting.
type ActorScoped interface {
	ActingAs() domainbooking.Actor
}

// RequireActor rejects messages whose actor is malformed before any data is
// read. Ownership checks happen in the handlers once the booking is loaded.
type RequireActor struct{}

func (RequireActor) Authorize(_ context.Context, message any) error {
	scoped, ok := message.(ActorScoped)
	if !ok {
		return nil
	}
	if err := scoped.ActingAs().Validate(); err != nil {
		return domainbooking.ErrForbidden
	}
	return nil
}

func Authorization(a Authorizer) CommandMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := a.Authorize(ctx, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryAuthorization(a Authorizer) QueryMiddleware {
	if a == nil {
		panic("middleware: authorizer required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := a.Authorize(ctx, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
