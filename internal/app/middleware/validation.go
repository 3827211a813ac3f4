package middleware

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/queries"
	domainbooking "staybook/internal/domain/booking"
)

type Validator interface {
	Validate(ctx context.Context, message any) error
}

// validate keeps validator output inside the booking error taxonomy.
func validate(ctx context.Context, v Validator, message any) error {
	err := v.Validate(ctx, message)
	if err == nil || domainbooking.IsDomainError(err) {
		return err
	}
	return &domainbooking.ValidationError{Field: "request", Reason: err.Error()}
}

func Validation(v Validator) CommandMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			if err := validate(ctx, v, cmd); err != nil {
				return nil, err
			}
			return nextFn(ctx, cmd)
		})
	}
}

func QueryValidation(v Validator) QueryMiddleware {
	if v == nil {
		panic("middleware: validator required")
	}
	return func(next queries.Bus) queries.Bus {
		nextFn := wrapQuery(next)
		return queryFunc(func(ctx context.Context, q queries.Query) (any, error) {
			if err := validate(ctx, v, q); err != nil {
				return nil, err
			}
			return nextFn(ctx, q)
		})
	}
}
