package middleware

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

type TxOptionsProvider func(cmd commands.Command) uow.TxOptions

// Transaction runs the handler inside a fresh unit of work. Handler errors
// and caller cancellation roll everything back; a failed commit surfaces as
// a persistence error unless the store reported a domain conflict, which is
// then filled in with the stays holding the claimed nights.
func Transaction(factory uow.UoWFactory, optsProvider TxOptionsProvider) CommandMiddleware {
	if factory == nil {
		panic("middleware: uow factory required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			opts := uow.TxOptions{}
			if optsProvider != nil {
				opts = optsProvider(cmd)
			}
			unit, err := factory.Begin(ctx, opts)
			if err != nil {
				return nil, domainbooking.Persistence("begin", err)
			}
			execCtx := uow.Enter(ctx, unit)
			closed := false
			rollback := func() {
				if !closed {
					closed = true
					_ = unit.Rollback(context.WithoutCancel(execCtx))
				}
			}
			defer rollback()

			res, err := nextFn(execCtx, cmd)
			if err != nil {
				rollback()
				return nil, uow.DescribeConflict(ctx, factory, cmd, err)
			}
			if err := ctx.Err(); err != nil {
				return nil, domainbooking.Persistence("commit", err)
			}
			if err := unit.Commit(execCtx); err != nil {
				rollback()
				return nil, uow.DescribeConflict(ctx, factory, cmd, uow.CommitError(err))
			}
			closed = true
			return res, nil
		})
	}
}
