package support

import (
	"context"

	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
)

func BeginReadOnlyUnit(ctx context.Context, factory uow.UoWFactory) (uow.UnitOfWork, context.Context, func(), error) {
	unit, ok := uow.FromContext(ctx)
	if ok {
		return unit, ctx, func() {}, nil
	}
	if factory == nil {
		return nil, ctx, nil, uow.ErrUnitOfWorkMissing
	}
	newUnit, err := factory.Begin(ctx, uow.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, ctx, nil, domainbooking.Persistence("begin", err)
	}
	execCtx := uow.Enter(ctx, newUnit)
	cleanup := func() {
		_ = newUnit.Rollback(context.WithoutCancel(execCtx))
	}
	return newUnit, execCtx, cleanup, nil
}

// InUnit runs fn against the unit already on ctx. Without one it opens a
// unit, commits it when fn succeeds and rolls it back otherwise, so handlers
// also work when dispatched outside the transaction middleware.
func InUnit[R any](ctx context.Context, factory uow.UoWFactory, fn func(ctx context.Context, unit uow.UnitOfWork) (R, error)) (R, error) {
	var zero R
	if unit, ok := uow.FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	if factory == nil {
		return zero, uow.ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, uow.TxOptions{})
	if err != nil {
		return zero, domainbooking.Persistence("begin", err)
	}
	execCtx := uow.Enter(ctx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(context.WithoutCancel(execCtx))
		}
	}()
	res, err := fn(execCtx, unit)
	if err != nil {
		return zero, err
	}
	if err := ctx.Err(); err != nil {
		return zero, domainbooking.Persistence("commit", err)
	}
	if err := unit.Commit(execCtx); err != nil {
		return zero, uow.CommitError(err)
	}
	committed = true
	return res, nil
}
