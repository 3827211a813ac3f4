package middleware

import (
	"context"

	"staybook/internal/app/commands"
	"staybook/internal/app/policies"
	domainbooking "staybook/internal/domain/booking"
)

// ListingScoped commands touch one listing's calendar and must not
// interleave with other writers of the same listing.
type ListingScoped interface {
	LockKey() string
}

// ListingLock holds the per-listing lock around everything further down the
// chain, commit included.
func ListingLock(locker policies.ListingLocker) CommandMiddleware {
	if locker == nil {
		panic("middleware: listing locker required")
	}
	return func(next commands.Bus) commands.Bus {
		nextFn := wrapCommand(next)
		return commandFunc(func(ctx context.Context, cmd commands.Command) (any, error) {
			scoped, ok := cmd.(ListingScoped)
			if !ok || scoped.LockKey() == "" {
				return nextFn(ctx, cmd)
			}
			release, err := locker.Lock(ctx, "listing:"+scoped.LockKey())
			if err != nil {
				if ctx.Err() != nil {
					return nil, domainbooking.Persistence("listing lock", ctx.Err())
				}
				return nil, domainbooking.Persistence("listing lock", err)
			}
			defer release()
			return nextFn(ctx, cmd)
		})
	}
}
