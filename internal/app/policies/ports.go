package policies

import (
	"context"
	"time"
)

// Clock supplies the current instant. Date gates and timestamps read it.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always reports the same instant.
type FixedClock time.Time

func (c FixedClock) Now() time.Time { return time.Time(c).UTC() }

// ListingLocker serializes check-then-reserve per listing. The returned
// release func must be called exactly once.
type ListingLocker interface {
	Lock(ctx context.Context, key string) (release func(), err error)
}

// Metrics receives coordinator outcomes.
type Metrics interface {
	ObserveCommand(name, outcome string, elapsed time.Duration)
	BookingConflict(listingID string)
	StatusChanged(from, to string)
}

type NopMetrics struct{}

func (NopMetrics) ObserveCommand(string, string, time.Duration) {}
func (NopMetrics) BookingConflict(string)                       {}
func (NopMetrics) StatusChanged(string, string)                 {}
