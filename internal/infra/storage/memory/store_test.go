package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "staybook/internal/app/outbox"
	"staybook/internal/app/uow"
	domainaudit "staybook/internal/domain/audit"
	domainavailability "staybook/internal/domain/availability"
	domainbooking "staybook/internal/domain/booking"
	domainrange "staybook/internal/domain/shared/daterange"
)

func stay(from, to int) domainrange.DateRange {
	return domainrange.DateRange{
		CheckIn:  time.Date(2025, 6, from, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2025, 6, to, 0, 0, 0, 0, time.UTC),
	}
}

func begin(t *testing.T, s *Store) uow.UnitOfWork {
	t.Helper()
	unit, err := s.Begin(context.Background(), uow.TxOptions{})
	require.NoError(t, err)
	return unit
}

func stage(t *testing.T, unit uow.UnitOfWork, id string, r domainrange.DateRange) {
	t.Helper()
	ctx := context.Background()
	b := &domainbooking.Booking{ID: domainbooking.BookingID(id), ListingID: "l-1", Range: r, Status: domainbooking.StatusPending}
	require.NoError(t, unit.Bookings().Insert(ctx, b))
	require.NoError(t, unit.Intervals().Reserve(ctx, domainavailability.IntervalFor(b)))
}

func TestCommitRechecksIntervals(t *testing.T) {
	s := NewStore(nil, nil)
	first, second := begin(t, s), begin(t, s)
	stage(t, first, "a", stay(1, 5))
	stage(t, second, "b", stay(4, 6))

	require.NoError(t, first.Commit(context.Background()))
	err := second.Commit(context.Background())
	require.ErrorIs(t, err, domainavailability.ErrOverlappingRange)

	assert.Equal(t, 1, s.BookingCount())
	ivs := s.CommittedIntervals("l-1")
	require.Len(t, ivs, 1)
	assert.Equal(t, domainbooking.BookingID("a"), ivs[0].BookingID)
}

func TestReserveSeesOwnStagedWrites(t *testing.T) {
	s := NewStore(nil, nil)
	unit := begin(t, s)
	stage(t, unit, "a", stay(1, 5))
	err := unit.Intervals().Reserve(context.Background(), domainavailability.Interval{ListingID: "l-1", BookingID: "b", Range: stay(3, 4)})
	assert.ErrorIs(t, err, domainavailability.ErrOverlappingRange)

	err = unit.Intervals().Reserve(context.Background(), domainavailability.Interval{ListingID: "l-1", BookingID: "c", Range: stay(5, 7)})
	assert.NoError(t, err, "turnover day is free")
}

func TestRollbackLeavesNoTrace(t *testing.T) {
	relay := NewOutbox(nil)
	s := NewStore(nil, relay)
	unit := begin(t, s)
	stage(t, unit, "a", stay(1, 5))
	require.NoError(t, unit.Activity().Append(context.Background(), domainaudit.Entry{BookingID: "a", EventType: domainaudit.EventCreated}))
	require.NoError(t, unit.Outbox().Add(context.Background(), appoutbox.EventRecord{ID: "e-1", Name: "booking.created"}))
	require.NoError(t, unit.Rollback(context.Background()))

	assert.Zero(t, s.BookingCount())
	assert.Empty(t, s.CommittedIntervals("l-1"))
	assert.Zero(t, relay.Pending())
	assert.ErrorIs(t, unit.Commit(context.Background()), ErrUnitClosed)

	reader := begin(t, s)
	entries, err := reader.Activity().ListByBooking(context.Background(), "a")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCancelledContextBlocksCommit(t *testing.T) {
	s := NewStore(nil, nil)
	unit := begin(t, s)
	stage(t, unit, "a", stay(1, 5))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, unit.Commit(ctx), context.Canceled)
	assert.Zero(t, s.BookingCount())
}

func TestSaveIsOptimistic(t *testing.T) {
	s := NewStore(nil, nil)
	unit := begin(t, s)
	stage(t, unit, "a", stay(1, 5))
	require.NoError(t, unit.Commit(context.Background()))

	ctx := context.Background()
	u1, u2 := begin(t, s), begin(t, s)
	b1, err := u1.Bookings().ByID(ctx, "a")
	require.NoError(t, err)
	b2, err := u2.Bookings().ByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), b1.Version)

	b1.Status = domainbooking.StatusConfirmed
	b2.Status = domainbooking.StatusCancelled
	require.NoError(t, u1.Bookings().Save(ctx, b1))
	require.NoError(t, u2.Bookings().Save(ctx, b2))
	require.NoError(t, u1.Commit(ctx))
	assert.ErrorIs(t, u2.Commit(ctx), domainbooking.ErrConcurrentUpdate)

	stored, err := begin(t, s).Bookings().ByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StatusConfirmed, stored.Status)
	assert.Equal(t, int64(2), stored.Version)
}

func TestReleaseFreesNightsOnCommit(t *testing.T) {
	s := NewStore(nil, nil)
	ctx := context.Background()
	unit := begin(t, s)
	stage(t, unit, "a", stay(1, 5))
	require.NoError(t, unit.Commit(ctx))

	unit = begin(t, s)
	require.NoError(t, unit.Intervals().Release(ctx, "l-1", "a"))
	stage(t, unit, "b", stay(2, 3))
	require.NoError(t, unit.Commit(ctx))

	ivs := s.CommittedIntervals("l-1")
	require.Len(t, ivs, 1)
	assert.Equal(t, domainbooking.BookingID("b"), ivs[0].BookingID)
}

func TestActivitySequenceAssignedOnCommit(t *testing.T) {
	s := NewStore(nil, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		unit := begin(t, s)
		require.NoError(t, unit.Activity().Append(ctx, domainaudit.Entry{BookingID: "a", EventType: domainaudit.EventStatusChanged}))
		require.NoError(t, unit.Commit(ctx))
	}
	entries, err := begin(t, s).Activity().ListByBooking(ctx, "a")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Sequence)
	}
}

func TestReadOnlyUnitRejectsWrites(t *testing.T) {
	s := NewStore(nil, nil)
	unit, err := s.Begin(context.Background(), uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	err = unit.Bookings().Insert(context.Background(), &domainbooking.Booking{ID: "a"})
	assert.ErrorIs(t, err, ErrReadOnlyUnit)
}

type flakyPublisher struct {
	fail  bool
	names []string
}

func (p *flakyPublisher) Publish(_ context.Context, rec appoutbox.EventRecord) error {
	if p.fail {
		return errors.New("broker down")
	}
	p.names = append(p.names, rec.Name)
	return nil
}

func TestOutboxKeepsOrderAcrossFailures(t *testing.T) {
	pub := &flakyPublisher{fail: true}
	box := NewOutbox(pub)
	ctx := context.Background()
	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{Name: "booking.created"}))
	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{Name: "booking.confirmed"}))

	require.Error(t, box.Flush(ctx))
	assert.Equal(t, 2, box.Pending())

	pub.fail = false
	require.NoError(t, box.Flush(ctx))
	assert.Equal(t, []string{"booking.created", "booking.confirmed"}, pub.names)
	assert.Zero(t, box.Pending())
}

func TestKeyedLockerSerializes(t *testing.T) {
	locker := NewKeyedLocker()
	ctx := context.Background()
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(ctx, "listing:l-1")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			inside--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Empty(t, locker.locks)
}

func TestKeyedLockerHonoursContext(t *testing.T) {
	locker := NewKeyedLocker()
	release, err := locker.Lock(context.Background(), "k")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := locker.Lock(context.Background(), "other")
	require.NoError(t, err)
	other()
}

func TestLoadFixtures(t *testing.T) {
	repo := NewListingRepository()
	n, err := repo.LoadFixtures([]byte(`
listings:
  - id: loft-1
    property_id: prop-9
    host_id: host-7
    currency: EUR
    price_per_night: 12000
    cleaning_fee: 3000
    max_guests: 2
`))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	snap, err := repo.Snapshot(context.Background(), "loft-1")
	require.NoError(t, err)
	assert.Equal(t, "EUR", snap.PricePerNight.Currency)
	assert.Equal(t, int64(3000), snap.CleaningFee.Amount)
	require.Len(t, repo.All(), 1)
	assert.Equal(t, snap, repo.All()[0])

	_, err = repo.LoadFixtures([]byte(`{"listings":[{"id":"bad","host_id":"h","currency":"USD","price_per_night":0,"max_guests":1}]}`))
	assert.Error(t, err)
}

func TestIdempotencyExpires(t *testing.T) {
	store := NewIdempotencyStore(time.Hour)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, middlewareRecord("k", now)))
	_, found, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	now = now.Add(2 * time.Hour)
	_, found, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}
