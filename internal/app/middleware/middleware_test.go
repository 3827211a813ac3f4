package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/app/commands"
	domainbooking "staybook/internal/domain/booking"
)

type reserveCmd struct {
	Listing string
	Nights  int
	Request string
}

func (c reserveCmd) Key() string            { return "test.reserve" }
func (c reserveCmd) IdempotencyKey() string { return c.Request }
func (c reserveCmd) ResultPrototype() any   { return &reserveResult{} }
func (c reserveCmd) LockKey() string        { return c.Listing }

type reserveResult struct {
	Seq int `json:"seq"`
}

type countingBus struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (b *countingBus) Dispatch(_ context.Context, cmd commands.Command) (any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.fail != nil {
		return nil, b.fail
	}
	return &reserveResult{Seq: b.calls}, nil
}

type mapStore struct {
	mu    sync.Mutex
	items map[string]IdempotencyRecord
}

func (s *mapStore) Get(_ context.Context, key string) (IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *mapStore) Save(_ context.Context, rec IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.items == nil {
		s.items = map[string]IdempotencyRecord{}
	}
	s.items[rec.Key] = rec
	return nil
}

func TestIdempotencyReplaysSuccess(t *testing.T) {
	base := &countingBus{}
	bus := ChainCommands(base, Idempotency(&mapStore{}, nil, nil))
	ctx := context.Background()
	cmd := reserveCmd{Listing: "l-1", Nights: 2, Request: "k-1"}

	first, err := commands.Dispatch[reserveCmd, *reserveResult](ctx, bus, cmd)
	require.NoError(t, err)
	second, err := commands.Dispatch[reserveCmd, *reserveResult](ctx, bus, cmd)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, base.calls)

	_, err = commands.Dispatch[reserveCmd, *reserveResult](ctx, bus, reserveCmd{Listing: "l-1", Nights: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, base.calls, "no key, no replay")
}

func TestIdempotencyRefusesReusedKeyWithDifferentBody(t *testing.T) {
	base := &countingBus{}
	bus := ChainCommands(base, Idempotency(&mapStore{}, nil, nil))
	ctx := context.Background()

	_, err := bus.Dispatch(ctx, reserveCmd{Listing: "l-1", Nights: 2, Request: "k-1"})
	require.NoError(t, err)
	_, err = bus.Dispatch(ctx, reserveCmd{Listing: "l-1", Nights: 5, Request: "k-1"})
	var verr *domainbooking.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "idempotency_key", verr.Field)
	assert.Equal(t, 1, base.calls)
}

func TestIdempotencyForgetsFailures(t *testing.T) {
	base := &countingBus{fail: domainbooking.ErrConflict}
	store := &mapStore{}
	bus := ChainCommands(base, Idempotency(store, nil, nil))
	cmd := reserveCmd{Listing: "l-1", Nights: 2, Request: "k-1"}

	_, err := bus.Dispatch(context.Background(), cmd)
	assert.ErrorIs(t, err, domainbooking.ErrConflict)
	assert.Empty(t, store.items)

	base.fail = nil
	_, err = bus.Dispatch(context.Background(), cmd)
	assert.NoError(t, err)
	assert.Equal(t, 2, base.calls)
}

type unsavableStore struct {
	mapStore
}

func (*unsavableStore) Save(context.Context, IdempotencyRecord) error {
	return errors.New("disk full")
}

func TestIdempotencyLogsLostRecord(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	base := &countingBus{}
	bus := ChainCommands(base, Idempotency(&unsavableStore{}, nil, logger))

	res, err := bus.Dispatch(context.Background(), reserveCmd{Listing: "l-1", Nights: 2, Request: "k-1"})
	require.NoError(t, err, "a lost replay record never fails a committed command")
	assert.Equal(t, &reserveResult{Seq: 1}, res)
	assert.Contains(t, logs.String(), "idempotency record not saved")
	assert.Contains(t, logs.String(), "disk full")
	assert.Contains(t, logs.String(), "test.reserve:k-1")
}

type recordingLocker struct {
	mu   sync.Mutex
	keys []string
	held int
	fail error
}

func (l *recordingLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.fail != nil {
		return nil, l.fail
	}
	l.mu.Lock()
	l.keys = append(l.keys, key)
	l.held++
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		l.held--
		l.mu.Unlock()
	}, nil
}

func TestListingLockWrapsDispatch(t *testing.T) {
	locker := &recordingLocker{}
	bus := ChainCommands(&countingBus{}, ListingLock(locker))

	_, err := bus.Dispatch(context.Background(), reserveCmd{Listing: "l-9"})
	require.NoError(t, err)
	assert.Equal(t, []string{"listing:l-9"}, locker.keys)
	assert.Zero(t, locker.held, "released after dispatch")

	_, err = bus.Dispatch(context.Background(), reserveCmd{})
	require.NoError(t, err)
	assert.Len(t, locker.keys, 1, "empty key skips the lock")
}

func TestListingLockFailureIsRetryable(t *testing.T) {
	base := &countingBus{}
	bus := ChainCommands(base, ListingLock(&recordingLocker{fail: errors.New("redis down")}))

	_, err := bus.Dispatch(context.Background(), reserveCmd{Listing: "l-9"})
	assert.ErrorIs(t, err, domainbooking.ErrPersistence)
	assert.Zero(t, base.calls)

	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	<-ctx.Done()
	_, err = ChainCommands(base, ListingLock(&recordingLocker{fail: ctx.Err()})).Dispatch(ctx, reserveCmd{Listing: "l-9"})
	assert.ErrorIs(t, err, domainbooking.ErrPersistence)
}
