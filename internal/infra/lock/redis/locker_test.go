package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockRequiresClient(t *testing.T) {
	var l *Locker
	_, err := l.Lock(context.Background(), "listing:1")
	assert.ErrorIs(t, err, ErrLockerNotConfigured)
}

func TestLockHonoursCancelledContext(t *testing.T) {
	client := NewClient(Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })
	l := &Locker{Client: client}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	release, err := l.Lock(ctx, "listing:1")
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, release)
}

func TestDefaults(t *testing.T) {
	l := &Locker{}
	assert.Equal(t, 10*time.Second, l.ttl())
	assert.Equal(t, 25*time.Millisecond, l.retry())
	l = &Locker{TTL: time.Minute, Retry: time.Second}
	assert.Equal(t, time.Minute, l.ttl())
	assert.Equal(t, time.Second, l.retry())
}

func newMiniredisLocker(t *testing.T) (*miniredis.Miniredis, *Locker) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewClient(Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, &Locker{Client: client, TTL: time.Second, Retry: 5 * time.Millisecond, Prefix: "staybook:"}
}

func TestLockBlocksUntilReleased(t *testing.T) {
	_, l := newMiniredisLocker(t)
	ctx := context.Background()

	release, err := l.Lock(ctx, "listing:loft")
	require.NoError(t, err)

	acquired := make(chan func(), 1)
	go func() {
		second, err := l.Lock(ctx, "listing:loft")
		if err == nil {
			acquired <- second
		}
	}()

	select {
	case <-acquired:
		t.Fatal("second holder entered while the lock was held")
	case <-time.After(100 * time.Millisecond):
	}

	release()
	select {
	case second := <-acquired:
		second()
	case <-time.After(2 * time.Second):
		t.Fatal("second holder never entered after release")
	}
}

func TestLockDifferentKeysDoNotContend(t *testing.T) {
	_, l := newMiniredisLocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	a, err := l.Lock(ctx, "listing:loft")
	require.NoError(t, err)
	defer a()
	b, err := l.Lock(ctx, "listing:cabin")
	require.NoError(t, err)
	b()
}

func TestStaleReleaseKeepsKeyOfNewHolder(t *testing.T) {
	mr, l := newMiniredisLocker(t)
	ctx := context.Background()
	key := "staybook:lock:listing:loft"

	first, err := l.Lock(ctx, "listing:loft")
	require.NoError(t, err)
	firstToken, err := mr.Get(key)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	require.False(t, mr.Exists(key))

	second, err := l.Lock(ctx, "listing:loft")
	require.NoError(t, err)
	secondToken, err := mr.Get(key)
	require.NoError(t, err)
	require.NotEqual(t, firstToken, secondToken)

	first()
	assert.True(t, mr.Exists(key), "expired holder must not drop the new lease")
	got, err := mr.Get(key)
	require.NoError(t, err)
	assert.Equal(t, secondToken, got)

	second()
	assert.False(t, mr.Exists(key))
}

func TestExpiredLeaseAdmitsNewHolder(t *testing.T) {
	mr, l := newMiniredisLocker(t)

	_, err := l.Lock(context.Background(), "listing:loft")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx, "listing:loft")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	mr.FastForward(2 * time.Second)

	ctx, cancel = context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release, err := l.Lock(ctx, "listing:loft")
	require.NoError(t, err)
	release()
}
