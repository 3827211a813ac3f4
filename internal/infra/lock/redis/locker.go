package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

var ErrLockerNotConfigured = errors.New("redis lock: client required")

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by another process is never dropped.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Options struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(opts Options) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
}

func Ping(ctx context.Context, client *goredis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}

// Locker is a ListingLocker shared by every replica. TTL bounds how long a
// crashed holder can block the listing.
type Locker struct {
	Client *goredis.Client
	TTL    time.Duration
	Retry  time.Duration
	Prefix string
	Logger *slog.Logger
}

func (l *Locker) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil || l.Client == nil {
		return nil, ErrLockerNotConfigured
	}
	redisKey := l.Prefix + "lock:" + key
	token := uuid.NewString()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := l.Client.SetNX(ctx, redisKey, token, l.ttl()).Result()
		if err != nil {
			return nil, fmt.Errorf("redis lock %s: %w", key, err)
		}
		if ok {
			return l.releaser(redisKey, token), nil
		}
		timer := time.NewTimer(l.retry())
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Locker) releaser(redisKey, token string) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.Client, []string{redisKey}, token).Err(); err != nil && l.Logger != nil {
			l.Logger.Warn("redis lock release failed", "key", redisKey, "error", err)
		}
	}
}

func (l *Locker) ttl() time.Duration {
	if l.TTL <= 0 {
		return 10 * time.Second
	}
	return l.TTL
}

func (l *Locker) retry() time.Duration {
	if l.Retry <= 0 {
		return 25 * time.Millisecond
	}
	return l.Retry
}
