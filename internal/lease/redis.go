// Package lease provides a Redis-backed mutual exclusion lease so that only
// one API replica persists a timeline move at a time.
package lease

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrHeld is returned by Acquire when another holder owns the lease.
var ErrHeld = errors.New("lease held by another holder")

const (
	defaultTTL = 30 * time.Second
	// ttlMargin is added on top of a move's write timeout when sizing the TTL.
	ttlMargin = 5 * time.Second
)

// releaseScript deletes the key only while it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the TTL only while the key still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// TTLFor sizes a lease TTL so it outlives a move bounded by moveTimeout.
// A zero ttl means the default.
func TTLFor(ttl, moveTimeout time.Duration) time.Duration {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if moveTimeout > 0 && ttl < moveTimeout+ttlMargin {
		ttl = moveTimeout + ttlMargin
	}
	return ttl
}

// RedisLease is a SET NX lease with a TTL. The holder renews it every third
// of the TTL until release, so the TTL only bounds how long a crashed holder
// can block others.
type RedisLease struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	logger *log.Logger
}

// NewRedisLease connects to redisURL and verifies the connection.
func NewRedisLease(redisURL, key string, ttl time.Duration, logger *log.Logger) (*RedisLease, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisLeaseWithClient(client, key, ttl, logger), nil
}

func NewRedisLeaseWithClient(client *redis.Client, key string, ttl time.Duration, logger *log.Logger) *RedisLease {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if key == "" {
		key = "sitecms:lease:timeline-move"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RedisLease{client: client, key: key, ttl: ttl, logger: logger.WithPrefix("lease")}
}

// Acquire takes the lease or fails with ErrHeld. The returned release is
// safe to call more than once and never removes a lease taken over by
// someone else after expiry.
func (l *RedisLease) Acquire(ctx context.Context) (func(), error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrHeld
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
				l.logger.Warn("release lease failed, it will expire on its own", "key", l.key, "ttl", l.ttl, "err", err)
			}
		})
	}, nil
}

func (l *RedisLease) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
			renewed, err := renewScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
			cancel()
			if errors.Is(err, redis.ErrClosed) {
				return
			}
			if err != nil {
				l.logger.Warn("renew lease failed", "key", l.key, "err", err)
				continue
			}
			if renewed == 0 {
				l.logger.Warn("lease lost before release", "key", l.key)
				return
			}
		}
	}
}

func (l *RedisLease) Close() error {
	return l.client.Close()
}

func (l *RedisLease) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
