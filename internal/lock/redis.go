package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	defaultLeaseTTL     = 30 * time.Second
	defaultRetryBackoff = 100 * time.Millisecond
)

var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

var extendScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('PEXPIRE', KEYS[1], ARGV[2])
	end
	return 0
`)

// RedisLeaseConfig tunes the distributed lease.
type RedisLeaseConfig struct {
	Prefix       string
	TTL          time.Duration
	RetryBackoff time.Duration
	Logger       zerolog.Logger
}

// RedisLease is a Locker backed by a Redis key holding a random token. While held, the lease is
// extended every TTL/3 so long evaluation passes keep exclusive access across instances.
type RedisLease struct {
	client *redis.Client
	cfg    RedisLeaseConfig
}

// NewRedisLease builds a distributed locker.
func NewRedisLease(client *redis.Client, cfg RedisLeaseConfig) *RedisLease {
	if cfg.Prefix == "" {
		cfg.Prefix = "peak:lock"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultLeaseTTL
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = defaultRetryBackoff
	}
	return &RedisLease{client: client, cfg: cfg}
}

func (l *RedisLease) key(key string) string {
	return fmt.Sprintf("%s:%s", l.cfg.Prefix, key)
}

// Lock polls until the lease is obtained or ctx is done.
func (l *RedisLease) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := l.key(key)
	token := uuid.NewString()

	for {
		ok, err := l.client.SetNX(ctx, redisKey, token, l.cfg.TTL).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.Join(ErrNotAcquired, ctxErr)
			}
			return nil, fmt.Errorf("acquire lease %s: %w", redisKey, err)
		}
		if ok {
			break
		}

		timer := time.NewTimer(l.cfg.RetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, errors.Join(ErrNotAcquired, ctx.Err())
		case <-timer.C:
		}
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		l.keepAlive(redisKey, token, stop)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			wg.Wait()
			releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, l.client, []string{redisKey}, token).Err(); err != nil {
				l.cfg.Logger.Warn().Err(err).Str("key", redisKey).Msg("failed to release lease")
			}
		})
	}, nil
}

func (l *RedisLease) keepAlive(redisKey, token string, stop <-chan struct{}) {
	ticker := time.NewTicker(l.cfg.TTL / 3)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), l.cfg.TTL/3)
			extended, err := extendScript.Run(ctx, l.client, []string{redisKey}, token, l.cfg.TTL.Milliseconds()).Int()
			cancel()
			if err != nil {
				l.cfg.Logger.Warn().Err(err).Str("key", redisKey).Msg("failed to extend lease")
				continue
			}
			if extended == 0 {
				l.cfg.Logger.Error().Str("key", redisKey).Msg("lease lost before release")
				return
			}
		}
	}
}
