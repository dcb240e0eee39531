package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	redisKeyPrefix       = "lock:"
	defaultTTL           = 10 * time.Second
	defaultRetryInterval = 25 * time.Millisecond
	defaultWaitTimeout   = 5 * time.Second
)

// releaseScript deletes the key only if it still carries our token, so an
// expired holder never frees a lock that has since been taken by someone else.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every instance pointed at the same Redis.
type Redis struct {
	Client        *redis.Client
	TTL           time.Duration
	RetryInterval time.Duration
	WaitTimeout   time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{Client: client, TTL: ttl}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	ttl := r.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	retry := r.RetryInterval
	if retry <= 0 {
		retry = defaultRetryInterval
	}
	wait := r.WaitTimeout
	if wait <= 0 {
		wait = defaultWaitTimeout
	}

	fullKey := redisKeyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(wait)

	for {
		ok, err := r.Client.SetNX(ctx, fullKey, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The request context may already be done; release on a fresh one.
			relCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(relCtx, r.Client, []string{fullKey}, token).Err(); err != nil {
				log.Warn().Err(err).Str("key", fullKey).Msg("lock release failed")
			}
		})
	}, nil
}
