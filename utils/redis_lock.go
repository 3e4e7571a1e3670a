package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrLockLost = errors.New("lock expired or taken over before release")

// releaseLockScript deletes the key only while it still holds our token.
const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// RedisLocker is a single-instance Redis lease lock: SET NX PX to take it and a
// compare-and-delete script to give it back.
type RedisLocker struct {
	client   redis.Cmdable
	newToken func() (string, error)
}

func NewRedisLocker(client redis.Cmdable) *RedisLocker {
	return &RedisLocker{
		client:   client,
		newToken: func() (string, error) { return GenerateCode(16) },
	}
}

// Acquire returns ok=false without error when someone else holds key.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token, err := l.newToken()
	if err != nil {
		return nil, false, fmt.Errorf("generate lock token: %w", err)
	}

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("set lock %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) error {
		n, err := l.client.Eval(ctx, releaseLockScript, []string{key}, token).Int64()
		if err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		if n == 0 {
			return fmt.Errorf("release lock %s: %w", key, ErrLockLost)
		}
		return nil
	}

	return release, true, nil
}
