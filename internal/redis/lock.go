package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const releaseTimeout = 2 * time.Second

// releaseScript deletes the key only while it still holds our token, so a
// lease that expired and was taken by another replica is left alone.
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// AccountLock serializes writers of one account across replicas with a
// leased SET NX key.
type AccountLock struct {
	client redis.UniversalClient
	ttl    time.Duration
	retry  time.Duration
}

func NewAccountLock(client redis.UniversalClient, ttl, retry time.Duration) *AccountLock {
	return &AccountLock{client: client, ttl: ttl, retry: retry}
}

// Lock blocks until the account lock is held or ctx is done.
func (l *AccountLock) Lock(ctx context.Context, accountID string) (func(), error) {
	key := LockKey(accountID)
	token := uuid.NewString()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("acquire account lock: %w", err)
		}
		if ok {
			return func() { l.release(key, token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *AccountLock) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("failed to release account lock, waiting for lease expiry")
	}
}
