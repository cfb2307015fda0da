package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/arguiot/arbitrage-bot-sub000/internal/domain"
)

// unlockLua deletes the lock key only when its value still matches the
// holder's token, so an expired-and-reacquired lock is never released by the
// old holder.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// defaultLockTTL bounds how long a crashed holder can wedge the bot.
const defaultLockTTL = 30 * time.Second

// LockManager implements domain.LockManager on SETNX plus a conditional Lua
// unlock.
type LockManager struct {
	rdb      *redis.Client
	ttl      time.Duration
	unlockSc *redis.Script
}

var _ domain.LockManager = (*LockManager)(nil)

// NewLockManager builds a manager whose locks expire after ttl; ttl <= 0
// selects the default.
func NewLockManager(c *Client, ttl time.Duration) *LockManager {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &LockManager{
		rdb:      c.Underlying(),
		ttl:      ttl,
		unlockSc: redis.NewScript(unlockLua),
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire takes the lock without blocking, returning domain.ErrLockHeld when
// another party holds it. The release function is idempotent.
func (lm *LockManager) Acquire(ctx context.Context, key string) (func(context.Context) error, error) {
	token := uuid.New().String()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, lm.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	released := false
	release := func(ctx context.Context) error {
		if released {
			return nil
		}
		released = true
		if err := lm.unlockSc.Run(ctx, lm.rdb, []string{lk}, token).Err(); err != nil {
			return fmt.Errorf("redis: release lock %s: %w", key, err)
		}
		return nil
	}
	return release, nil
}
