// Package capacity accounts live test-takers per assessment. The counter
// lives in Redis and is only ever touched through atomic scripts, so
// concurrent starts cannot overshoot the cap and releases cannot drive the
// count negative.
package capacity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Accountant interface {
	// TryAcquire claims a slot for the assessment. limit <= 0 means
	// uncapped; the count is still maintained for observability.
	TryAcquire(ctx context.Context, assessmentID uint, limit int) (bool, error)

	// Release hands a slot back. Floored at zero.
	Release(ctx context.Context, assessmentID uint) error

	// Current reports the live count.
	Current(ctx context.Context, assessmentID uint) (int64, error)
}

// acquireScript increments and rolls back in the same script when the cap
// would be exceeded, making the compare-and-increment a single Redis step.
var acquireScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
local limit = tonumber(ARGV[1])
if limit > 0 and count > limit then
	redis.call('DECR', KEYS[1])
	return 0
end
return 1
`)

// releaseScript decrements with a floor at zero, so a stray double release
// can never make the counter negative.
var releaseScript = redis.NewScript(`
local count = redis.call('DECR', KEYS[1])
if count < 0 then
	redis.call('SET', KEYS[1], 0)
	return 0
end
return count
`)

type RedisAccountant struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

func NewRedisAccountant(client redis.UniversalClient, prefix string, logger *slog.Logger) *RedisAccountant {
	return &RedisAccountant{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (a *RedisAccountant) TryAcquire(ctx context.Context, assessmentID uint, limit int) (bool, error) {
	ok, err := acquireScript.Run(ctx, a.client, []string{a.key(assessmentID)}, limit).Int()
	if err != nil {
		return false, fmt.Errorf("acquire capacity slot: %w", err)
	}
	if ok == 0 {
		a.logger.Info("capacity slot refused",
			"assessment_id", assessmentID,
			"limit", limit)
		return false, nil
	}
	return true, nil
}

func (a *RedisAccountant) Release(ctx context.Context, assessmentID uint) error {
	if err := releaseScript.Run(ctx, a.client, []string{a.key(assessmentID)}).Err(); err != nil {
		return fmt.Errorf("release capacity slot: %w", err)
	}
	return nil
}

func (a *RedisAccountant) Current(ctx context.Context, assessmentID uint) (int64, error) {
	count, err := a.client.Get(ctx, a.key(assessmentID)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read capacity counter: %w", err)
	}
	return count, nil
}

func (a *RedisAccountant) key(assessmentID uint) string {
	return fmt.Sprintf("%s:assessment:%d:takers", a.prefix, assessmentID)
}
