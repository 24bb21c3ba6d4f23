// Package rate holds redis backed sliding window limiters.
package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "queue_rate_limit"

// RateLimit allows MaxJobs events in any trailing Window.
type RateLimit struct {
	Window  time.Duration
	MaxJobs int
}

type QueueConfig struct {
	Name      string
	RateLimit RateLimit
}

// QueueRateLimiter keeps one sorted set per identifier. Members are unique event ids scored by
// their time in milliseconds.
type QueueRateLimiter struct {
	redis  *redis.Client
	config QueueConfig
	now    func() time.Time
}

func NewQueueRateLimiter(client *redis.Client, config QueueConfig) *QueueRateLimiter {
	return &QueueRateLimiter{redis: client, config: config, now: time.Now}
}

func (l *QueueRateLimiter) key(identifier string) string {
	return keyPrefix + ":" + l.config.Name + ":" + identifier
}

// Allow records an event for identifier and reports whether the events already in the window
// were under the limit. Denied attempts are recorded as well.
func (l *QueueRateLimiter) Allow(ctx context.Context, identifier string) (bool, error) {
	var (
		key    = l.key(identifier)
		limit  = l.config.RateLimit
		stamp  = l.now().UnixMilli()
		cutoff = strconv.FormatInt(stamp-limit.Window.Milliseconds(), 10)
		seen   *redis.IntCmd
	)

	_, err := l.redis.TxPipelined(ctx, func(tx redis.Pipeliner) error {
		tx.ZRemRangeByScore(ctx, key, "-inf", cutoff)
		seen = tx.ZCard(ctx, key)
		tx.ZAdd(ctx, key, redis.Z{Score: float64(stamp), Member: uuid.NewString()})
		tx.PExpire(ctx, key, 2*limit.Window)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("rate %s: %w", l.config.Name, err)
	}
	return seen.Val() < int64(limit.MaxJobs), nil
}

// Reset forgets every event recorded for identifier.
func (l *QueueRateLimiter) Reset(ctx context.Context, identifier string) error {
	return l.redis.Del(ctx, l.key(identifier)).Err()
}
