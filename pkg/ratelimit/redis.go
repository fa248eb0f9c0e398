package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// sortedSetClient is the subset of go-redis commands the limiter issues.
type sortedSetClient interface {
	ZRemRangeByScore(ctx context.Context, key, min, max string) *redis.IntCmd
	ZCard(ctx context.Context, key string) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis shares failure windows across instances using one sorted set per key.
type Redis struct {
	client sortedSetClient
	policy Policy
	prefix string
	now    func() time.Time
}

// NewRedis builds a redis backed limiter.
func NewRedis(client sortedSetClient, policy Policy, prefix string) *Redis {
	return &Redis{
		client: client,
		policy: policy.normalize(),
		prefix: prefix,
		now:    time.Now,
	}
}

// Allow fails open when redis is unreachable so logins keep working.
func (r *Redis) Allow(ctx context.Context, key string) bool {
	k := r.prefix + key
	cutoff := r.now().Add(-r.policy.Window).UnixNano()
	if err := r.client.ZRemRangeByScore(ctx, k, "-inf", strconv.FormatInt(cutoff, 10)).Err(); err != nil {
		return true
	}
	count, err := r.client.ZCard(ctx, k).Result()
	if err != nil {
		return true
	}
	return count < int64(r.policy.MaxAttempts)
}

// Record adds a failure to the window or clears it on success.
func (r *Redis) Record(ctx context.Context, key string, success bool) {
	k := r.prefix + key
	if success {
		_ = r.client.Del(ctx, k).Err()
		return
	}
	now := r.now()
	member := redis.Z{Score: float64(now.UnixNano()), Member: uuid.NewString()}
	if err := r.client.ZAdd(ctx, k, member).Err(); err != nil {
		return
	}
	_ = r.client.Expire(ctx, k, r.policy.Window).Err()
}
