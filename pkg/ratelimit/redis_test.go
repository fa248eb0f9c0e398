package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/campus-print-api/pkg/config"
)

type zsetStub struct {
	sets    map[string]map[string]float64
	expires map[string]time.Duration
	fail    error
}

func newZsetStub() *zsetStub {
	return &zsetStub{sets: map[string]map[string]float64{}, expires: map[string]time.Duration{}}
}

func (s *zsetStub) ZRemRangeByScore(_ context.Context, key, _, max string) *redis.IntCmd {
	if s.fail != nil {
		return redis.NewIntResult(0, s.fail)
	}
	limit, _ := strconv.ParseFloat(max, 64)
	var removed int64
	for member, score := range s.sets[key] {
		if score <= limit {
			delete(s.sets[key], member)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (s *zsetStub) ZCard(_ context.Context, key string) *redis.IntCmd {
	return redis.NewIntResult(int64(len(s.sets[key])), nil)
}

func (s *zsetStub) ZAdd(_ context.Context, key string, members ...redis.Z) *redis.IntCmd {
	if s.sets[key] == nil {
		s.sets[key] = map[string]float64{}
	}
	for _, m := range members {
		s.sets[key][m.Member.(string)] = m.Score
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (s *zsetStub) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	s.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (s *zsetStub) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(s.sets, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisLimiterWindow(t *testing.T) {
	stub := newZsetStub()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	limiter := NewRedis(stub, Policy{MaxAttempts: 2, Window: time.Minute}, "rl:")
	limiter.now = clock.Now
	ctx := context.Background()

	limiter.Record(ctx, "ip", false)
	clock.Advance(time.Second)
	limiter.Record(ctx, "ip", false)
	assert.False(t, limiter.Allow(ctx, "ip"))
	assert.Equal(t, time.Minute, stub.expires["rl:ip"])

	clock.Advance(time.Minute)
	assert.True(t, limiter.Allow(ctx, "ip"))
}

func TestRedisLimiterSuccessDeletesKey(t *testing.T) {
	stub := newZsetStub()
	limiter := NewRedis(stub, Policy{MaxAttempts: 1, Window: time.Minute}, "rl:")
	ctx := context.Background()

	limiter.Record(ctx, "ip", false)
	assert.False(t, limiter.Allow(ctx, "ip"))
	limiter.Record(ctx, "ip", true)
	assert.True(t, limiter.Allow(ctx, "ip"))
}

func TestRedisLimiterFailsOpen(t *testing.T) {
	stub := newZsetStub()
	stub.fail = errors.New("connection refused")
	limiter := NewRedis(stub, Policy{MaxAttempts: 1, Window: time.Minute}, "rl:")
	assert.True(t, limiter.Allow(context.Background(), "ip"))
}

func TestNewSelectsDriver(t *testing.T) {
	l, err := New(config.RateLimitConfig{Driver: config.RateLimitOff}, nil)
	assert.NoError(t, err)
	assert.IsType(t, Noop{}, l)

	l, err = New(config.RateLimitConfig{Driver: config.RateLimitMemory, MaxAttempts: 3}, nil)
	assert.NoError(t, err)
	assert.IsType(t, &Memory{}, l)

	_, err = New(config.RateLimitConfig{Driver: config.RateLimitRedis}, nil)
	assert.Error(t, err)

	_, err = New(config.RateLimitConfig{Driver: "bogus"}, nil)
	assert.Error(t, err)
}
