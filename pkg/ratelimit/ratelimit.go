package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/campus-print-api/pkg/config"
)

// Limiter throttles repeated failures per key, typically a client address
// combined with the attempted account.
type Limiter interface {
	Allow(ctx context.Context, key string) bool
	Record(ctx context.Context, key string, success bool)
}

// Policy is the shared failure budget: MaxAttempts failures within Window.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

func (p Policy) normalize() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.Window <= 0 {
		p.Window = 15 * time.Minute
	}
	return p
}

// New selects the limiter configured by RATE_LIMIT_DRIVER. The redis client is
// only required for the redis driver.
func New(cfg config.RateLimitConfig, client redis.UniversalClient) (Limiter, error) {
	policy := Policy{MaxAttempts: cfg.MaxAttempts, Window: cfg.Window}
	switch cfg.Driver {
	case "", config.RateLimitMemory:
		return NewMemory(policy), nil
	case config.RateLimitRedis:
		if client == nil {
			return nil, fmt.Errorf("redis rate limiter requires a redis client")
		}
		return NewRedis(client, policy, "ratelimit:login:"), nil
	case config.RateLimitOff:
		return Noop{}, nil
	default:
		return nil, fmt.Errorf("unknown rate limit driver %q", cfg.Driver)
	}
}
