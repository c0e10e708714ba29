package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/buildledger/internal/config"
)

const keyIdentifierMint = "identifier:mint:%s"

// IdentifierLimiter throttles identifier minting per actor so a runaway client
// cannot burn through a counter.
type IdentifierLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewIdentifierLimiter(cfg config.Config, client *redis.Client) *IdentifierLimiter {
	if client == nil || cfg.IdentifierRateLimit <= 0 || cfg.IdentifierRateBurst <= 0 {
		return nil
	}
	return &IdentifierLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.IdentifierRateLimit,
		burst:  cfg.IdentifierRateBurst,
	}
}

func (l *IdentifierLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow always admits when the limiter is disabled.
func (l *IdentifierLimiter) Allow(ctx context.Context, actorID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		actorID = "anonymous"
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyIdentifierMint, actorID), l.rate, l.burst)
}
