package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/counseling/internal/config"
	"go.uber.org/zap"
)

const keyRegistration = "registration:client:%s"

// RegistrationLimiter throttles account registrations per client address.
// It is a no-op without redis.
type RegistrationLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

func NewRegistrationLimiter(client *redis.Client, cfg config.Config, log *zap.Logger) *RegistrationLimiter {
	if client == nil || cfg.RegistrationRate <= 0 || cfg.RegistrationBurst <= 0 {
		return &RegistrationLimiter{log: log}
	}
	return &RegistrationLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.RegistrationRate,
		burst:  cfg.RegistrationBurst,
		log:    log,
	}
}

func (l *RegistrationLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow fails open when redis is unreachable.
func (l *RegistrationLimiter) Allow(ctx context.Context, clientAddr string) Decision {
	if !l.Enabled() {
		return Decision{Allowed: true}
	}
	decision, err := l.bucket.Allow(ctx, fmt.Sprintf(keyRegistration, strings.TrimSpace(clientAddr)), l.rate, l.burst)
	if err != nil {
		l.log.Warn("registration rate limit check failed", zap.Error(err))
		return Decision{Allowed: true}
	}
	return decision
}
