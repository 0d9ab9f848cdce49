// Package ratelimit implements fixed-window request counting in Redis.
//
// The window opens on the first request for a key and is never extended by
// later requests, so a burst at the end of one window and the start of the
// next can admit up to 2x the limit. That is acceptable for OTP issuance.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"live-support/internal/apperr"
	"live-support/pkg/utils"

	"github.com/redis/go-redis/v9"
)

var ErrLimited = apperr.New(apperr.ErrRateLimited, "too many requests")

// Rule is a limit per identity per window.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed bool
	Count   int64
	Limit   int
}

type Limiter struct {
	rdb    redis.Scripter
	prefix string
}

func NewLimiter(rdb redis.Scripter) *Limiter {
	return &Limiter{rdb: rdb, prefix: "ratelimit"}
}

func (l *Limiter) key(action, identity string) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, action, identity)
}

// Allow counts one request. A denied request still counts toward the window.
// Store failures are returned wrapped as apperr.ErrUnavailable; callers must
// treat them as a denial.
func (l *Limiter) Allow(ctx context.Context, identity, action string, rule Rule) (Decision, error) {
	if identity == "" || action == "" {
		return Decision{}, apperr.New(apperr.ErrInvalidInput, "identity and action are required")
	}
	if rule.Limit <= 0 || rule.Window <= 0 {
		return Decision{}, errors.New("rate rule must have positive limit and window")
	}

	n, err := utils.IncrementWindow(ctx, l.rdb, l.key(action, identity), rule.Window)
	if err != nil {
		return Decision{}, apperr.Unavailable("rate limit", err)
	}
	return Decision{Allowed: n <= int64(rule.Limit), Count: n, Limit: rule.Limit}, nil
}

// Check is Allow folded into a single error: nil means proceed.
func (l *Limiter) Check(ctx context.Context, identity, action string, rule Rule) error {
	d, err := l.Allow(ctx, identity, action, rule)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return ErrLimited
	}
	return nil
}
