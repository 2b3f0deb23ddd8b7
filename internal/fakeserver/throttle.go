package fakeserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var errThrottled = errors.New("too many login attempts")

// ThrottleConfig limits failed logins per account and per client address in
// a fixed window. MaxAttempts <= 0 disables it.
type ThrottleConfig struct {
	MaxAttempts int
	Window      time.Duration
	PerIP       bool
}

// loginThrottle counts failed logins in Redis.
//
//	<prefix>:throttle:user:<username>
//	<prefix>:throttle:ip:<address>
type loginThrottle struct {
	rdb    redis.UniversalClient
	prefix string
	cfg    ThrottleConfig
}

func newLoginThrottle(rdb redis.UniversalClient, prefix string, cfg ThrottleConfig) *loginThrottle {
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return &loginThrottle{rdb: rdb, prefix: prefix, cfg: cfg}
}

func (t *loginThrottle) enabled() bool {
	return t != nil && t.cfg.MaxAttempts > 0
}

func (t *loginThrottle) keys(username, ip string) []string {
	keys := []string{t.prefix + ":throttle:user:" + username}
	if t.cfg.PerIP && ip != "" {
		keys = append(keys, t.prefix+":throttle:ip:"+ip)
	}
	return keys
}

// check returns errThrottled once any counter for the pair has used up the
// window's budget.
func (t *loginThrottle) check(ctx context.Context, username, ip string) error {
	if !t.enabled() {
		return nil
	}
	for _, key := range t.keys(username, ip) {
		count, err := t.rdb.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return fmt.Errorf("throttle lookup: %w", err)
		}
		if count >= int64(t.cfg.MaxAttempts) {
			return errThrottled
		}
	}
	return nil
}

// fail records one failed attempt.
func (t *loginThrottle) fail(ctx context.Context, username, ip string) error {
	if !t.enabled() {
		return nil
	}
	for _, key := range t.keys(username, ip) {
		count, err := t.rdb.Incr(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("throttle increment: %w", err)
		}
		// fixed window: only the first hit sets the expiry
		if count == 1 {
			if err := t.rdb.Expire(ctx, key, t.cfg.Window).Err(); err != nil {
				return fmt.Errorf("throttle expire: %w", err)
			}
		}
	}
	return nil
}

// reset clears the counters after a successful login.
func (t *loginThrottle) reset(ctx context.Context, username, ip string) error {
	if !t.enabled() {
		return nil
	}
	if err := t.rdb.Del(ctx, t.keys(username, ip)...).Err(); err != nil {
		return fmt.Errorf("throttle reset: %w", err)
	}
	return nil
}
