package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter is a fixed-window hit counter. Hit increments key and returns the
// new count together with the time left in the window. A non-zero count
// with an error means the hit was recorded but the window could not be
// read or set.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (count int64, ttl time.Duration, err error)
}

// RedisCounter implements Counter with INCR + EXPIRE.
type RedisCounter struct {
	client redis.Cmdable
}

func NewRedisCounter(client redis.Cmdable) *RedisCounter {
	return &RedisCounter{client: client}
}

// Hit increments key. The first hit of a window sets its expiry, and a key
// found without one gets it back so the counter cannot grow forever.
func (c *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("ratelimit: incr %s: %w", key, err)
	}

	if count == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return count, window, fmt.Errorf("ratelimit: expire %s: %w", key, err)
		}
		return count, window, nil
	}

	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return count, window, fmt.Errorf("ratelimit: ttl %s: %w", key, err)
	}
	if ttl < 0 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return count, window, fmt.Errorf("ratelimit: restoring expiry on %s: %w", key, err)
		}
		ttl = window
	}
	return count, ttl, nil
}

// RateLimiter throttles requests per client IP.
type RateLimiter struct {
	counter Counter
	logger  *slog.Logger
}

func NewRateLimiter(counter Counter, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{counter: counter, logger: logger}
}

// Limit allows at most limit requests per window for each client IP under
// the given key prefix. Over the limit it answers 429 with Retry-After.
// If the counter cannot record the hit the request is let through.
func (rl *RateLimiter) Limit(keySuffix string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("rate_limit:%s:%s", keySuffix, clientIP(r))

			count, ttl, err := rl.counter.Hit(r.Context(), key, window)
			if err != nil {
				if count == 0 {
					rl.logger.Warn("rate limiter unavailable, allowing request",
						slog.String("key", key),
						slog.String("error", err.Error()),
					)
					next.ServeHTTP(w, r)
					return
				}
				// The hit was counted; only the window is uncertain.
				rl.logger.Warn("rate limiter window unknown",
					slog.String("key", key),
					slog.Int64("count", count),
					slog.String("error", err.Error()),
				)
			}

			if count > int64(limit) {
				retry := int(math.Ceil(ttl.Seconds()))
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"status":  "error",
					"error":   "too_many_requests",
					"message": fmt.Sprintf("Too many requests, try again in %d seconds", retry),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr. chi's RealIP middleware has
// already replaced RemoteAddr with the forwarded address when present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
