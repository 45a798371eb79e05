package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"shop-core/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration for one throttle scope
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix, one per scope
}

// NewRateLimitConfig builds the config of a scope from a rate such as "20/day"
func NewRateLimitConfig(scope, rate string) (RateLimitConfig, error) {
	requests, window, err := config.ParseRate(rate)
	if err != nil {
		return RateLimitConfig{}, fmt.Errorf("throttle scope %s: %w", scope, err)
	}
	return RateLimitConfig{
		RequestsPerWindow: requests,
		Window:            window,
		KeyPrefix:         "throttle:" + scope,
	}, nil
}

// RateLimitMiddleware implements fixed-window rate limiting using Redis. All
// callers share the same scope.
func RateLimitMiddleware(redisClient *redis.Client, cfg RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return ScopedRateLimitMiddleware(redisClient, cfg, cfg, logger)
}

// ScopedRateLimitMiddleware applies userCfg to authenticated callers, keyed by
// user id, and anonCfg to everyone else, keyed by client IP
func ScopedRateLimitMiddleware(redisClient *redis.Client, userCfg, anonCfg RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cfg, clientID := anonCfg, "ip:"+clientIP(r)
			if actor, ok := ActorFromContext(r.Context()); ok {
				cfg, clientID = userCfg, "user:"+actor.UserID.String()
			}
			key := cfg.KeyPrefix + ":" + clientID

			count, ttl, err := hit(r.Context(), redisClient, key, cfg.Window)
			if err != nil {
				// Redis outages must not take the API down with them
				logger.Error("Rate limit counter unavailable", zap.Error(err), zap.String("key", key))
				next.ServeHTTP(w, r)
				return
			}

			remaining := cfg.RequestsPerWindow - int(count)
			if remaining < 0 {
				remaining = 0
			}
			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

			if count > int64(cfg.RequestsPerWindow) {
				logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.String("scope", cfg.KeyPrefix),
					zap.Int64("count", count),
					zap.Int("limit", cfg.RequestsPerWindow),
				)
				h.Set("Retry-After", strconv.Itoa(int(ttl.Round(time.Second).Seconds())))
				RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// hit counts one request against key and returns the count so far in the
// current window with the time left until it resets. The window starts with
// the first request.
func hit(ctx context.Context, client *redis.Client, key string, window time.Duration) (int64, time.Duration, error) {
	var (
		incr *redis.IntCmd
		ttl  *redis.DurationCmd
	)
	_, err := client.Pipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		ttl = p.TTL(ctx, key)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	left := ttl.Val()
	if left < 0 {
		if err := client.Expire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		left = window
	}
	return incr.Val(), left, nil
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
