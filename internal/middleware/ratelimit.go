package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerWindow int           // Number of requests allowed per window
	Window            time.Duration // Time window for rate limiting
	KeyPrefix         string        // Redis key prefix
}

// RateLimiter counts requests per client in Redis so several terminals
// share one budget. Without Redis, or while it is unreachable, each client
// gets an in-process token bucket of the same size.
type RateLimiter struct {
	redis  *redis.Client
	config RateLimitConfig
	logger *zap.Logger

	mu        sync.Mutex
	local     map[string]*localBucket
	lastSweep time.Time
	now       func() time.Time
}

// localBucket is a client's in-process budget. A bucket idle for a whole
// window is full again, so it can be dropped and recreated on demand.
type localBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// NewRateLimiter creates a limiter. redisClient may be nil.
func NewRateLimiter(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) *RateLimiter {
	if config.RequestsPerWindow < 1 {
		config.RequestsPerWindow = 1
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}
	return &RateLimiter{
		redis:  redisClient,
		config: config,
		logger: logger,
		local:  make(map[string]*localBucket),
		now:    time.Now,
	}
}

// Allow consumes one request for clientID and reports whether it is within
// the limit, how many remain, and when to retry if not.
func (l *RateLimiter) Allow(ctx context.Context, clientID string) (bool, int, time.Duration) {
	if l.redis != nil {
		allowed, remaining, retry, err := l.allowRedis(ctx, clientID)
		if err == nil {
			return allowed, remaining, retry
		}
		l.logger.Error("Redis rate limit error; falling back to local", zap.Error(err))
	}
	return l.allowLocal(clientID)
}

func (l *RateLimiter) allowRedis(ctx context.Context, clientID string) (bool, int, time.Duration, error) {
	key := fmt.Sprintf("%s:%s", l.config.KeyPrefix, clientID)

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, 0, err
	}
	// Set expiry on first request
	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return false, 0, 0, err
		}
	}

	if count > int64(l.config.RequestsPerWindow) {
		ttl, err := l.redis.TTL(ctx, key).Result()
		if err != nil || ttl < 0 {
			ttl = l.config.Window
		}
		return false, 0, ttl, nil
	}
	return true, l.config.RequestsPerWindow - int(count), 0, nil
}

func (l *RateLimiter) allowLocal(clientID string) (bool, int, time.Duration) {
	now := l.now()

	l.mu.Lock()
	l.sweepLocked(now)
	b, ok := l.local[clientID]
	if !ok {
		every := l.config.Window / time.Duration(l.config.RequestsPerWindow)
		b = &localBucket{lim: rate.NewLimiter(rate.Every(every), l.config.RequestsPerWindow)}
		l.local[clientID] = b
	}
	b.seen = now
	l.mu.Unlock()

	r := b.lim.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, 0, delay
	}
	return true, int(b.lim.TokensAt(now)), 0
}

// sweepLocked drops buckets idle for longer than a window, at most once per
// window. l.mu must be held.
func (l *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.lastSweep) < l.config.Window {
		return
	}
	l.lastSweep = now
	for id, b := range l.local {
		if now.Sub(b.seen) > l.config.Window {
			delete(l.local, id)
		}
	}
}

// localClients is the number of clients holding an in-process bucket.
func (l *RateLimiter) localClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.local)
}

// Middleware limits requests by client address.
func (l *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := clientAddr(r)
			allowed, remaining, retry := l.Allow(r.Context(), clientID)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.config.RequestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				l.logger.Warn("Rate limit exceeded",
					zap.String("client_id", clientID),
					zap.Int("limit", l.config.RequestsPerWindow),
				)
				seconds := int(retry.Round(time.Second).Seconds())
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(retry).Unix(), 10))
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				RespondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitMiddleware implements rate limiting using Redis
func RateLimitMiddleware(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) func(http.Handler) http.Handler {
	return NewRateLimiter(redisClient, config, logger).Middleware()
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
