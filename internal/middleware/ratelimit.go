package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"turnero/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultRPS         = 5
	redisLimitTimeout  = 100 * time.Millisecond
	localLimiterIdle   = 10 * time.Minute
	RateLimitKeyPrefix = "turnero:ratelimit:"
)

// tokenBucketScript refills and takes from a per-key bucket atomically.
// ARGV: rate, capacity, now (seconds), requested. Returns {allowed, remaining, reset_after}.
var tokenBucketScript = redis.NewScript(`
local tokens_key = KEYS[1]
local ts_key = KEYS[2]
local rate = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local ttl = math.ceil((capacity / rate) * 2)

local tokens = tonumber(redis.call("get", tokens_key))
if tokens == nil then tokens = capacity end
local last = tonumber(redis.call("get", ts_key))
if last == nil then last = now end

tokens = math.min(capacity, tokens + math.max(0, now - last) * rate)

if tokens < requested then
    return { 0, tostring(tokens), tostring((requested - tokens) / rate) }
end

tokens = tokens - requested
redis.call("set", tokens_key, tostring(tokens), "EX", tostring(ttl))
redis.call("set", ts_key, tostring(now), "EX", tostring(ttl))
return { 1, tostring(tokens), "0" }
`)

type localLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-client-IP token bucket backed by redis. When redis is
// unreachable it falls back to in-process limiters so requests keep flowing.
type RateLimiter struct {
	rdb   redis.Scripter
	rps   int
	burst int

	mu    sync.Mutex
	local map[string]*localLimiter
	swept time.Time
}

func NewRateLimiter(rdb redis.Scripter, requestsPerSecond int) *RateLimiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = defaultRPS
	}
	return &RateLimiter{
		rdb:   rdb,
		rps:   requestsPerSecond,
		burst: requestsPerSecond,
		local: make(map[string]*localLimiter),
		swept: time.Now(),
	}
}

// RateLimitMiddleware is shorthand for NewRateLimiter(rdb, rps).Handler().
func RateLimitMiddleware(rdb redis.Scripter, requestsPerSecond int) gin.HandlerFunc {
	return NewRateLimiter(rdb, requestsPerSecond).Handler()
}

func (l *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		c.Header("X-RateLimit-Limit", strconv.Itoa(l.rps))

		allowed, remaining, resetAfter, err := l.takeRedis(c.Request.Context(), ip)
		if err != nil {
			logger.Warn("redis rate limit failed, using local fallback",
				zap.Error(err),
				zap.String("ip", ip))
			lim := l.localFor(ip)
			allowed = lim.Allow()
			remaining = lim.Tokens()
			resetAfter = 1
		}

		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(remaining)))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Duration(resetAfter*float64(time.Second))).Unix(), 10))

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too Many Requests"})
			return
		}
		c.Next()
	}
}

func (l *RateLimiter) takeRedis(ctx context.Context, ip string) (bool, float64, float64, error) {
	if l.rdb == nil {
		return false, 0, 0, redis.ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, redisLimitTimeout)
	defer cancel()

	prefix := RateLimitKeyPrefix + ip
	res, err := tokenBucketScript.Run(ctx, l.rdb,
		[]string{prefix + ":tokens", prefix + ":ts"},
		l.rps, l.burst, float64(time.Now().UnixMicro())/1e6, 1,
	).Slice()
	if err != nil {
		return false, 0, 0, err
	}
	if len(res) != 3 {
		// unexpected reply shape: let the request through
		logger.Error("invalid redis rate limit response", zap.Any("response", res))
		return true, float64(l.burst), 0, nil
	}
	return toFloat(res[0]) == 1, toFloat(res[1]), toFloat(res[2]), nil
}

func (l *RateLimiter) localFor(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.swept) > localLimiterIdle {
		for k, v := range l.local {
			if now.Sub(v.lastSeen) > localLimiterIdle {
				delete(l.local, k)
			}
		}
		l.swept = now
	}

	ll, ok := l.local[ip]
	if !ok {
		ll = &localLimiter{limiter: rate.NewLimiter(rate.Limit(l.rps), l.burst)}
		l.local[ip] = ll
	}
	ll.lastSeen = now
	return ll.limiter
}

func toFloat(v any) float64 {
	switch val := v.(type) {
	case int64:
		return float64(val)
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	}
	return 0
}
