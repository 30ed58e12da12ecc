package middleware

import (
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/event-seat-hold/internal/config"
)

// tokenBucketScript refills continuously at ARGV[2] tokens per ms and takes
// one token.  Replies {allowed, remaining, retry_after_ms}.
var tokenBucketScript = redis.NewScript(`
local cap, rate, now, ttl = tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4])
local b = redis.call('HMGET', KEYS[1], 't', 'ts')
local t, ts = tonumber(b[1]) or cap, tonumber(b[2]) or now
t = math.min(cap, t + math.max(0, now - ts) * rate)
local ok, wait = 0, 0
if t >= 1 then
  ok, t = 1, t - 1
else
  wait = math.ceil((1 - t) / rate)
end
redis.call('HSET', KEYS[1], 't', t, 'ts', now)
redis.call('PEXPIRE', KEYS[1], ttl)
return {ok, math.floor(t), wait}
`)

// NewTokenBucket throttles seat intents per caller with a Redis token bucket
// shared by every gateway instance.  A Redis failure lets the request through:
// the seat table's conditional writes stay correct without the limiter.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *logrus.Entry) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if log == nil {
        log = logrus.NewEntry(logrus.StandardLogger())
    }
    log = log.WithField("component", "ratelimit")
    interval := cfg.RefillInterval
    if interval < time.Millisecond {
        interval = time.Second
    }
    perMs := float64(max(cfg.RefillTokens, 1)) / float64(interval.Milliseconds())

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(cfg, c)
            res, err := tokenBucketScript.Run(c.Request().Context(), rdb, []string{key},
                cfg.Capacity, perMs, time.Now().UnixMilli(), cfg.TTL.Milliseconds()).Int64Slice()
            if err != nil || len(res) != 3 {
                log.WithError(err).WithField("key", key).Warn("rate limiter unavailable, request allowed")
                return next(c)
            }
            allowed, remaining, retryMs := res[0] == 1, res[1], res[2]

            c.Response().Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
            c.Response().Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
            if cfg.Debug {
                c.Response().Header().Set("X-RateLimit-Key", key)
            }

            if !allowed {
                secs := int(math.Ceil(float64(retryMs) / 1000.0))
                if secs < 0 {
                    secs = 0
                }
                c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
                if cfg.Debug {
                    log.WithFields(logrus.Fields{"key": key, "retry_ms": retryMs}).Info("request throttled")
                }
                return c.JSON(http.StatusTooManyRequests, echo.Map{
                    "error":       "rate limit exceeded",
                    "retry_after": secs,
                })
            }
            return next(c)
        }
    }
}

// buildRateKey names the bucket of a request.  The strategy is an
// underscore-joined list of "ip", "user" and "route" ("user_route" by
// default); an unknown strategy keys on all three.  The route part uses the
// route pattern so all seats of an event share one bucket per user.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
    part := map[string]func() string{
        "ip": func() string {
            if ip := c.RealIP(); ip != "" {
                return ip
            }
            return "unknown"
        },
        "user":  func() string { return userID(c) },
        "route": func() string { return c.Request().Method + " " + c.Path() },
    }
    names := strings.Split(strings.ToLower(cfg.KeyStrategy), "_")
    for _, n := range names {
        if part[n] == nil {
            names = []string{"ip", "user", "route"}
            break
        }
    }
    key := []string{cfg.Prefix}
    for _, n := range names {
        key = append(key, n, part[n]())
    }
    return strings.Join(key, ":")
}
