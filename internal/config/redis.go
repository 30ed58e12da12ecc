package config

// Redis holds the durable hold records, carries seat change notifications
// between gateway instances and backs the rate limiter and the seat map
// cache.  It is optional: without it the gateway keeps holds in memory, polls
// the seat table for changes and serves every request uncached.

import (
    "context"
    "crypto/tls"
    "net"
    "time"

    "github.com/redis/go-redis/v9"
    "github.com/sirupsen/logrus"
)

// RedisConfig is read from the REDIS_* variables.
type RedisConfig struct {
    Disabled bool
    Addr     string // REDIS_ADDR, or REDIS_HOST + REDIS_PORT
    Password string
    DB       int
    TLS      bool
    Timeout  time.Duration // startup ping timeout
}

// LoadRedisConfig reads REDIS_DISABLED, REDIS_ADDR, REDIS_HOST, REDIS_PORT,
// REDIS_PASSWORD, REDIS_DB, REDIS_TLS and REDIS_PING_TIMEOUT.  Host and port
// take precedence over REDIS_ADDR when both are set.
func LoadRedisConfig() RedisConfig {
    rc := RedisConfig{
        Disabled: envBool("REDIS_DISABLED", false),
        Addr:     envStr("REDIS_ADDR", "localhost:6379"),
        Password: envStr("REDIS_PASSWORD", ""),
        DB:       envInt("REDIS_DB", 0),
        TLS:      envBool("REDIS_TLS", false),
        Timeout:  envDur("REDIS_PING_TIMEOUT", 2*time.Second),
    }
    if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
        rc.Addr = net.JoinHostPort(host, port)
    }
    return rc
}

// NewRedisClient connects with LoadRedisConfig and pings the server.  It
// returns nil when Redis is disabled or unreachable; callers then use their
// in-process fallbacks.
func NewRedisClient() *redis.Client {
    rc := LoadRedisConfig()
    if rc.Disabled {
        return nil
    }
    opts := &redis.Options{Addr: rc.Addr, Password: rc.Password, DB: rc.DB}
    if rc.TLS {
        opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
    }
    client := redis.NewClient(opts)

    ctx, cancel := context.WithTimeout(context.Background(), rc.Timeout)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        logrus.WithError(err).WithField("addr", rc.Addr).Warn("redis ping failed")
        _ = client.Close()
        return nil
    }
    return client
}
