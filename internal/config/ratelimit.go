package config

import "time"

// RateLimitConfig shapes the token bucket in front of the seat intent routes
// (toggle, hold, cancel, confirm).  Every intent costs one token; the bucket is
// shared by all gateway instances through Redis.
type RateLimitConfig struct {
    Enabled        bool
    Capacity       int           // burst size
    RefillTokens   int           // tokens added per RefillInterval
    RefillInterval time.Duration
    TTL            time.Duration // idle buckets are dropped after this
    KeyStrategy    string        // see middleware.buildRateKey
    Prefix         string
    Debug          bool          // expose the bucket key in X-RateLimit-Key
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.  The defaults allow a
// burst of 20 seat clicks and one more per second, per user and route.
func LoadRateLimitConfig() RateLimitConfig {
    rl := RateLimitConfig{
        Enabled:        envBool("RATE_LIMIT_ENABLED", true),
        Capacity:       envInt("RATE_LIMIT_CAPACITY", 20),
        RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
        RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy:    envStr("RATE_LIMIT_KEY_STRATEGY", "user_route"),
        Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:          envBool("RATE_LIMIT_DEBUG", false),
    }
    // RATE_LIMIT_BURST and RATE_LIMIT_REFILL_EVERY are shorthands that win
    // over the long forms.
    if b := envInt("RATE_LIMIT_BURST", -1); b > 0 {
        rl.Capacity = b
    }
    if every := envDur("RATE_LIMIT_REFILL_EVERY", 0); every > 0 {
        rl.RefillTokens = 1
        rl.RefillInterval = every
    }

    rl.Capacity = max(rl.Capacity, 1)
    rl.RefillTokens = max(rl.RefillTokens, 1)
    if rl.RefillInterval <= 0 {
        rl.RefillInterval = time.Second
    }
    // A bucket must outlive a few refills or it is recreated full.
    rl.TTL = max(rl.TTL, 5*rl.RefillInterval)
    return rl
}
