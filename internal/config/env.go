package config

import (
    "os"
    "strconv"
    "strings"
    "time"

    "github.com/sirupsen/logrus"
)

// The env* helpers return d when k is unset.  A malformed value also falls
// back to d, with a warning naming the variable.

func envStr(k, d string) string {
    if v := strings.TrimSpace(os.Getenv(k)); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    v := strings.ToLower(strings.TrimSpace(os.Getenv(k)))
    switch v {
    case "":
        return d
    case "1", "true", "yes", "on":
        return true
    case "0", "false", "no", "off":
        return false
    }
    malformed(k, v)
    return d
}

func envInt(k string, d int) int {
    v := strings.TrimSpace(os.Getenv(k))
    if v == "" {
        return d
    }
    n, err := strconv.Atoi(v)
    if err != nil {
        malformed(k, v)
        return d
    }
    return n
}

func envDur(k string, d time.Duration) time.Duration {
    v := strings.TrimSpace(os.Getenv(k))
    if v == "" {
        return d
    }
    dur, err := time.ParseDuration(v)
    if err != nil {
        malformed(k, v)
        return d
    }
    return dur
}

func malformed(k, v string) {
    logrus.WithFields(logrus.Fields{"var": k, "value": v}).Warn("ignoring malformed env var, using default")
}
