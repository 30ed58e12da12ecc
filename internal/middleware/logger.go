package middleware

import (
    "time"

    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request once the handler has returned.
// Handler errors are passed to Echo's error handler first so the logged
// status is the one the client received.
func RequestLogger(log *logrus.Entry) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }

            req := c.Request()
            status := c.Response().Status
            entry := log.WithFields(logrus.Fields{
                "method":    req.Method,
                "path":      req.URL.Path,
                "route":     c.Path(),
                "status":    status,
                "duration":  time.Since(start),
                "client_ip": c.RealIP(),
                "user_id":   userID(c),
            })
            if rid := c.Response().Header().Get(echo.HeaderXRequestID); rid != "" {
                entry = entry.WithField("request_id", rid)
            }
            switch {
            case status >= 500:
                entry.Error("request failed")
            case status >= 400:
                entry.Warn("request rejected")
            default:
                entry.Info("request processed")
            }
            return nil
        }
    }
}
