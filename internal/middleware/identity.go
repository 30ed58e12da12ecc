package middleware

// identity.go defines helpers that read the caller identity stored by
// JWTAuth.  Routes that do not run JWTAuth see the caller as a guest.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-seat-hold/internal/model"
)

// CurrentUser returns the authenticated user and whether one is present.
func CurrentUser(c echo.Context) (model.User, bool) {
    id, _ := c.Get(CtxUserID).(string)
    if id == "" {
        return model.User{}, false
    }
    name, _ := c.Get(CtxUserName).(string)
    return model.User{ID: id, Name: name}, true
}

// userID returns the authenticated user id, or "guest".
func userID(c echo.Context) string {
    if u, ok := CurrentUser(c); ok {
        return u.ID
    }
    return "guest"
}
