package handler // handler defines http handlers

import (
    "strconv" // strconv converts path parameters to numeric ids

    "github.com/labstack/echo/v4" // echo defines request context types
)

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
    n, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || n == 0 {
        return 0, false
    }
    return n, true
}
