package handler // declare the package name; contains HTTP handlers

import (
    "net/http" // net/http provides status codes and response helpers

    "github.com/labstack/echo/v4"                             // echo is the web framework used for this project
    "github.com/prometheus/client_golang/prometheus"          // prometheus gathers the registered collectors
    "github.com/prometheus/client_golang/prometheus/promhttp" // promhttp renders them in the exposition format
)

// Health is a simple health‑check endpoint used by load balancers and
// monitoring systems to verify that the service is running.  It returns
// a plain text "ok" message with an HTTP 200 status code.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Metrics returns a handler exposing the collectors of g for scraping.
func Metrics(g prometheus.Gatherer) echo.HandlerFunc {
    return echo.WrapHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{EnableOpenMetrics: true}))
}
