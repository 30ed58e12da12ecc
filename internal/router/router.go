package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"                    // Echo web framework
	"github.com/prometheus/client_golang/prometheus" // gatherer behind /metrics

	"github.com/iliyamo/event-seat-hold/internal/handler" // HTTP handlers
)

// RegisterRoutes registers the operational endpoints: a health check for load
// balancers and the Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, g prometheus.Gatherer) {
	e.GET("/healthz", handler.Health)
	e.GET("/metrics", handler.Metrics(g))
}

// RegisterPublic registers unauthenticated browse endpoints.  The guest seat
// map is served through the response cache; its short TTL keeps it close to
// the live table while absorbing bursts of identical requests.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/events/:id/seats", p.GetEventSeats, cache)
}
