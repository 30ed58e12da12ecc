package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-seat-hold/internal/handler"
	"github.com/iliyamo/event-seat-hold/internal/middleware"
)

// RegisterSession registers the seat session endpoints under
// /v1/events/:id.  All routes require a valid JWT.  The limiter throttles
// seat intents per user; reading the session or the purchase is not
// throttled.
func RegisterSession(e *echo.Echo, h *handler.SessionHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/events/:id", middleware.JWTAuth(jwtSecret))

	g.POST("/session", h.Open)
	g.GET("/session", h.Get)
	g.DELETE("/session", h.Leave)

	g.POST("/seats/:seat_id/toggle", h.Toggle, limiter)
	g.POST("/hold", h.PlaceHold, limiter)
	g.DELETE("/hold", h.CancelHold, limiter)
	g.POST("/confirm", h.Confirm, limiter)
	g.GET("/purchase", h.Purchase)
}
