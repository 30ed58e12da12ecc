package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/event-seat-hold/internal/model"
    "github.com/iliyamo/event-seat-hold/internal/repository"
)

// PublicHandler serves the guest view of an event's seat map.  No session is
// created; a guest sees every selection and reservation as someone else's.
type PublicHandler struct {
    Seats repository.SeatLister
}

func NewPublicHandler(seats repository.SeatLister) *PublicHandler {
    if seats == nil {
        panic("nil seat lister passed to NewPublicHandler")
    }
    return &PublicHandler{Seats: seats}
}

// GetEventSeats handles GET /v1/events/:id/seats.  It returns 404 when the
// event has no seats.
func (h *PublicHandler) GetEventSeats(c echo.Context) error {
    eventID, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    seats, err := h.Seats.ListSeats(c.Request().Context(), eventID)
    if err != nil {
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "seat store unavailable"})
    }
    if len(seats) == 0 {
        return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
    }
    views := model.ViewSeats(seats, "")
    free := 0
    for _, v := range views {
        if v.Class == model.ClassAvailable {
            free++
        }
    }
    return c.JSON(http.StatusOK, echo.Map{
        "event_id":  eventID,
        "available": free,
        "seats":     views,
    })
}
