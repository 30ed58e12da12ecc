package handler

import (
    "errors"
    "net/http"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"
    "github.com/sirupsen/logrus"

    "github.com/iliyamo/event-seat-hold/internal/middleware"
    "github.com/iliyamo/event-seat-hold/internal/seathold"
    "github.com/iliyamo/event-seat-hold/internal/session"
)

// SessionHandler exposes a user's seat session for one event over HTTP.
// Every route runs behind JWTAuth.  Intent routes mount the session on first
// use, so a client may skip the explicit POST /session.
type SessionHandler struct {
    Registry  *session.Registry
    validator *validator.Validate
    log       *logrus.Entry
}

func NewSessionHandler(registry *session.Registry, log *logrus.Entry) *SessionHandler {
    if registry == nil {
        panic("nil registry passed to NewSessionHandler")
    }
    if log == nil {
        log = logrus.NewEntry(logrus.StandardLogger())
    }
    return &SessionHandler{Registry: registry, validator: validator.New(), log: log.WithField("component", "session_handler")}
}

// HoldRequest is the body of POST /v1/events/:id/hold.
type HoldRequest struct {
    SeatIDs []uint64 `json:"seat_ids" validate:"required,min=1,dive,gt=0"`
}

// Open handles POST /v1/events/:id/session.  Mounting resumes a hold left by
// an earlier session of the same user.
func (h *SessionHandler) Open(c echo.Context) error {
    m, ok, err := h.mount(c)
    if !ok {
        return err
    }
    return c.JSON(http.StatusOK, echo.Map{"session": m.Snapshot()})
}

// Get handles GET /v1/events/:id/session.  With ?refresh=true the seat map
// is re-read before the snapshot is taken.
func (h *SessionHandler) Get(c echo.Context) error {
    m, ok, err := h.mount(c)
    if !ok {
        return err
    }
    if c.QueryParam("refresh") == "true" {
        if err := m.RefreshSeats(c.Request().Context()); err != nil {
            return h.fail(c, m, err)
        }
    }
    return c.JSON(http.StatusOK, echo.Map{"session": m.Snapshot()})
}

// Leave handles DELETE /v1/events/:id/session: the user navigates away.
// Selections are given back; a hold keeps its countdown and can still be
// confirmed by coming back before it expires.
func (h *SessionHandler) Leave(c echo.Context) error {
    eventID, ok := pathID(c, "id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    user, ok := middleware.CurrentUser(c)
    if !ok {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if err := h.Registry.Leave(c.Request().Context(), user.ID, eventID); err != nil {
        h.log.WithError(err).WithField("user_id", user.ID).Warn("exit cleanup failed")
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "exit cleanup failed"})
    }
    return c.NoContent(http.StatusNoContent)
}

// Toggle handles POST /v1/events/:id/seats/:seat_id/toggle.
func (h *SessionHandler) Toggle(c echo.Context) error {
    seatID, ok := pathID(c, "seat_id")
    if !ok {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid seat id"})
    }
    m, ok, err := h.mount(c)
    if !ok {
        return err
    }
    if err := m.ToggleSelection(c.Request().Context(), seatID); err != nil {
        return h.fail(c, m, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"session": m.Snapshot()})
}

// PlaceHold handles POST /v1/events/:id/hold.  The body lists the seats to
// hold; seats already held by the caller are kept and the countdown restarts.
func (h *SessionHandler) PlaceHold(c echo.Context) error {
    var body HoldRequest
    if err := c.Bind(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
    }
    if err := h.validator.Struct(&body); err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": err.Error()})
    }
    m, ok, err := h.mount(c)
    if !ok {
        return err
    }
    hold, err := m.PlaceHold(c.Request().Context(), body.SeatIDs)
    if err != nil {
        return h.fail(c, m, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "hold":       hold,
        "expires_at": hold.ExpiresAt(),
        "session":    m.Snapshot(),
    })
}

// CancelHold handles DELETE /v1/events/:id/hold.
func (h *SessionHandler) CancelHold(c echo.Context) error {
    m, ok, err := h.mount(c)
    if !ok {
        return err
    }
    if err := m.CancelHold(c.Request().Context()); err != nil {
        return h.fail(c, m, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"session": m.Snapshot()})
}

// Confirm handles POST /v1/events/:id/confirm.
func (h *SessionHandler) Confirm(c echo.Context) error {
    m, ok, err := h.mount(c)
    if !ok {
        return err
    }
    p, err := m.ConfirmPurchase(c.Request().Context())
    if err != nil {
        return h.fail(c, m, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"purchase": p, "session": m.Snapshot()})
}

// Purchase handles GET /v1/events/:id/purchase: the seats the caller has
// bought for the event, read back from the seat table.
func (h *SessionHandler) Purchase(c echo.Context) error {
    m, ok, err := h.mount(c)
    if !ok {
        return err
    }
    p, err := m.Purchased(c.Request().Context())
    if err != nil {
        return h.fail(c, m, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"purchase": p})
}

// mount resolves the caller's session.  When ok is false the response has
// already been written and err is what the handler must return.
func (h *SessionHandler) mount(c echo.Context) (*seathold.Manager, bool, error) {
    eventID, ok := pathID(c, "id")
    if !ok {
        return nil, false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
    }
    user, ok := middleware.CurrentUser(c)
    if !ok {
        return nil, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    m, err := h.Registry.Open(c.Request().Context(), user, eventID)
    if err != nil {
        h.log.WithError(err).WithFields(logrus.Fields{"user_id": user.ID, "event_id": eventID}).Warn("mount failed")
        return nil, false, c.JSON(http.StatusBadGateway, echo.Map{"error": "seat store unavailable"})
    }
    return m, true, nil
}

// fail maps a session error to its HTTP status.  The body always carries the
// snapshot taken after the manager's refresh so the client can redraw.
func (h *SessionHandler) fail(c echo.Context, m *seathold.Manager, err error) error {
    body := echo.Map{"error": err.Error(), "session": m.Snapshot()}
    status := http.StatusInternalServerError
    switch {
    case errors.Is(err, seathold.ErrSeatUnavailable):
        status = http.StatusBadRequest
        body["unavailable"] = nonNil(seathold.SeatsOf(err))
    case errors.Is(err, seathold.ErrNotOwner):
        status = http.StatusForbidden
        body["seats"] = nonNil(seathold.SeatsOf(err))
    case errors.Is(err, seathold.ErrConflict):
        status = http.StatusConflict
        body["conflicts"] = nonNil(seathold.SeatsOf(err))
    case errors.Is(err, seathold.ErrHoldExpired):
        status = http.StatusGone
    case errors.Is(err, seathold.ErrNoActiveHold):
        status = http.StatusBadRequest
    case errors.Is(err, seathold.ErrNoPurchase):
        status = http.StatusNotFound
    case errors.Is(err, seathold.ErrSessionClosed):
        status = http.StatusConflict
    case errors.Is(err, seathold.ErrStore):
        status = http.StatusBadGateway
        body["error"] = "seat store unavailable"
    }
    if status >= 500 {
        h.log.WithError(err).WithField("event_id", m.EventID()).Error("session intent failed")
    }
    return c.JSON(status, body)
}

func nonNil(ids []uint64) []uint64 {
    if ids == nil {
        return []uint64{}
    }
    return ids
}
