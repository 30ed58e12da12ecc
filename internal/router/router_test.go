package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-hold/internal/handler"
	"github.com/iliyamo/event-seat-hold/internal/metrics"
	"github.com/iliyamo/event-seat-hold/internal/model"
	"github.com/iliyamo/event-seat-hold/internal/repository"
	"github.com/iliyamo/event-seat-hold/internal/session"
	"github.com/iliyamo/event-seat-hold/internal/utils"
)

const secret = "router-secret"

type seatView struct {
	SeatID uint64          `json:"seat_id"`
	Class  model.SeatClass `json:"class"`
}

type response struct {
	Error       string   `json:"error"`
	Unavailable []uint64 `json:"unavailable"`
	Seats       []uint64 `json:"seats"`
	Session     struct {
		Seats           []seatView `json:"seats"`
		SelectedSeatIDs []uint64   `json:"selected_seat_ids"`
		HeldSeatIDs     []uint64   `json:"held_seat_ids"`
		Countdown       int64      `json:"countdown_remaining_seconds"`
	} `json:"session"`
	Purchase *model.Purchase `json:"purchase"`
}

type app struct {
	e     *echo.Echo
	clock *clockwork.FakeClock
	seats *repository.MemorySeatStore
	ids   []uint64
}

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newApp(t *testing.T) *app {
	t.Helper()
	logger, _ := logtest.NewNullLogger()
	log := logrus.NewEntry(logger)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC))

	seats := repository.NewMemorySeatStore()
	rows := seats.Seed(repository.LayoutSeats(1, []int{5}, 1500))
	ids := make([]uint64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.SeatID)
	}

	prom := prometheus.NewRegistry()
	reg := session.NewRegistry(session.Options{
		Seats:        seats,
		Holds:        repository.NewMemoryHoldStore(),
		Metrics:      metrics.New(prom),
		Clock:        clock,
		Log:          log,
		HoldDuration: time.Minute,
		TickInterval: time.Hour,
	})
	// Mirrors t.Context(): canceled just before cleanup runs.
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() { cancel(); _ = reg.CloseAll(ctx) })

	e := echo.New()
	RegisterRoutes(e, prom)
	RegisterPublic(e, handler.NewPublicHandler(seats), passthrough)
	RegisterSession(e, handler.NewSessionHandler(reg, log), secret, passthrough)
	return &app{e: e, clock: clock, seats: seats, ids: ids}
}

func token(t *testing.T, user string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, user, strings.ToUpper(user), time.Hour)
	require.NoError(t, err)
	return tok.Token
}

func (a *app) do(t *testing.T, method, path, tok, body string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var out response
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func classOf(views []seatView, id uint64) model.SeatClass {
	for _, v := range views {
		if v.SeatID == id {
			return v.Class
		}
	}
	return ""
}

func TestOperationalRoutes(t *testing.T) {
	a := newApp(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	a.do(t, http.MethodPost, "/v1/events/1/session", token(t, "alice"), "")
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "seathold_active_sessions 1")
}

func TestSessionRequiresToken(t *testing.T) {
	a := newApp(t)
	code, _ := a.do(t, http.MethodPost, "/v1/events/1/session", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)

	code, out := a.do(t, http.MethodPost, "/v1/events/x/session", token(t, "alice"), "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid event id", out.Error)
}

func TestHoldAndPurchaseFlow(t *testing.T) {
	a := newApp(t)
	alice, bob := token(t, "alice"), token(t, "bob")
	s1, s2 := a.ids[0], a.ids[1]

	code, out := a.do(t, http.MethodPost, "/v1/events/1/session", alice, "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, out.Session.Seats, 5)
	assert.Empty(t, out.Session.HeldSeatIDs)

	code, out = a.do(t, http.MethodPost, "/v1/events/1/seats/1/toggle", alice, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []uint64{s1}, out.Session.SelectedSeatIDs)

	code, out = a.do(t, http.MethodPost, "/v1/events/1/seats/1/toggle", bob, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, []uint64{s1}, out.Unavailable)
	assert.Equal(t, model.ClassSelectedOther, classOf(out.Session.Seats, s1))

	code, out = a.do(t, http.MethodPost, "/v1/events/1/hold", alice, `{"seat_ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation failed", out.Error)

	code, out = a.do(t, http.MethodPost, "/v1/events/1/hold", bob, `{"seat_ids":[2]}`)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, []uint64{s2}, out.Seats)

	code, out = a.do(t, http.MethodPost, "/v1/events/1/hold", alice, `{"seat_ids":[1]}`)
	require.Equal(t, http.StatusCreated, code, out.Error)
	assert.Equal(t, []uint64{s1}, out.Session.HeldSeatIDs)
	assert.Equal(t, int64(60), out.Session.Countdown)

	req := httptest.NewRequest(http.MethodGet, "/v1/events/1/seats", nil)
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"class":"reserved_other"`)
	assert.NotContains(t, rec.Body.String(), "alice")

	a.clock.Advance(20 * time.Second)
	code, out = a.do(t, http.MethodGet, "/v1/events/1/session?refresh=true", alice, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(40), out.Session.Countdown)

	code, out = a.do(t, http.MethodPost, "/v1/events/1/confirm", alice, "")
	require.Equal(t, http.StatusOK, code, out.Error)
	require.NotNil(t, out.Purchase)
	require.Len(t, out.Purchase.Seats, 1)
	assert.Equal(t, "A1", out.Purchase.Seats[0].Position)
	assert.Equal(t, uint64(1500), out.Purchase.TotalCents)
	assert.Equal(t, model.ClassSoldMine, classOf(out.Session.Seats, s1))

	code, out = a.do(t, http.MethodGet, "/v1/events/1/purchase", alice, "")
	require.Equal(t, http.StatusOK, code, out.Error)
	require.NotNil(t, out.Purchase)
	require.Len(t, out.Purchase.Seats, 1)
	assert.Equal(t, s1, out.Purchase.Seats[0].SeatID)
	assert.Equal(t, uint64(1500), out.Purchase.TotalCents)
	assert.Equal(t, "alice", out.Purchase.Buyer.ID)

	code, out = a.do(t, http.MethodGet, "/v1/events/1/purchase", bob, "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "no purchase", out.Error)

	code, out = a.do(t, http.MethodPost, "/v1/events/1/confirm", alice, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "no active hold", out.Error)

	code, _ = a.do(t, http.MethodDelete, "/v1/events/1/session", alice, "")
	assert.Equal(t, http.StatusNoContent, code)
}

func TestExpiredHoldCannotBeConfirmed(t *testing.T) {
	a := newApp(t)
	carol := token(t, "carol")

	code, _ := a.do(t, http.MethodPost, "/v1/events/1/seats/3/toggle", carol, "")
	require.Equal(t, http.StatusOK, code)
	code, _ = a.do(t, http.MethodPost, "/v1/events/1/hold", carol, `{"seat_ids":[3]}`)
	require.Equal(t, http.StatusCreated, code)

	a.clock.Advance(61 * time.Second)
	code, out := a.do(t, http.MethodPost, "/v1/events/1/confirm", carol, "")
	assert.Equal(t, http.StatusGone, code)
	assert.Empty(t, out.Session.HeldSeatIDs)
	assert.Equal(t, model.ClassAvailable, classOf(out.Session.Seats, a.ids[2]))

	seat, _ := a.seats.Get(a.ids[2])
	assert.False(t, seat.Reserved)
}

func TestCancelHold(t *testing.T) {
	a := newApp(t)
	dave := token(t, "dave")

	code, out := a.do(t, http.MethodDelete, "/v1/events/1/hold", dave, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "no active hold", out.Error)

	a.do(t, http.MethodPost, "/v1/events/1/seats/4/toggle", dave, "")
	code, _ = a.do(t, http.MethodPost, "/v1/events/1/hold", dave, `{"seat_ids":[4]}`)
	require.Equal(t, http.StatusCreated, code)

	code, out = a.do(t, http.MethodDelete, "/v1/events/1/hold", dave, "")
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, out.Session.HeldSeatIDs)
	assert.Equal(t, model.ClassAvailable, classOf(out.Session.Seats, a.ids[3]))
}

func TestPublicSeatsUnknownEvent(t *testing.T) {
	a := newApp(t)
	code, out := a.do(t, http.MethodGet, "/v1/events/99/seats", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "event not found", out.Error)
}
