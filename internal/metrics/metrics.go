// Package metrics exposes the Prometheus collectors of the seat-hold
// gateway.  Every method is safe to call on a nil *Metrics so that sessions
// built without instrumentation (tests, tools) need no special casing.
package metrics

import (
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
    holdsPlaced       prometheus.Counter
    holdsReleased     *prometheus.CounterVec
    holdConflicts     prometheus.Counter
    purchases         prometheus.Counter
    seatsSold         prometheus.Counter
    selectionRejected *prometheus.CounterVec
    storeErrors       prometheus.Counter
    activeSessions    prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
    f := promauto.With(reg)
    return &Metrics{
        holdsPlaced: f.NewCounter(prometheus.CounterOpts{
            Name: "seathold_holds_placed_total",
            Help: "Total number of holds placed or extended.",
        }),
        holdsReleased: f.NewCounterVec(prometheus.CounterOpts{
            Name: "seathold_holds_released_total",
            Help: "Total number of holds released without a purchase.",
        }, []string{"reason"}),
        holdConflicts: f.NewCounter(prometheus.CounterOpts{
            Name: "seathold_hold_conflicts_total",
            Help: "Total number of hold requests aborted by a concurrent change.",
        }),
        purchases: f.NewCounter(prometheus.CounterOpts{
            Name: "seathold_purchases_total",
            Help: "Total number of confirmed purchases.",
        }),
        seatsSold: f.NewCounter(prometheus.CounterOpts{
            Name: "seathold_seats_sold_total",
            Help: "Total number of seats sold.",
        }),
        selectionRejected: f.NewCounterVec(prometheus.CounterOpts{
            Name: "seathold_selection_rejected_total",
            Help: "Total number of rejected seat selection toggles.",
        }, []string{"reason"}),
        storeErrors: f.NewCounter(prometheus.CounterOpts{
            Name: "seathold_store_errors_total",
            Help: "Total number of seat or hold store failures seen by sessions.",
        }),
        activeSessions: f.NewGauge(prometheus.GaugeOpts{
            Name: "seathold_active_sessions",
            Help: "Number of open seat sessions.",
        }),
    }
}

func (m *Metrics) HoldPlaced() {
    if m != nil {
        m.holdsPlaced.Inc()
    }
}

// HoldReleased counts a release; reason is "cancel" or "expired".
func (m *Metrics) HoldReleased(reason string) {
    if m != nil {
        m.holdsReleased.WithLabelValues(reason).Inc()
    }
}

func (m *Metrics) HoldConflict() {
    if m != nil {
        m.holdConflicts.Inc()
    }
}

func (m *Metrics) Purchase(seats int) {
    if m != nil {
        m.purchases.Inc()
        m.seatsSold.Add(float64(seats))
    }
}

func (m *Metrics) SelectionRejected(reason string) {
    if m != nil {
        m.selectionRejected.WithLabelValues(reason).Inc()
    }
}

func (m *Metrics) StoreError() {
    if m != nil {
        m.storeErrors.Inc()
    }
}

func (m *Metrics) SessionOpened() {
    if m != nil {
        m.activeSessions.Inc()
    }
}

func (m *Metrics) SessionClosed() {
    if m != nil {
        m.activeSessions.Dec()
    }
}
