package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.HoldPlaced()
		m.HoldReleased("cancel")
		m.HoldConflict()
		m.Purchase(3)
		m.SelectionRejected("taken")
		m.StoreError()
		m.SessionOpened()
		m.SessionClosed()
	})
}

func TestCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.HoldPlaced()
	m.HoldPlaced()
	m.HoldReleased("expired")
	m.Purchase(3)
	m.SessionOpened()
	m.SessionOpened()
	m.SessionClosed()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.holdsPlaced))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.holdsReleased.WithLabelValues("expired")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.seatsSold))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.activeSessions))

	err := testutil.GatherAndCompare(reg, strings.NewReader(`
# HELP seathold_purchases_total Total number of confirmed purchases.
# TYPE seathold_purchases_total counter
seathold_purchases_total 1
`), "seathold_purchases_total")
	require.NoError(t, err)
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
