package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	me, other := "u-1", "u-2"
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	tests := []struct {
		name   string
		seat   Seat
		viewer string
		want   SeatClass
	}{
		{"available", Seat{Availability: true}, me, ClassAvailable},
		{"selected by me", Seat{Availability: true, Selected: true, SelectedBy: &me}, me, ClassSelectedMine},
		{"selected by other", Seat{Availability: true, Selected: true, SelectedBy: &other}, me, ClassSelectedOther},
		{"reserved by me", Seat{Availability: true, Reserved: true, ReservedBy: &me}, me, ClassReservedMine},
		{"reserved by other", Seat{Availability: true, Reserved: true, ReservedBy: &other}, me, ClassReservedOther},
		{"sold to me", Seat{Availability: false, BoughtAt: &now, ReservedBy: &me}, me, ClassSoldMine},
		{"sold to other", Seat{Availability: false, BoughtAt: &now, ReservedBy: &other}, me, ClassUnavailable},
		{"guest sees own purchase as unavailable", Seat{Availability: false, BoughtAt: &now, ReservedBy: &me}, "", ClassUnavailable},
		{"withdrawn seat", Seat{Availability: false, ReservedBy: &me}, me, ClassUnavailable},
		{"guest sees selections as others", Seat{Availability: true, Selected: true, SelectedBy: &me}, "", ClassSelectedOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.seat, tt.viewer))
		})
	}
}

func TestViewSeatsMarksMine(t *testing.T) {
	me, other := "u-1", "u-2"
	views := ViewSeats([]Seat{
		{SeatID: 1, Availability: true},
		{SeatID: 2, Availability: true, Reserved: true, ReservedBy: &me},
		{SeatID: 3, Availability: true, Selected: true, SelectedBy: &other},
	}, me)
	require.Len(t, views, 3)
	assert.False(t, views[0].Mine)
	assert.True(t, views[1].Mine)
	assert.Equal(t, ClassReservedMine, views[1].Class)
	require.NotNil(t, views[1].ReservedBy)

	assert.Equal(t, ClassSelectedOther, views[2].Class)
	assert.Nil(t, views[2].SelectedBy)

	guest := ViewSeats([]Seat{{SeatID: 2, Availability: true, Reserved: true, ReservedBy: &me}}, "")
	assert.Equal(t, ClassReservedOther, guest[0].Class)
	assert.Nil(t, guest[0].ReservedBy)
}

func TestViewSeatsKeepsOwnPurchases(t *testing.T) {
	me, other := "u-1", "u-2"
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	sold := []Seat{
		{SeatID: 5, BoughtAt: &at, ReservedBy: &me},
		{SeatID: 6, BoughtAt: &at, ReservedBy: &other},
	}

	views := ViewSeats(sold, me)
	require.Len(t, views, 2)
	assert.Equal(t, ClassSoldMine, views[0].Class)
	assert.True(t, views[0].Mine)
	require.NotNil(t, views[0].ReservedBy)
	assert.Equal(t, me, *views[0].ReservedBy)
	assert.Equal(t, ClassUnavailable, views[1].Class)
	assert.False(t, views[1].Mine)
	assert.Nil(t, views[1].ReservedBy)

	guest := ViewSeats(sold, "")
	assert.Equal(t, ClassUnavailable, guest[0].Class)
	assert.Nil(t, guest[0].ReservedBy)
}

func TestSeatFilterMatches(t *testing.T) {
	me := "u-1"
	seat := Seat{SeatID: 4, EventID: 9, Availability: true, Selected: true, SelectedBy: &me}

	assert.True(t, SeatFilter{EventID: 9}.Matches(seat))
	assert.False(t, SeatFilter{EventID: 8}.Matches(seat))
	assert.True(t, SeatFilter{EventID: 9, SeatIDs: []uint64{3, 4}}.Matches(seat))
	assert.False(t, SeatFilter{EventID: 9, SeatIDs: []uint64{3}}.Matches(seat))
	assert.True(t, SeatFilter{EventID: 9, Selected: Bool(true), SelectedBy: Str(me)}.Matches(seat))
	assert.False(t, SeatFilter{EventID: 9, SelectedBy: Str("u-2")}.Matches(seat))
	assert.False(t, SeatFilter{EventID: 9, ReservedBy: Str(me)}.Matches(seat))
	assert.False(t, SeatFilter{EventID: 9, Reserved: Bool(true)}.Matches(seat))
}

func TestSeatPatchApply(t *testing.T) {
	me := "u-1"
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	seat := Seat{Availability: true, Selected: true, SelectedBy: &me}

	SeatPatch{
		Reserved:   Bool(true),
		ReservedAt: SetTime(now),
		ReservedBy: SetString(me),
		Selected:   Bool(false),
		SelectedBy: ClearString(),
	}.Apply(&seat)

	assert.True(t, seat.Reserved)
	assert.False(t, seat.Selected)
	assert.Nil(t, seat.SelectedBy)
	require.NotNil(t, seat.ReservedBy)
	assert.Equal(t, me, *seat.ReservedBy)
	require.NotNil(t, seat.ReservedAt)
	assert.True(t, now.Equal(*seat.ReservedAt))

	SeatPatch{Reserved: Bool(false), ReservedAt: ClearTime(), ReservedBy: ClearString()}.Apply(&seat)
	assert.Nil(t, seat.ReservedAt)
	assert.Nil(t, seat.ReservedBy)
	assert.True(t, seat.Availability)

	assert.True(t, SeatPatch{}.Empty())
	assert.False(t, SeatPatch{Selected: Bool(false)}.Empty())
}

func TestHoldExpiry(t *testing.T) {
	exp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	h := NewHold([]uint64{1, 2}, exp)

	assert.Equal(t, exp.UnixMilli(), h.ExpirationTime)
	assert.True(t, exp.Equal(h.ExpiresAt()))
	assert.False(t, h.Expired(exp.Add(-time.Millisecond)))
	assert.True(t, h.Expired(exp))
	assert.False(t, h.Empty())
}
