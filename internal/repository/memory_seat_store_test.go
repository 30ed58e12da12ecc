package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-hold/internal/model"
)

func TestLayoutSeats(t *testing.T) {
	seats := LayoutSeats(3, []int{2, 1}, 1200)
	require.Len(t, seats, 3)
	assert.Equal(t, "A1", seats[0].Position)
	assert.Equal(t, "A2", seats[1].Position)
	assert.Equal(t, "B1", seats[2].Position)
	for _, s := range seats {
		assert.Equal(t, uint64(3), s.EventID)
		assert.Equal(t, uint32(1200), s.PriceCents)
		assert.True(t, s.Availability)
		assert.Zero(t, s.SeatID)
	}

	total := 0
	for _, n := range DefaultHallLayout {
		total += n
	}
	assert.Len(t, LayoutSeats(1, DefaultHallLayout, 0), total)
}

func TestRowLabel(t *testing.T) {
	assert.Equal(t, "A", rowLabel(0))
	assert.Equal(t, "Z", rowLabel(25))
	assert.Equal(t, "AA", rowLabel(26))
	assert.Equal(t, "AB", rowLabel(27))
	assert.Equal(t, "", rowLabel(-1))
}

func TestMemorySeatStore_ConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySeatStore()
	seeded := store.Seed(LayoutSeats(7, []int{3}, 1000))
	require.Len(t, seeded, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{seeded[0].SeatID, seeded[1].SeatID, seeded[2].SeatID})

	selectFree := model.SeatFilter{EventID: 7, SeatIDs: []uint64{1, 2}, Availability: model.Bool(true), Selected: model.Bool(false), Reserved: model.Bool(false)}
	mark := model.SeatPatch{Selected: model.Bool(true), SelectedBy: model.SetString("u-1")}

	ids, err := store.UpdateSeats(ctx, selectFree, mark)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 2}, ids)

	// The same predicate no longer matches once the seats are taken.
	ids, err = store.UpdateSeats(ctx, selectFree, model.SeatPatch{Selected: model.Bool(true), SelectedBy: model.SetString("u-2")})
	require.NoError(t, err)
	assert.Empty(t, ids)

	seat, ok := store.Get(1)
	require.True(t, ok)
	require.NotNil(t, seat.SelectedBy)
	assert.Equal(t, "u-1", *seat.SelectedBy)
	assert.Equal(t, 2, store.Writes())

	_, err = store.UpdateSeats(ctx, model.SeatFilter{}, mark)
	require.ErrorIs(t, err, ErrUnscopedUpdate)
	_, err = store.UpdateSeats(ctx, model.SeatFilter{EventID: 7}, model.SeatPatch{})
	require.ErrorIs(t, err, ErrEmptyPatch)
}

func TestMemorySeatStore_ReturnsCopies(t *testing.T) {
	store := NewMemorySeatStore()
	me := "u-1"
	store.Seed([]model.Seat{{SeatID: 4, EventID: 7, Availability: true, Selected: true, SelectedBy: &me}})

	seats, err := store.ListSeats(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, seats, 1)
	*seats[0].SelectedBy = "mutated"

	seat, _ := store.Get(4)
	assert.Equal(t, "u-1", *seat.SelectedBy)

	other, err := store.ListSeats(context.Background(), 8)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestMemorySeatStore_SeedEvent(t *testing.T) {
	store := NewMemorySeatStore()
	n, err := store.SeedEvent(context.Background(), 2, []int{4, 4}, 500)
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	_, err = store.SeedEvent(context.Background(), 2, []int{1}, 500)
	require.ErrorIs(t, err, ErrEventExists)
}

func TestMemorySeatStore_NotifiesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewMemorySeatStore()
	store.Seed(LayoutSeats(7, []int{2}, 1000))

	got := make(chan model.SeatChange, 4)
	unsub, err := store.SubscribeToChanges(ctx, 7, func(c model.SeatChange) { got <- c })
	require.NoError(t, err)
	defer unsub()

	_, err = store.UpdateSeats(ctx, model.SeatFilter{EventID: 7, SeatIDs: []uint64{2}}, model.SeatPatch{Selected: model.Bool(true)})
	require.NoError(t, err)

	select {
	case c := <-got:
		assert.Equal(t, uint64(7), c.EventID)
		assert.Equal(t, []uint64{2}, c.SeatIDs)
		assert.Equal(t, "memory", c.Source)
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
}

func TestLocalChangeFeed_Unsubscribe(t *testing.T) {
	feed := NewLocalChangeFeed()
	unsub, err := feed.Subscribe(context.Background(), 9, func(model.SeatChange) {})
	require.NoError(t, err)
	assert.Equal(t, 1, feed.Subscribers(9))

	unsub()
	unsub()
	assert.Equal(t, 0, feed.Subscribers(9))
	require.NoError(t, feed.Publish(context.Background(), model.SeatChange{EventID: 9}))
}

func TestMemorySeatStore_ExpireReservations(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySeatStore()
	store.Seed(LayoutSeats(7, []int{3}, 1000))
	store.Seed(LayoutSeats(8, []int{1}, 1000))

	cutoff := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)
	reserve := func(id uint64, at time.Time) {
		seat, ok := store.Get(id)
		require.True(t, ok)
		owner := "u-1"
		seat.Reserved, seat.ReservedAt, seat.ReservedBy = true, &at, &owner
		store.Put(seat)
	}
	reserve(1, cutoff.Add(-time.Second))
	reserve(2, cutoff.Add(time.Second))
	reserve(4, cutoff)

	got := make(chan model.SeatChange, 4)
	unsub, err := store.SubscribeToChanges(ctx, 7, func(c model.SeatChange) { got <- c })
	require.NoError(t, err)
	defer unsub()

	ids, err := store.ExpireReservations(ctx, 7, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, ids)

	ids, err = store.ExpireReservations(ctx, 0, cutoff)
	require.NoError(t, err)
	assert.Equal(t, []uint64{4}, ids)

	released, _ := store.Get(1)
	assert.False(t, released.Reserved)
	assert.Nil(t, released.ReservedAt)
	assert.Nil(t, released.ReservedBy)
	kept, _ := store.Get(2)
	assert.True(t, kept.Reserved)
	assert.Zero(t, store.Writes())

	select {
	case c := <-got:
		assert.Equal(t, []uint64{1}, c.SeatIDs)
	case <-time.After(time.Second):
		t.Fatal("no change notification")
	}
}
