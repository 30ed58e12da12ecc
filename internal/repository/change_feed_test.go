package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-seat-hold/internal/model"
)

func TestRedisChangeFeed_DeliversAcrossClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, rdb := newTestRedis(t)
	feed := NewRedisChangeFeed(rdb, "")

	got := make(chan model.SeatChange, 2)
	unsub, err := feed.Subscribe(ctx, 7, func(c model.SeatChange) { got <- c })
	require.NoError(t, err)
	defer unsub()

	// A change for another event must not reach this subscriber.
	require.NoError(t, feed.Publish(ctx, model.SeatChange{EventID: 8, SeatIDs: []uint64{1}}))
	require.NoError(t, feed.Publish(ctx, model.SeatChange{EventID: 7, SeatIDs: []uint64{3, 4}, Source: "mysql"}))

	select {
	case c := <-got:
		assert.Equal(t, uint64(7), c.EventID)
		assert.Equal(t, []uint64{3, 4}, c.SeatIDs)
		assert.Equal(t, "mysql", c.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestRedisChangeFeed_MalformedPayload(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mr, rdb := newTestRedis(t)
	feed := NewRedisChangeFeed(rdb, "x")

	got := make(chan model.SeatChange, 1)
	unsub, err := feed.Subscribe(ctx, 5, func(c model.SeatChange) { got <- c })
	require.NoError(t, err)
	defer unsub()

	mr.Publish("x:event:5", "not json")
	select {
	case c := <-got:
		assert.Equal(t, uint64(5), c.EventID)
		assert.Equal(t, "redis", c.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestPollingChangeFeed_DetectsForeignWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewMemorySeatStore()
	seeded := store.Seed(LayoutSeats(7, []int{2}, 1000))
	clock := clockwork.NewFakeClock()
	feed := NewPollingChangeFeed(store, time.Second, clock)

	got := make(chan model.SeatChange, 4)
	unsub, err := feed.Subscribe(ctx, 7, func(c model.SeatChange) { got <- c })
	require.NoError(t, err)
	defer unsub()

	other := "u-9"
	changed := seeded[0]
	changed.Selected = true
	changed.SelectedBy = &other
	store.Put(changed)

	clock.Advance(time.Second)
	select {
	case c := <-got:
		assert.Equal(t, uint64(7), c.EventID)
		assert.Equal(t, "poll", c.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not notice the write")
	}
}

func TestPollingChangeFeed_PublishesLocally(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	feed := NewPollingChangeFeed(NewMemorySeatStore(), time.Minute, clockwork.NewFakeClock())

	got := make(chan model.SeatChange, 1)
	unsub, err := feed.Subscribe(ctx, 3, func(c model.SeatChange) { got <- c })
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, feed.Publish(ctx, model.SeatChange{EventID: 3, SeatIDs: []uint64{1}}))
	select {
	case c := <-got:
		assert.Equal(t, []uint64{1}, c.SeatIDs)
	case <-time.After(time.Second):
		t.Fatal("no local notification")
	}
}

func TestFingerprintTracksMutableColumns(t *testing.T) {
	me := "u-1"
	base := []model.Seat{{SeatID: 1, Availability: true}, {SeatID: 2, Availability: true}}
	sum := Fingerprint(base)
	assert.Equal(t, sum, Fingerprint([]model.Seat{{SeatID: 1, Availability: true}, {SeatID: 2, Availability: true}}))

	reserved := []model.Seat{{SeatID: 1, Availability: true}, {SeatID: 2, Availability: true, Reserved: true, ReservedBy: &me}}
	assert.NotEqual(t, sum, Fingerprint(reserved))
}
