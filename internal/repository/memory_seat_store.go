package repository

import (
    "context"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/event-seat-hold/internal/model"
)

// MemorySeatStore keeps the seat table in memory.  It backs the "memory"
// store driver used for local development and is the shared table in tests.
// Conditional updates are applied atomically under one lock, which matches the
// per-row guarantee of the SQL store.
type MemorySeatStore struct {
    mu     sync.Mutex
    rows   map[uint64]model.Seat
    nextID uint64
    writes int
    feed   ChangeFeed
}

// NewMemorySeatStore returns an empty store announcing changes on an
// in-process feed.
func NewMemorySeatStore() *MemorySeatStore {
    return &MemorySeatStore{rows: make(map[uint64]model.Seat), nextID: 1, feed: NewLocalChangeFeed()}
}

// Seed inserts seats, assigning ids to those without one, and returns the
// stored rows.  No change notification is sent.
func (s *MemorySeatStore) Seed(seats []model.Seat) []model.Seat {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Seat, 0, len(seats))
    for _, seat := range seats {
        if seat.SeatID == 0 {
            seat.SeatID = s.nextID
        }
        if seat.SeatID >= s.nextID {
            s.nextID = seat.SeatID + 1
        }
        s.rows[seat.SeatID] = cloneSeat(seat)
        out = append(out, cloneSeat(seat))
    }
    return out
}

// SeedEvent fills an event with the given row layout unless it already has
// seats.
func (s *MemorySeatStore) SeedEvent(_ context.Context, eventID uint64, rows []int, priceCents uint32) (int, error) {
    s.mu.Lock()
    for _, row := range s.rows {
        if row.EventID == eventID {
            s.mu.Unlock()
            return 0, ErrEventExists
        }
    }
    s.mu.Unlock()
    return len(s.Seed(LayoutSeats(eventID, rows, priceCents))), nil
}

// Put overwrites one row without counting a write or notifying subscribers.
// Tests use it to simulate changes made behind the session's back.
func (s *MemorySeatStore) Put(seat model.Seat) {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.rows[seat.SeatID] = cloneSeat(seat)
}

// Get returns a copy of one row.
func (s *MemorySeatStore) Get(seatID uint64) (model.Seat, bool) {
    s.mu.Lock()
    defer s.mu.Unlock()
    seat, ok := s.rows[seatID]
    return cloneSeat(seat), ok
}

// Writes returns the number of UpdateSeats calls received so far.
func (s *MemorySeatStore) Writes() int {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.writes
}

// ListSeats returns every seat of the event ordered by seat id.
func (s *MemorySeatStore) ListSeats(_ context.Context, eventID uint64) ([]model.Seat, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    out := make([]model.Seat, 0)
    for _, row := range s.rows {
        if row.EventID == eventID {
            out = append(out, cloneSeat(row))
        }
    }
    sort.Slice(out, func(i, j int) bool { return out[i].SeatID < out[j].SeatID })
    return out, nil
}

// UpdateSeats applies patch to every row matching filter and returns the ids
// of the changed rows in ascending order.
func (s *MemorySeatStore) UpdateSeats(ctx context.Context, filter model.SeatFilter, patch model.SeatPatch) ([]uint64, error) {
    if err := checkUpdate(filter.EventID, patch.Empty()); err != nil {
        return nil, err
    }
    s.mu.Lock()
    s.writes++
    updated := make([]uint64, 0)
    for id, row := range s.rows {
        if !filter.Matches(row) {
            continue
        }
        patch.Apply(&row)
        s.rows[id] = row
        updated = append(updated, id)
    }
    s.mu.Unlock()

    sort.Slice(updated, func(i, j int) bool { return updated[i] < updated[j] })
    if len(updated) > 0 {
        _ = s.feed.Publish(ctx, model.SeatChange{EventID: filter.EventID, SeatIDs: updated, Source: "memory", At: time.Now().UTC()})
    }
    return updated, nil
}

// ExpireReservations releases every reservation written at or before cutoff
// and returns the released seat ids in ascending order.  An eventID of 0
// covers all events.
func (s *MemorySeatStore) ExpireReservations(ctx context.Context, eventID uint64, cutoff time.Time) ([]uint64, error) {
    patch := releasePatch()
    s.mu.Lock()
    ids := make([]uint64, 0)
    byEvent := make(map[uint64][]uint64)
    for id, row := range s.rows {
        if eventID != 0 && row.EventID != eventID {
            continue
        }
        if !row.Reserved || row.ReservedAt == nil || row.ReservedAt.After(cutoff) {
            continue
        }
        patch.Apply(&row)
        s.rows[id] = row
        ids = append(ids, id)
        byEvent[row.EventID] = append(byEvent[row.EventID], id)
    }
    s.mu.Unlock()

    sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
    announceByEvent(ctx, s.feed, byEvent, "memory")
    return ids, nil
}

// SubscribeToChanges registers fn for change notifications of the event.
func (s *MemorySeatStore) SubscribeToChanges(ctx context.Context, eventID uint64, fn func(model.SeatChange)) (func(), error) {
    return s.feed.Subscribe(ctx, eventID, fn)
}

// cloneSeat copies the pointer fields so callers never share them with the
// stored row.
func cloneSeat(s model.Seat) model.Seat {
    if s.SelectedBy != nil {
        v := *s.SelectedBy
        s.SelectedBy = &v
    }
    if s.ReservedBy != nil {
        v := *s.ReservedBy
        s.ReservedBy = &v
    }
    if s.ReservedAt != nil {
        v := *s.ReservedAt
        s.ReservedAt = &v
    }
    if s.BoughtAt != nil {
        v := *s.BoughtAt
        s.BoughtAt = &v
    }
    return s
}
