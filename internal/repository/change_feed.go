package repository

import (
    "context"
    "sync"

    "github.com/iliyamo/event-seat-hold/internal/model"
)

// ChangeFeed carries seat change notifications from writers to the sessions
// watching an event.  Callbacks are always invoked on a goroutine owned by the
// feed, never on the publisher's goroutine, so a subscriber may call back into
// the store without deadlocking the writer.
type ChangeFeed interface {
    Publish(ctx context.Context, change model.SeatChange) error
    Subscribe(ctx context.Context, eventID uint64, fn func(model.SeatChange)) (unsubscribe func(), err error)
}

// LocalChangeFeed fans notifications out to subscribers in the same process.
// Each subscriber owns a one-slot mailbox: a notification arriving while one
// is still pending is dropped, since any notification makes the receiver
// re-read the whole event anyway.
type LocalChangeFeed struct {
    mu     sync.Mutex
    nextID int
    subs   map[uint64]map[int]chan model.SeatChange
}

// NewLocalChangeFeed returns an empty in-process feed.
func NewLocalChangeFeed() *LocalChangeFeed {
    return &LocalChangeFeed{subs: make(map[uint64]map[int]chan model.SeatChange)}
}

// Publish delivers change to every subscriber of its event.  It never blocks.
func (f *LocalChangeFeed) Publish(_ context.Context, change model.SeatChange) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, ch := range f.subs[change.EventID] {
        select {
        case ch <- change:
        default:
        }
    }
    return nil
}

// Subscribe registers fn for the event.  Delivery stops when ctx is done or
// the returned unsubscribe function is called, whichever happens first.
func (f *LocalChangeFeed) Subscribe(ctx context.Context, eventID uint64, fn func(model.SeatChange)) (func(), error) {
    ch := make(chan model.SeatChange, 1)
    done := make(chan struct{})

    f.mu.Lock()
    id := f.nextID
    f.nextID++
    if f.subs[eventID] == nil {
        f.subs[eventID] = make(map[int]chan model.SeatChange)
    }
    f.subs[eventID][id] = ch
    f.mu.Unlock()

    go func() {
        for {
            select {
            case <-ctx.Done():
                return
            case <-done:
                return
            case change := <-ch:
                fn(change)
            }
        }
    }()

    var once sync.Once
    return func() {
        once.Do(func() {
            f.mu.Lock()
            delete(f.subs[eventID], id)
            if len(f.subs[eventID]) == 0 {
                delete(f.subs, eventID)
            }
            f.mu.Unlock()
            close(done)
        })
    }, nil
}

// Subscribers returns the number of live subscriptions for an event.
func (f *LocalChangeFeed) Subscribers(eventID uint64) int {
    f.mu.Lock()
    defer f.mu.Unlock()
    return len(f.subs[eventID])
}
