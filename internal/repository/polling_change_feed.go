package repository

import (
    "context"
    "strconv"
    "sync"
    "time"

    "github.com/cespare/xxhash/v2"
    "github.com/jonboulle/clockwork"

    "github.com/iliyamo/event-seat-hold/internal/model"
)

// SeatLister is the read side of a seat store.
type SeatLister interface {
    ListSeats(ctx context.Context, eventID uint64) ([]model.Seat, error)
}

// PollingChangeFeed is the fallback feed used when no Redis server is
// reachable.  Writes made by this process are announced immediately through
// an in-process feed; writes made by other processes are detected by
// re-reading the event every interval and comparing a hash of its rows.
type PollingChangeFeed struct {
    lister   SeatLister
    interval time.Duration
    clock    clockwork.Clock
    local    *LocalChangeFeed
}

// NewPollingChangeFeed returns a feed polling lister every interval.
func NewPollingChangeFeed(lister SeatLister, interval time.Duration, clock clockwork.Clock) *PollingChangeFeed {
    if interval <= 0 {
        interval = 2 * time.Second
    }
    if clock == nil {
        clock = clockwork.NewRealClock()
    }
    return &PollingChangeFeed{lister: lister, interval: interval, clock: clock, local: NewLocalChangeFeed()}
}

// Publish announces a local write to local subscribers.
func (f *PollingChangeFeed) Publish(ctx context.Context, change model.SeatChange) error {
    return f.local.Publish(ctx, change)
}

// Subscribe registers fn for local announcements and starts a poller for the
// event.  The first poll only records the baseline.
func (f *PollingChangeFeed) Subscribe(ctx context.Context, eventID uint64, fn func(model.SeatChange)) (func(), error) {
    ctx, cancel := context.WithCancel(ctx)
    unsubLocal, err := f.local.Subscribe(ctx, eventID, fn)
    if err != nil {
        cancel()
        return nil, err
    }

    var last uint64
    if seats, err := f.lister.ListSeats(ctx, eventID); err == nil {
        last = Fingerprint(seats)
    }
    ticker := f.clock.NewTicker(f.interval)

    go func() {
        defer ticker.Stop()
        for {
            select {
            case <-ctx.Done():
                return
            case <-ticker.Chan():
                seats, err := f.lister.ListSeats(ctx, eventID)
                if err != nil {
                    continue
                }
                if sum := Fingerprint(seats); sum != last {
                    last = sum
                    fn(model.SeatChange{EventID: eventID, Source: "poll", At: f.clock.Now().UTC()})
                }
            }
        }
    }()

    var once sync.Once
    return func() {
        once.Do(func() {
            unsubLocal()
            cancel()
        })
    }, nil
}

// Fingerprint hashes the mutable columns of seats in order.
func Fingerprint(seats []model.Seat) uint64 {
    d := xxhash.New()
    buf := make([]byte, 0, 128)
    for _, s := range seats {
        buf = buf[:0]
        buf = strconv.AppendUint(buf, s.SeatID, 10)
        buf = append(buf, '|')
        buf = strconv.AppendBool(buf, s.Availability)
        buf = strconv.AppendBool(buf, s.Selected)
        buf = append(buf, strPtr(s.SelectedBy)...)
        buf = append(buf, '|')
        buf = strconv.AppendBool(buf, s.Reserved)
        buf = append(buf, strPtr(s.ReservedBy)...)
        buf = append(buf, '|')
        buf = strconv.AppendInt(buf, timePtr(s.ReservedAt), 10)
        buf = append(buf, '|')
        buf = strconv.AppendInt(buf, timePtr(s.BoughtAt), 10)
        buf = append(buf, ';')
        _, _ = d.Write(buf)
    }
    return d.Sum64()
}

func strPtr(s *string) string {
    if s == nil {
        return "-"
    }
    return *s
}

func timePtr(t *time.Time) int64 {
    if t == nil {
        return -1
    }
    return t.UnixNano()
}
