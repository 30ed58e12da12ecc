package repository

import (
    "context"
    "encoding/json"
    "fmt"
    "sync"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/event-seat-hold/internal/model"
)

// RedisChangeFeed broadcasts seat changes over Redis pub/sub so that every
// gateway instance sharing the seat table hears about writes made by the
// others.  One channel is used per event: "<prefix>:event:<id>".
type RedisChangeFeed struct {
    rdb    *redis.Client
    prefix string
}

// NewRedisChangeFeed returns a feed publishing on channels under prefix.  An
// empty prefix defaults to "seats".
func NewRedisChangeFeed(rdb *redis.Client, prefix string) *RedisChangeFeed {
    if prefix == "" {
        prefix = "seats"
    }
    return &RedisChangeFeed{rdb: rdb, prefix: prefix}
}

func (f *RedisChangeFeed) channel(eventID uint64) string {
    return fmt.Sprintf("%s:event:%d", f.prefix, eventID)
}

// Publish sends change to all subscribers of its event, on every instance.
func (f *RedisChangeFeed) Publish(ctx context.Context, change model.SeatChange) error {
    payload, err := json.Marshal(change)
    if err != nil {
        return fmt.Errorf("marshal seat change: %w", err)
    }
    return f.rdb.Publish(ctx, f.channel(change.EventID), payload).Err()
}

// Subscribe waits for the subscription to be confirmed by the server before
// returning, so no notification published after Subscribe returns is lost.
// Malformed payloads are still delivered as a bare change for the event.
func (f *RedisChangeFeed) Subscribe(ctx context.Context, eventID uint64, fn func(model.SeatChange)) (func(), error) {
    ps := f.rdb.Subscribe(ctx, f.channel(eventID))
    if _, err := ps.Receive(ctx); err != nil {
        _ = ps.Close()
        return nil, fmt.Errorf("subscribe seat changes: %w", err)
    }
    msgs := ps.Channel()

    go func() {
        for {
            select {
            case <-ctx.Done():
                _ = ps.Close()
                return
            case msg, ok := <-msgs:
                if !ok {
                    return
                }
                var change model.SeatChange
                if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
                    change = model.SeatChange{EventID: eventID, Source: "redis"}
                }
                fn(change)
            }
        }
    }()

    var once sync.Once
    return func() { once.Do(func() { _ = ps.Close() }) }, nil
}
