package repository

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "slices"
    "sync"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/event-seat-hold/internal/model"
)

// RedisHoldStore persists each session's hold record as JSON under
// "<prefix>:<event>:<user>".  Records outlive their expiration time by the
// retention window so a session resumed after the hold lapsed still finds the
// seats it must release.
type RedisHoldStore struct {
    rdb       *redis.Client
    prefix    string
    retention time.Duration
}

// NewRedisHoldStore returns a store using prefix (default "hold") and keeping
// lapsed records for retention (default 24h).
func NewRedisHoldStore(rdb *redis.Client, prefix string, retention time.Duration) *RedisHoldStore {
    if prefix == "" {
        prefix = "hold"
    }
    if retention <= 0 {
        retention = 24 * time.Hour
    }
    return &RedisHoldStore{rdb: rdb, prefix: prefix, retention: retention}
}

func (s *RedisHoldStore) key(eventID uint64, userID string) string {
    return fmt.Sprintf("%s:%d:%s", s.prefix, eventID, userID)
}

// Load returns the stored hold and whether one exists.
func (s *RedisHoldStore) Load(ctx context.Context, eventID uint64, userID string) (model.Hold, bool, error) {
    raw, err := s.rdb.Get(ctx, s.key(eventID, userID)).Bytes()
    if errors.Is(err, redis.Nil) {
        return model.Hold{}, false, nil
    }
    if err != nil {
        return model.Hold{}, false, err
    }
    var h model.Hold
    if err := json.Unmarshal(raw, &h); err != nil {
        return model.Hold{}, false, fmt.Errorf("decode hold: %w", err)
    }
    return h, true, nil
}

// Save replaces the stored hold.
func (s *RedisHoldStore) Save(ctx context.Context, eventID uint64, userID string, h model.Hold) error {
    payload, err := json.Marshal(h)
    if err != nil {
        return fmt.Errorf("encode hold: %w", err)
    }
    ttl := time.Until(h.ExpiresAt()) + s.retention
    if ttl < s.retention {
        ttl = s.retention
    }
    return s.rdb.Set(ctx, s.key(eventID, userID), payload, ttl).Err()
}

// Clear removes the stored hold.  Clearing a missing record is not an error.
func (s *RedisHoldStore) Clear(ctx context.Context, eventID uint64, userID string) error {
    return s.rdb.Del(ctx, s.key(eventID, userID)).Err()
}

type holdKey struct {
    eventID uint64
    userID  string
}

// MemoryHoldStore keeps hold records in process memory.  Records are lost on
// restart, so it is only suitable for development and tests.
type MemoryHoldStore struct {
    mu    sync.Mutex
    holds map[holdKey]model.Hold
}

// NewMemoryHoldStore returns an empty store.
func NewMemoryHoldStore() *MemoryHoldStore {
    return &MemoryHoldStore{holds: make(map[holdKey]model.Hold)}
}

func (s *MemoryHoldStore) Load(_ context.Context, eventID uint64, userID string) (model.Hold, bool, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    h, ok := s.holds[holdKey{eventID, userID}]
    if !ok {
        return model.Hold{}, false, nil
    }
    return model.Hold{SeatIDs: slices.Clone(h.SeatIDs), ExpirationTime: h.ExpirationTime}, true, nil
}

func (s *MemoryHoldStore) Save(_ context.Context, eventID uint64, userID string, h model.Hold) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    s.holds[holdKey{eventID, userID}] = model.Hold{SeatIDs: slices.Clone(h.SeatIDs), ExpirationTime: h.ExpirationTime}
    return nil
}

func (s *MemoryHoldStore) Clear(_ context.Context, eventID uint64, userID string) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    delete(s.holds, holdKey{eventID, userID})
    return nil
}
