package seathold

import (
	"context"
	"time"

	"github.com/iliyamo/event-seat-hold/internal/model"
)

// SeatStore is the shared seat table.  UpdateSeats is a conditional bulk
// update returning the ids of the rows it changed.  SubscribeToChanges must
// deliver callbacks on a goroutine other than the writer's.
type SeatStore interface {
	ListSeats(ctx context.Context, eventID uint64) ([]model.Seat, error)
	UpdateSeats(ctx context.Context, filter model.SeatFilter, patch model.SeatPatch) ([]uint64, error)
	SubscribeToChanges(ctx context.Context, eventID uint64, fn func(model.SeatChange)) (unsubscribe func(), err error)
}

// ReservationExpirer is implemented by seat stores that can release, in one
// sweep, reservations written at or before cutoff.  An eventID of 0 covers
// all events.
type ReservationExpirer interface {
	ExpireReservations(ctx context.Context, eventID uint64, cutoff time.Time) ([]uint64, error)
}

// HoldStore persists the hold record of a session across restarts.
type HoldStore interface {
	Load(ctx context.Context, eventID uint64, userID string) (model.Hold, bool, error)
	Save(ctx context.Context, eventID uint64, userID string, h model.Hold) error
	Clear(ctx context.Context, eventID uint64, userID string) error
}

// PurchaseNotifier is told about every confirmed purchase.
type PurchaseNotifier interface {
	PurchaseConfirmed(ctx context.Context, p model.Purchase) error
}
