// Package repository defines error types that are reused across the seat
// and hold stores.  These sentinel values allow higher layers to tell a
// programming mistake (an update that would touch every event, or that
// writes nothing) apart from a transport failure.
package repository

import "errors"

// ErrUnscopedUpdate is returned when a conditional update carries no event
// id.  Seat updates are always scoped to a single event.
var ErrUnscopedUpdate = errors.New("seat update without event scope")

// ErrEmptyPatch is returned when a conditional update writes no column.
var ErrEmptyPatch = errors.New("seat update without columns")

// ErrEventExists is returned when seeding an event that already has seats.
var ErrEventExists = errors.New("event already has seats")

func checkUpdate(eventID uint64, empty bool) error {
    if eventID == 0 {
        return ErrUnscopedUpdate
    }
    if empty {
        return ErrEmptyPatch
    }
    return nil
}
