package seathold

import (
	"errors"
	"fmt"
)

var (
	// ErrSeatUnavailable means the seat cannot be selected: it is reserved,
	// sold, unknown or selected by another user.
	ErrSeatUnavailable = errors.New("seat unavailable")
	// ErrNotOwner means the session acted on a seat it does not own.
	ErrNotOwner = errors.New("seat not owned by this session")
	// ErrConflict means a hold request was invalidated by a concurrent change.
	ErrConflict = errors.New("hold conflict")
	// ErrStore wraps transport or backend failures of the seat or hold store.
	ErrStore = errors.New("store failure")
	// ErrHoldExpired means the hold lapsed before it was confirmed.
	ErrHoldExpired = errors.New("hold expired")
	// ErrNoActiveHold means there is no hold to confirm or cancel.
	ErrNoActiveHold = errors.New("no active hold")
	// ErrNoPurchase means the user has not bought any seat of the event.
	ErrNoPurchase = errors.New("no purchase")
	// ErrSessionClosed is returned by every intent after Close.
	ErrSessionClosed = errors.New("session closed")
)

// SeatError attaches the offending seats to one of the sentinel errors above.
type SeatError struct {
	Kind    error
	SeatIDs []uint64
}

func (e *SeatError) Error() string {
	return fmt.Sprintf("%s: seats %v", e.Kind, e.SeatIDs)
}

func (e *SeatError) Unwrap() error { return e.Kind }

// SeatsOf returns the seats named by err, if any.
func SeatsOf(err error) []uint64 {
	var se *SeatError
	if errors.As(err, &se) {
		return se.SeatIDs
	}
	return nil
}

func seatErr(kind error, ids ...uint64) error {
	return &SeatError{Kind: kind, SeatIDs: ids}
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStore, err)
}
