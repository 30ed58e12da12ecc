package model

import "time"

// Hold is the durable record of one session's reservation hold.  It is
// written before any seat is reserved in the shared table and removed on
// confirm, cancel or expiry, so a restarted session can resume or release
// what it believed it held.  The JSON shape is the persisted format.
type Hold struct {
    SeatIDs        []uint64 `json:"seatIds"`
    ExpirationTime int64    `json:"expirationTime"` // epoch milliseconds
}

// NewHold builds a hold record expiring at expiresAt.
func NewHold(seatIDs []uint64, expiresAt time.Time) Hold {
    return Hold{SeatIDs: seatIDs, ExpirationTime: expiresAt.UnixMilli()}
}

// ExpiresAt converts the stored epoch milliseconds back to a time.
func (h Hold) ExpiresAt() time.Time { return time.UnixMilli(h.ExpirationTime).UTC() }

// Expired reports whether the hold has lapsed at now.
func (h Hold) Expired(now time.Time) bool { return !now.Before(h.ExpiresAt()) }

// Empty reports whether the hold covers no seats.
func (h Hold) Empty() bool { return len(h.SeatIDs) == 0 }
