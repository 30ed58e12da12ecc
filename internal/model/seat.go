package model

import "time"

// Seat describes one physical seat for one event as stored in the shared
// `seats` table.  Every session of every user reads and writes the same
// rows; the columns below are the only coordination mechanism between them.
//
// Fields:
//  SeatID       – primary key, unique within the event.
//  EventID      – event to which this seat belongs.
//  Position     – row and number label such as "C14", display only.
//  PriceCents   – ticket price used for the purchase summary.
//  Availability – false once the seat has been sold.  Terminal.
//  Selected     – a user is currently choosing this seat.
//  SelectedBy   – the selecting user, nil when not selected.
//  Reserved     – the seat is under a time-boxed hold.
//  ReservedAt   – when the hold was written.
//  ReservedBy   – the holding user.  Kept after a sale as the buyer.
//  BoughtAt     – time of sale, nil until sold.
//
// A sold seat (BoughtAt set) always has Availability=false and Reserved=false.
type Seat struct {
    SeatID       uint64     `json:"seat_id"`
    EventID      uint64     `json:"event_id"`
    Position     string     `json:"position"`
    PriceCents   uint32     `json:"price_cents"`
    Availability bool       `json:"availability"`
    Selected     bool       `json:"selected"`
    SelectedBy   *string    `json:"selected_by,omitempty"`
    Reserved     bool       `json:"reserved"`
    ReservedAt   *time.Time `json:"reserved_at,omitempty"`
    ReservedBy   *string    `json:"reserved_by,omitempty"`
    BoughtAt     *time.Time `json:"bought_at,omitempty"`
}

// Sold reports whether the seat has been purchased.
func (s Seat) Sold() bool { return s.BoughtAt != nil || !s.Availability }

// Selectable reports whether a new selection may be placed on the seat
// regardless of who currently selected it.
func (s Seat) Selectable() bool {
    return s.Availability && !s.Reserved && s.BoughtAt == nil
}

// SelectedByUser reports whether userID holds the selection marker.
func (s Seat) SelectedByUser(userID string) bool {
    return s.Selected && s.SelectedBy != nil && *s.SelectedBy == userID
}

// ReservedByUser reports whether userID holds the reservation.
func (s Seat) ReservedByUser(userID string) bool {
    return s.Reserved && s.ReservedBy != nil && *s.ReservedBy == userID
}

// BoughtByUser reports whether userID bought the seat.  The sale keeps the
// reservation owner, so the buyer is the last reserving user.
func (s Seat) BoughtByUser(userID string) bool {
    return s.Sold() && s.BoughtAt != nil && s.ReservedBy != nil && *s.ReservedBy == userID
}

// SeatClass is the display class of a seat from one user's point of view.
// It is computed once per refresh so renderers never re-derive it.
type SeatClass string

const (
    ClassAvailable     SeatClass = "available"
    ClassSelectedMine  SeatClass = "selected_mine"
    ClassSelectedOther SeatClass = "selected_other"
    ClassReservedMine  SeatClass = "reserved_mine"
    ClassReservedOther SeatClass = "reserved_other"
    ClassSoldMine      SeatClass = "sold_mine"
    ClassUnavailable   SeatClass = "unavailable"
)

// Classify derives the display class of s for userID.  An empty userID is a
// guest for whom every selection or reservation belongs to somebody else.
func Classify(s Seat, userID string) SeatClass {
    switch {
    case s.Sold():
        if userID != "" && s.BoughtByUser(userID) {
            return ClassSoldMine
        }
        return ClassUnavailable
    case s.Selected:
        if userID != "" && s.SelectedByUser(userID) {
            return ClassSelectedMine
        }
        return ClassSelectedOther
    case s.Reserved:
        if userID != "" && s.ReservedByUser(userID) {
            return ClassReservedMine
        }
        return ClassReservedOther
    default:
        return ClassAvailable
    }
}

// SeatView is a seat together with its derived class for one viewer.
type SeatView struct {
    Seat
    Class SeatClass `json:"class"`
    Mine  bool      `json:"mine"`
}

// ViewSeats classifies a list of seats for userID, preserving order.  The
// identities of other users are stripped from the copies.
func ViewSeats(seats []Seat, userID string) []SeatView {
    out := make([]SeatView, 0, len(seats))
    for _, s := range seats {
        class := Classify(s, userID)
        if userID == "" || !s.SelectedByUser(userID) {
            s.SelectedBy = nil
        }
        if userID == "" || !(s.ReservedByUser(userID) || s.BoughtByUser(userID)) {
            s.ReservedBy = nil
        }
        out = append(out, SeatView{
            Seat:  s,
            Class: class,
            Mine:  class == ClassSelectedMine || class == ClassReservedMine || class == ClassSoldMine,
        })
    }
    return out
}
