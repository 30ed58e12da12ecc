package model

import "time"

// PurchasedSeat is one line of an order summary.
type PurchasedSeat struct {
    SeatID     uint64 `json:"seat_id"`
    Position   string `json:"position"`
    PriceCents uint32 `json:"price_cents"`
}

// Purchase is the outcome of a confirmed hold.  Only the seats whose
// conditional sale write succeeded are listed.  A purchase read back from the
// seat table covers every seat the buyer owns for the event and has no ID.
type Purchase struct {
    ID         string          `json:"id,omitempty"`
    EventID    uint64          `json:"event_id"`
    Buyer      User            `json:"buyer"`
    Seats      []PurchasedSeat `json:"seats"`
    TotalCents uint64          `json:"total_cents"`
    BoughtAt   time.Time       `json:"bought_at"`
}
