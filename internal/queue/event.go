// Package queue defines the purchase event exchanged over the message broker
// and the background consumer that records it.
package queue

import (
    "time"

    "github.com/iliyamo/event-seat-hold/internal/model"
)

// PurchaseQueueName is the durable queue purchase events are routed to.
const PurchaseQueueName = "purchase.confirmed"

// PurchaseConfirmedEvent is published when a hold is converted into a sale.
// It carries enough information for downstream consumers to log, notify or
// trigger fulfilment without querying the seat table.
type PurchaseConfirmedEvent struct {
    PurchaseID  string   `json:"purchase_id"`
    EventID     uint64   `json:"event_id"`
    UserID      string   `json:"user_id"`
    UserName    string   `json:"user_name,omitempty"`
    SeatIDs     []uint64 `json:"seat_ids"`
    Positions   []string `json:"seats"`
    TotalCents  uint64   `json:"total_cents"`
    ConfirmedAt string   `json:"confirmed_at"`
}

// NewPurchaseConfirmedEvent flattens a purchase into its wire form.
func NewPurchaseConfirmedEvent(p model.Purchase) PurchaseConfirmedEvent {
    ev := PurchaseConfirmedEvent{
        PurchaseID:  p.ID,
        EventID:     p.EventID,
        UserID:      p.Buyer.ID,
        UserName:    p.Buyer.Name,
        SeatIDs:     make([]uint64, 0, len(p.Seats)),
        Positions:   make([]string, 0, len(p.Seats)),
        TotalCents:  p.TotalCents,
        ConfirmedAt: p.BoughtAt.UTC().Format(time.RFC3339),
    }
    for _, s := range p.Seats {
        ev.SeatIDs = append(ev.SeatIDs, s.SeatID)
        ev.Positions = append(ev.Positions, s.Position)
    }
    return ev
}
