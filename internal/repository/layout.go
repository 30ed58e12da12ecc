package repository

import (
    "strconv"

    "github.com/iliyamo/event-seat-hold/internal/model"
)

// DefaultHallLayout lists the number of seats in each row of the default
// hall, front row first.
var DefaultHallLayout = []int{24, 28, 28, 30, 30, 31, 30, 28, 25, 20, 19, 16, 25, 20, 19, 16}

// LayoutSeats builds the seat rows of an event from per-row seat counts.
// Positions are the row label followed by the seat number ("A1", "A2", ...).
// Seat ids are left zero for the store to assign.
func LayoutSeats(eventID uint64, rows []int, priceCents uint32) []model.Seat {
    total := 0
    for _, n := range rows {
        total += n
    }
    seats := make([]model.Seat, 0, total)
    for i, n := range rows {
        label := rowLabel(i)
        for num := 1; num <= n; num++ {
            seats = append(seats, model.Seat{
                EventID:      eventID,
                Position:     label + strconv.Itoa(num),
                PriceCents:   priceCents,
                Availability: true,
            })
        }
    }
    return seats
}

// rowLabel converts a zero-based index to an alphabetical row label like A, B, AA.
func rowLabel(i int) string {
    if i < 0 {
        return ""
    }
    res := []rune{}
    for {
        rem := i % 26
        res = append(res, rune('A'+rem))
        i = i/26 - 1
        if i < 0 {
            break
        }
    }
    for l, r := 0, len(res)-1; l < r; l, r = l+1, r-1 {
        res[l], res[r] = res[r], res[l]
    }
    return string(res)
}
