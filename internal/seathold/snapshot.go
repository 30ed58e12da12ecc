package seathold

import (
	"slices"
	"time"

	"github.com/iliyamo/event-seat-hold/internal/model"
)

// Snapshot is the read model handed to renderers.
type Snapshot struct {
	EventID            uint64           `json:"event_id"`
	User               model.User       `json:"user"`
	Seats              []model.SeatView `json:"seats"`
	SelectedSeatIDs    []uint64         `json:"selected_seat_ids"`
	HeldSeatIDs        []uint64         `json:"held_seat_ids"`
	ExpiresAt          *time.Time       `json:"expires_at,omitempty"`
	CountdownRemaining time.Duration    `json:"-"`
	CountdownSeconds   int64            `json:"countdown_remaining_seconds"`
}

// Snapshot returns a copy of the session state.  The remaining countdown is
// derived from the absolute expiry, rounded up to whole seconds for display.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		EventID:         m.cfg.EventID,
		User:            m.cfg.User,
		Seats:           slices.Clone(m.cache),
		SelectedSeatIDs: make([]uint64, 0, len(m.candidates)),
		HeldSeatIDs:     slices.Clone(m.held),
	}
	if s.Seats == nil {
		s.Seats = []model.SeatView{}
	}
	if s.HeldSeatIDs == nil {
		s.HeldSeatIDs = []uint64{}
	}
	for id := range m.candidates {
		s.SelectedSeatIDs = append(s.SelectedSeatIDs, id)
	}
	slices.Sort(s.SelectedSeatIDs)

	if !m.expiry.IsZero() {
		exp := m.expiry
		s.ExpiresAt = &exp
		if rem := exp.Sub(m.clock.Now()); rem > 0 {
			s.CountdownRemaining = rem
			s.CountdownSeconds = int64((rem + time.Second - 1) / time.Second)
		}
	}
	return s
}
