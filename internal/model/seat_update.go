package model

import (
    "database/sql"
    "slices"
    "time"
)

// SeatFilter selects the rows touched by a conditional bulk update.  EventID
// is mandatory.  An empty SeatIDs slice matches every seat of the event.  Each
// non-nil predicate narrows the match further; a nil predicate is ignored.
type SeatFilter struct {
    EventID      uint64
    SeatIDs      []uint64
    Availability *bool
    Selected     *bool
    SelectedBy   *string
    Reserved     *bool
    ReservedBy   *string
}

// Matches reports whether s satisfies every predicate of the filter.
func (f SeatFilter) Matches(s Seat) bool {
    if s.EventID != f.EventID {
        return false
    }
    if len(f.SeatIDs) > 0 && !slices.Contains(f.SeatIDs, s.SeatID) {
        return false
    }
    if f.Availability != nil && s.Availability != *f.Availability {
        return false
    }
    if f.Selected != nil && s.Selected != *f.Selected {
        return false
    }
    if f.SelectedBy != nil && (s.SelectedBy == nil || *s.SelectedBy != *f.SelectedBy) {
        return false
    }
    if f.Reserved != nil && s.Reserved != *f.Reserved {
        return false
    }
    if f.ReservedBy != nil && (s.ReservedBy == nil || *s.ReservedBy != *f.ReservedBy) {
        return false
    }
    return true
}

// SeatPatch lists the columns a conditional update writes.  A nil field is
// left untouched.  For nullable columns a non-nil value with Valid=false
// writes NULL.
type SeatPatch struct {
    Availability *bool
    Selected     *bool
    SelectedBy   *sql.NullString
    Reserved     *bool
    ReservedAt   *sql.NullTime
    ReservedBy   *sql.NullString
    BoughtAt     *sql.NullTime
}

// Empty reports whether the patch writes nothing.
func (p SeatPatch) Empty() bool {
    return p.Availability == nil && p.Selected == nil && p.SelectedBy == nil &&
        p.Reserved == nil && p.ReservedAt == nil && p.ReservedBy == nil && p.BoughtAt == nil
}

// Apply writes the patch onto s.
func (p SeatPatch) Apply(s *Seat) {
    if p.Availability != nil {
        s.Availability = *p.Availability
    }
    if p.Selected != nil {
        s.Selected = *p.Selected
    }
    if p.SelectedBy != nil {
        s.SelectedBy = nullStringPtr(*p.SelectedBy)
    }
    if p.Reserved != nil {
        s.Reserved = *p.Reserved
    }
    if p.ReservedAt != nil {
        s.ReservedAt = nullTimePtr(*p.ReservedAt)
    }
    if p.ReservedBy != nil {
        s.ReservedBy = nullStringPtr(*p.ReservedBy)
    }
    if p.BoughtAt != nil {
        s.BoughtAt = nullTimePtr(*p.BoughtAt)
    }
}

// Bool returns a pointer to b, for filter and patch literals.
func Bool(b bool) *bool { return &b }

// Str returns a pointer to s, for filter literals.
func Str(s string) *string { return &s }

// SetString is a patch value writing s.
func SetString(s string) *sql.NullString { return &sql.NullString{String: s, Valid: true} }

// ClearString is a patch value writing NULL.
func ClearString() *sql.NullString { return &sql.NullString{} }

// SetTime is a patch value writing t.
func SetTime(t time.Time) *sql.NullTime { return &sql.NullTime{Time: t, Valid: true} }

// ClearTime is a patch value writing NULL.
func ClearTime() *sql.NullTime { return &sql.NullTime{} }

func nullStringPtr(v sql.NullString) *string {
    if !v.Valid {
        return nil
    }
    s := v.String
    return &s
}

func nullTimePtr(v sql.NullTime) *time.Time {
    if !v.Valid {
        return nil
    }
    t := v.Time
    return &t
}

// SeatChange is the payload of a change notification.  Receivers must treat
// it as a hint only and re-read the seats of the event.
type SeatChange struct {
    EventID uint64    `json:"event_id"`
    SeatIDs []uint64  `json:"seat_ids,omitempty"`
    Source  string    `json:"source,omitempty"`
    At      time.Time `json:"at"`
}
