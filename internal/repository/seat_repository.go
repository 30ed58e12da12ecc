package repository

import (
    "context"
    "database/sql"
    "sort"
    "strings"
    "time"

    "github.com/iliyamo/event-seat-hold/internal/model"
)

const seatColumns = `seat_id, event_id, position, price_cents, availability, selected, selected_by,
       reserved, reserved_at, reserved_by, bought_at`

// SeatRepo provides access to the shared `seats` table in MySQL.  It is the
// Remote Seat Store of the production deployment: sessions on every gateway
// instance read and conditionally update the same rows.  All timestamps are
// written in UTC.
type SeatRepo struct {
    db   *sql.DB
    feed ChangeFeed
}

// NewSeatRepo returns a SeatRepo bound to db.  Changes are announced on an
// in-process feed until SetChangeFeed installs a shared one.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db, feed: NewLocalChangeFeed()} }

// SetChangeFeed replaces the feed used to announce and watch changes.
func (r *SeatRepo) SetChangeFeed(feed ChangeFeed) {
    if feed != nil {
        r.feed = feed
    }
}

// DB exposes the underlying database handle.
func (r *SeatRepo) DB() *sql.DB { return r.db }

// ListSeats returns every seat of an event ordered by seat id.
func (r *SeatRepo) ListSeats(ctx context.Context, eventID uint64) ([]model.Seat, error) {
    rows, err := r.db.QueryContext(ctx,
        `SELECT `+seatColumns+` FROM seats WHERE event_id = ? ORDER BY seat_id`, eventID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    seats := make([]model.Seat, 0)
    for rows.Next() {
        s, err := scanSeat(rows)
        if err != nil {
            return nil, err
        }
        seats = append(seats, s)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return seats, nil
}

// UpdateSeats applies patch to the rows matching filter and returns the ids of
// the rows it changed.  The matching rows are locked with SELECT ... FOR
// UPDATE inside a transaction so that a concurrent writer cannot slip between
// the predicate check and the write.  A committed change is announced on the
// change feed; a failed announcement does not fail the update.
func (r *SeatRepo) UpdateSeats(ctx context.Context, filter model.SeatFilter, patch model.SeatPatch) ([]uint64, error) {
    if err := checkUpdate(filter.EventID, patch.Empty()); err != nil {
        return nil, err
    }
    where, args := filterClause(filter)

    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    rows, err := tx.QueryContext(ctx, `SELECT seat_id FROM seats WHERE `+where+` ORDER BY seat_id FOR UPDATE`, args...)
    if err != nil {
        return nil, err
    }
    ids := make([]uint64, 0)
    for rows.Next() {
        var id uint64
        if scanErr := rows.Scan(&id); scanErr != nil {
            rows.Close()
            return nil, scanErr
        }
        ids = append(ids, id)
    }
    if err = rows.Close(); err != nil {
        return nil, err
    }
    if len(ids) == 0 {
        if err := tx.Commit(); err != nil {
            return nil, err
        }
        committed = true
        return ids, nil
    }

    set, setArgs := patchClause(patch)
    setArgs = append(setArgs, uint64Args(ids)...)
    if _, err := tx.ExecContext(ctx,
        `UPDATE seats SET `+set+` WHERE seat_id IN (`+placeholders(len(ids))+`)`, setArgs...); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true

    _ = r.feed.Publish(ctx, model.SeatChange{EventID: filter.EventID, SeatIDs: ids, Source: "mysql", At: time.Now().UTC()})
    return ids, nil
}

// ExpireReservations releases every reservation written at or before cutoff
// and returns the ids of the released seats.  An eventID of 0 covers all
// events.  It catches holds whose countdown is no longer running anywhere,
// such as those of a gateway that stopped.
func (r *SeatRepo) ExpireReservations(ctx context.Context, eventID uint64, cutoff time.Time) ([]uint64, error) {
    where := "reserved = ? AND reserved_at <= ?"
    args := []interface{}{true, cutoff.UTC()}
    if eventID != 0 {
        where = "event_id = ? AND " + where
        args = append([]interface{}{eventID}, args...)
    }

    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()

    rows, err := tx.QueryContext(ctx, `SELECT seat_id, event_id FROM seats WHERE `+where+` ORDER BY seat_id FOR UPDATE`, args...)
    if err != nil {
        return nil, err
    }
    ids := make([]uint64, 0)
    byEvent := make(map[uint64][]uint64)
    for rows.Next() {
        var id, ev uint64
        if scanErr := rows.Scan(&id, &ev); scanErr != nil {
            rows.Close()
            return nil, scanErr
        }
        ids = append(ids, id)
        byEvent[ev] = append(byEvent[ev], id)
    }
    if err = rows.Close(); err != nil {
        return nil, err
    }
    if len(ids) == 0 {
        if err := tx.Commit(); err != nil {
            return nil, err
        }
        committed = true
        return ids, nil
    }

    set, setArgs := patchClause(releasePatch())
    setArgs = append(setArgs, uint64Args(ids)...)
    if _, err := tx.ExecContext(ctx,
        `UPDATE seats SET `+set+` WHERE seat_id IN (`+placeholders(len(ids))+`)`, setArgs...); err != nil {
        return nil, err
    }
    if err := tx.Commit(); err != nil {
        return nil, err
    }
    committed = true

    announceByEvent(ctx, r.feed, byEvent, "mysql")
    return ids, nil
}

// SubscribeToChanges registers fn for change notifications of an event.
func (r *SeatRepo) SubscribeToChanges(ctx context.Context, eventID uint64, fn func(model.SeatChange)) (func(), error) {
    return r.feed.Subscribe(ctx, eventID, fn)
}

// CountSeats returns the number of seats of an event.
func (r *SeatRepo) CountSeats(ctx context.Context, eventID uint64) (int, error) {
    var n int
    err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM seats WHERE event_id = ?`, eventID).Scan(&n)
    return n, err
}

// SeedEvent inserts the seats of an event from a row layout in one
// transaction.  It refuses to seed an event that already has seats.
func (r *SeatRepo) SeedEvent(ctx context.Context, eventID uint64, layout []int, priceCents uint32) (int, error) {
    n, err := r.CountSeats(ctx, eventID)
    if err != nil {
        return 0, err
    }
    if n > 0 {
        return 0, ErrEventExists
    }
    seats := LayoutSeats(eventID, layout, priceCents)
    if len(seats) == 0 {
        return 0, nil
    }

    tx, err := r.db.BeginTx(ctx, nil)
    if err != nil {
        return 0, err
    }
    committed := false
    defer func() {
        if !committed {
            _ = tx.Rollback()
        }
    }()
    query := `INSERT INTO seats (event_id, position, price_cents, availability) VALUES `
    args := make([]interface{}, 0, len(seats)*4)
    for i, s := range seats {
        if i > 0 {
            query += ","
        }
        query += "(?, ?, ?, ?)"
        args = append(args, s.EventID, s.Position, s.PriceCents, s.Availability)
    }
    if _, err := tx.ExecContext(ctx, query, args...); err != nil {
        return 0, err
    }
    if err := tx.Commit(); err != nil {
        return 0, err
    }
    committed = true
    return len(seats), nil
}

type rowScanner interface {
    Scan(dest ...any) error
}

func scanSeat(sc rowScanner) (model.Seat, error) {
    var (
        s                      model.Seat
        selectedBy, reservedBy sql.NullString
        reservedAt, boughtAt   sql.NullTime
    )
    if err := sc.Scan(&s.SeatID, &s.EventID, &s.Position, &s.PriceCents, &s.Availability, &s.Selected, &selectedBy,
        &s.Reserved, &reservedAt, &reservedBy, &boughtAt); err != nil {
        return model.Seat{}, err
    }
    if selectedBy.Valid {
        v := selectedBy.String
        s.SelectedBy = &v
    }
    if reservedBy.Valid {
        v := reservedBy.String
        s.ReservedBy = &v
    }
    if reservedAt.Valid {
        v := reservedAt.Time.UTC()
        s.ReservedAt = &v
    }
    if boughtAt.Valid {
        v := boughtAt.Time.UTC()
        s.BoughtAt = &v
    }
    return s, nil
}

// filterClause renders the WHERE clause of a conditional update.  Predicates
// are emitted in a fixed column order.
func filterClause(f model.SeatFilter) (string, []interface{}) {
    conds := []string{"event_id = ?"}
    args := []interface{}{f.EventID}
    if len(f.SeatIDs) > 0 {
        conds = append(conds, "seat_id IN ("+placeholders(len(f.SeatIDs))+")")
        args = append(args, uint64Args(f.SeatIDs)...)
    }
    if f.Availability != nil {
        conds = append(conds, "availability = ?")
        args = append(args, *f.Availability)
    }
    if f.Selected != nil {
        conds = append(conds, "selected = ?")
        args = append(args, *f.Selected)
    }
    if f.SelectedBy != nil {
        conds = append(conds, "selected_by = ?")
        args = append(args, *f.SelectedBy)
    }
    if f.Reserved != nil {
        conds = append(conds, "reserved = ?")
        args = append(args, *f.Reserved)
    }
    if f.ReservedBy != nil {
        conds = append(conds, "reserved_by = ?")
        args = append(args, *f.ReservedBy)
    }
    return strings.Join(conds, " AND "), args
}

// patchClause renders the SET list of a conditional update in a fixed column
// order.  Timestamps are converted to UTC.
func patchClause(p model.SeatPatch) (string, []interface{}) {
    var sets []string
    var args []interface{}
    if p.Availability != nil {
        sets = append(sets, "availability = ?")
        args = append(args, *p.Availability)
    }
    if p.Selected != nil {
        sets = append(sets, "selected = ?")
        args = append(args, *p.Selected)
    }
    if p.SelectedBy != nil {
        sets = append(sets, "selected_by = ?")
        args = append(args, *p.SelectedBy)
    }
    if p.Reserved != nil {
        sets = append(sets, "reserved = ?")
        args = append(args, *p.Reserved)
    }
    if p.ReservedAt != nil {
        sets = append(sets, "reserved_at = ?")
        args = append(args, utcTime(*p.ReservedAt))
    }
    if p.ReservedBy != nil {
        sets = append(sets, "reserved_by = ?")
        args = append(args, *p.ReservedBy)
    }
    if p.BoughtAt != nil {
        sets = append(sets, "bought_at = ?")
        args = append(args, utcTime(*p.BoughtAt))
    }
    return strings.Join(sets, ", "), args
}

func utcTime(t sql.NullTime) sql.NullTime {
    if t.Valid {
        t.Time = t.Time.UTC()
    }
    return t
}

func placeholders(n int) string {
    if n <= 0 {
        return ""
    }
    return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func uint64Args(ids []uint64) []interface{} {
    out := make([]interface{}, len(ids))
    for i, id := range ids {
        out[i] = id
    }
    return out
}

// releasePatch gives a reservation back to the pool.
func releasePatch() model.SeatPatch {
    return model.SeatPatch{
        Reserved:   model.Bool(false),
        ReservedAt: model.ClearTime(),
        ReservedBy: model.ClearString(),
    }
}

// announceByEvent publishes one change per event, in event id order.
func announceByEvent(ctx context.Context, feed ChangeFeed, byEvent map[uint64][]uint64, source string) {
    events := make([]uint64, 0, len(byEvent))
    for ev := range byEvent {
        events = append(events, ev)
    }
    sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
    at := time.Now().UTC()
    for _, ev := range events {
        ids := byEvent[ev]
        sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
        _ = feed.Publish(ctx, model.SeatChange{EventID: ev, SeatIDs: ids, Source: source, At: at})
    }
}
