// Package seathold implements the per-session seat reservation state machine:
// selection toggling, hold placement and extension, the expiry countdown,
// purchase confirmation and release on exit.  A Manager serialises all
// intents, countdown ticks and change notifications of one (user, event)
// session behind a single mutex; sessions coordinate with each other only
// through conditional writes to the shared seat table.
package seathold

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-seat-hold/internal/metrics"
	"github.com/iliyamo/event-seat-hold/internal/model"
)

const (
	DefaultHoldDuration = 60 * time.Second
	DefaultTickInterval = time.Second

	// maxParallelWrites bounds the per-seat reserve writes of one hold.
	maxParallelWrites = 8

	reasonCancel  = "cancel"
	reasonExpired = "expired"
)

// Config identifies the session and sets its hold policy.
type Config struct {
	EventID      uint64
	User         model.User
	HoldDuration time.Duration
	TickInterval time.Duration
}

// Manager owns one user's selections and hold for one event.
type Manager struct {
	mu sync.Mutex

	cfg     Config
	seats   SeatStore
	holds   HoldStore
	clock   clockwork.Clock
	log     *logrus.Entry
	notify  PurchaseNotifier
	metrics *metrics.Metrics

	cache      []model.SeatView
	candidates map[uint64]struct{}
	held       []uint64
	expiry     time.Time

	countdownGen  uint64
	stopCountdown context.CancelFunc
	unsubscribe   func()

	ctx        context.Context
	cancel     context.CancelFunc
	started    bool
	closed     bool
	left       bool
	lastActive time.Time
}

// NewManager builds a session.  Nothing touches the stores until Start.
func NewManager(cfg Config, seats SeatStore, holds HoldStore, clock clockwork.Clock, log *logrus.Entry) *Manager {
	if cfg.HoldDuration <= 0 {
		cfg.HoldDuration = DefaultHoldDuration
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		cfg:   cfg,
		seats: seats,
		holds: holds,
		clock: clock,
		log: log.WithFields(logrus.Fields{
			"component": "seathold",
			"event_id":  cfg.EventID,
			"user_id":   cfg.User.ID,
		}),
		candidates: make(map[uint64]struct{}),
		ctx:        ctx,
		cancel:     cancel,
		lastActive: clock.Now(),
	}
}

// SetNotifier installs the purchase notifier.  Call before Start.
func (m *Manager) SetNotifier(n PurchaseNotifier) { m.notify = n }

// SetMetrics installs the collectors.  Call before Start.
func (m *Manager) SetMetrics(mt *metrics.Metrics) { m.metrics = mt }

func (m *Manager) EventID() uint64 { return m.cfg.EventID }

func (m *Manager) User() model.User { return m.cfg.User }

// Start mounts the session.  A durable hold left by a previous run is
// released if it has lapsed, otherwise it is reconciled against the seat
// table and its countdown resumes at the original absolute expiry.  The
// session then subscribes to change notifications and loads the seat map.
// Calling Start again is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSessionClosed
	}
	if m.started {
		m.touch()
		return nil
	}
	m.started = true
	m.touch()

	if err := m.resumeLocked(ctx); err != nil {
		m.log.WithError(err).Warn("resume of stored hold failed")
	}

	unsub, err := m.seats.SubscribeToChanges(m.ctx, m.cfg.EventID, m.onChange)
	if err != nil {
		m.log.WithError(err).Warn("change notifications unavailable, seat map refreshes on intents only")
	} else {
		m.unsubscribe = unsub
	}

	if err := m.refreshLocked(ctx); err != nil {
		m.shutdownLocked()
		return err
	}
	m.log.WithField("held", len(m.held)).Info("session started")
	return nil
}

func (m *Manager) resumeLocked(ctx context.Context) error {
	const op = "seathold.resume"
	me := m.cfg.User.ID
	h, ok, err := m.holds.Load(ctx, m.cfg.EventID, me)
	if err != nil {
		return storeErr(op, err)
	}
	if !ok || h.Empty() {
		return nil
	}
	if h.Expired(m.clock.Now()) {
		m.log.WithField("seats", h.SeatIDs).Info("stored hold lapsed while away, releasing")
		return m.releaseLocked(ctx, h.SeatIDs, reasonExpired)
	}

	fresh, err := m.seats.ListSeats(ctx, m.cfg.EventID)
	if err != nil {
		return storeErr(op, err)
	}
	byID := indexSeats(fresh)
	owned := make([]uint64, 0, len(h.SeatIDs))
	for _, id := range h.SeatIDs {
		if s, ok := byID[id]; ok && s.ReservedByUser(me) && !s.Sold() {
			owned = append(owned, id)
		}
	}
	if len(owned) == 0 {
		if err := m.holds.Clear(ctx, m.cfg.EventID, me); err != nil {
			return storeErr(op, err)
		}
		return nil
	}
	if len(owned) != len(h.SeatIDs) {
		h = model.Hold{SeatIDs: owned, ExpirationTime: h.ExpirationTime}
		if err := m.holds.Save(ctx, m.cfg.EventID, me, h); err != nil {
			return storeErr(op, err)
		}
	}
	m.held = owned
	m.expiry = h.ExpiresAt()
	m.restartCountdownLocked()
	return nil
}

// RefreshSeats re-reads every seat of the event and recomputes ownership and
// display classes.  It has no effect on the store.
func (m *Manager) RefreshSeats(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSessionClosed
	}
	m.touch()
	return m.refreshLocked(ctx)
}

func (m *Manager) refreshLocked(ctx context.Context) error {
	seats, err := m.seats.ListSeats(ctx, m.cfg.EventID)
	if err != nil {
		m.metrics.StoreError()
		return storeErr("seathold.refresh", err)
	}
	m.cache = model.ViewSeats(seats, m.cfg.User.ID)
	candidates := make(map[uint64]struct{})
	for _, v := range m.cache {
		if v.Class == model.ClassSelectedMine {
			candidates[v.SeatID] = struct{}{}
		}
	}
	m.candidates = candidates
	return nil
}

// onChange runs on the feed's goroutine.  Notifications are never merged
// into the cache; they always trigger a full refresh.
func (m *Manager) onChange(model.SeatChange) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if err := m.refreshLocked(m.ctx); err != nil {
		m.log.WithError(err).Debug("refresh after change notification failed")
	}
}

// fail refreshes the cache after a rejected intent so it reflects the table
// again, then returns err unchanged.
func (m *Manager) fail(ctx context.Context, err error) error {
	if rerr := m.refreshLocked(ctx); rerr != nil {
		m.log.WithError(rerr).Warn("refresh after failed intent failed")
	}
	return err
}

func (m *Manager) refreshAfterWrite(ctx context.Context) {
	if err := m.refreshLocked(ctx); err != nil {
		m.log.WithError(err).Warn("refresh after write failed")
	}
}

// ToggleSelection selects an available seat for this user, or removes this
// user's selection from it.  The seat table decides: the cache only changes
// through the refresh that follows the write.
func (m *Manager) ToggleSelection(ctx context.Context, seatID uint64) error {
	const op = "seathold.ToggleSelection"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSessionClosed
	}
	m.touch()
	me := m.cfg.User.ID
	if m.expireStaleLocked(ctx) {
		m.refreshAfterWrite(ctx)
	}

	seat, ok := m.cachedSeat(seatID)
	if !ok || !seat.Selectable() {
		m.metrics.SelectionRejected("unavailable")
		return m.fail(ctx, seatErr(ErrSeatUnavailable, seatID))
	}
	if seat.Selected && !seat.SelectedByUser(me) {
		m.metrics.SelectionRejected("selected_by_other")
		return m.fail(ctx, seatErr(ErrSeatUnavailable, seatID))
	}

	if seat.Selected {
		ids, err := m.seats.UpdateSeats(ctx,
			model.SeatFilter{EventID: m.cfg.EventID, SeatIDs: []uint64{seatID}, Selected: model.Bool(true), SelectedBy: model.Str(me)},
			model.SeatPatch{Selected: model.Bool(false), SelectedBy: model.ClearString()})
		if err != nil {
			m.metrics.StoreError()
			return m.fail(ctx, storeErr(op, err))
		}
		if len(ids) == 0 {
			m.metrics.SelectionRejected("not_owner")
			return m.fail(ctx, seatErr(ErrNotOwner, seatID))
		}
		delete(m.candidates, seatID)
	} else {
		ids, err := m.seats.UpdateSeats(ctx,
			model.SeatFilter{
				EventID:      m.cfg.EventID,
				SeatIDs:      []uint64{seatID},
				Availability: model.Bool(true),
				Selected:     model.Bool(false),
				Reserved:     model.Bool(false),
			},
			model.SeatPatch{Selected: model.Bool(true), SelectedBy: model.SetString(me)})
		if err != nil {
			m.metrics.StoreError()
			return m.fail(ctx, storeErr(op, err))
		}
		if len(ids) == 0 {
			m.metrics.SelectionRejected("lost_race")
			return m.fail(ctx, seatErr(ErrSeatUnavailable, seatID))
		}
		m.candidates[seatID] = struct{}{}
	}

	m.refreshAfterWrite(ctx)
	return nil
}

// expireStaleLocked releases reservations of the event that have outlived
// the hold duration, whoever placed them, and reports whether any were
// released.  A failure is logged and the intent goes ahead.
func (m *Manager) expireStaleLocked(ctx context.Context) bool {
	ex, ok := m.seats.(ReservationExpirer)
	if !ok {
		return false
	}
	cutoff := m.clock.Now().UTC().Add(-m.cfg.HoldDuration)
	ids, err := ex.ExpireReservations(ctx, m.cfg.EventID, cutoff)
	if err != nil {
		m.metrics.StoreError()
		m.log.WithError(err).Warn("release of lapsed reservations failed")
		return false
	}
	if len(ids) == 0 {
		return false
	}
	m.log.WithField("seats", ids).Info("released lapsed reservations")
	return true
}

type writeResult struct {
	id uint64
	ok bool
}

// PlaceHold reserves the requested seats, which must be selected by this
// user, and merges them into the session's existing hold.  The whole hold
// gets a fresh expiry and the single countdown restarts.  Seats selected by
// other users are skipped.  If any seat cannot be reserved the seats newly
// reserved by this call are put back to selected and the previous hold record
// is restored, so the caller never holds part of the batch.
func (m *Manager) PlaceHold(ctx context.Context, seatIDs []uint64) (model.Hold, error) {
	const op = "seathold.PlaceHold"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return model.Hold{}, ErrSessionClosed
	}
	m.touch()
	me := m.cfg.User.ID
	m.expireStaleLocked(ctx)

	fresh, err := m.seats.ListSeats(ctx, m.cfg.EventID)
	if err != nil {
		m.metrics.StoreError()
		return model.Hold{}, m.fail(ctx, storeErr(op, err))
	}
	byID := indexSeats(fresh)

	prev, hasPrev, err := m.holds.Load(ctx, m.cfg.EventID, me)
	if err != nil {
		m.metrics.StoreError()
		return model.Hold{}, m.fail(ctx, storeErr(op, err))
	}
	if hasPrev && prev.Expired(m.clock.Now()) {
		if err := m.releaseLocked(ctx, prev.SeatIDs, reasonExpired); err != nil {
			return model.Hold{}, m.fail(ctx, err)
		}
		prev, hasPrev = model.Hold{}, false
		fresh, err = m.seats.ListSeats(ctx, m.cfg.EventID)
		if err != nil {
			m.metrics.StoreError()
			return model.Hold{}, m.fail(ctx, storeErr(op, err))
		}
		byID = indexSeats(fresh)
	}

	// Seats of the previous hold that were lost in the meantime are dropped
	// from the merge instead of failing the new request.
	prevOwned := make([]uint64, 0, len(prev.SeatIDs))
	for _, id := range prev.SeatIDs {
		if s, ok := byID[id]; ok && s.ReservedByUser(me) && !s.Sold() {
			prevOwned = append(prevOwned, id)
		}
	}

	requested := dedupe(seatIDs)
	var newIDs, conflicts, notOwned, skipped []uint64
	for _, id := range requested {
		if slices.Contains(prevOwned, id) {
			continue
		}
		s, ok := byID[id]
		switch {
		case !ok, s.Sold(), s.Reserved:
			conflicts = append(conflicts, id)
		case s.Selected && !s.SelectedByUser(me):
			skipped = append(skipped, id)
		case !s.Selected:
			notOwned = append(notOwned, id)
		default:
			newIDs = append(newIDs, id)
		}
	}
	if len(conflicts) > 0 {
		m.metrics.HoldConflict()
		return model.Hold{}, m.fail(ctx, seatErr(ErrConflict, conflicts...))
	}
	if len(notOwned) > 0 {
		return model.Hold{}, m.fail(ctx, seatErr(ErrNotOwner, notOwned...))
	}
	if len(newIDs) == 0 && len(prevOwned) == 0 {
		return model.Hold{}, m.fail(ctx, seatErr(ErrSeatUnavailable, skipped...))
	}

	now := m.clock.Now().UTC()
	expiry := now.Add(m.cfg.HoldDuration)
	merged := append(slices.Clone(prevOwned), newIDs...)
	slices.Sort(merged)
	next := model.NewHold(merged, expiry)

	// The record goes to durable storage before any seat is reserved so that
	// a crash mid-write leaves a record to resume or release from.
	if err := m.holds.Save(ctx, m.cfg.EventID, me, next); err != nil {
		m.metrics.StoreError()
		return model.Hold{}, m.fail(ctx, storeErr(op, err))
	}

	results, writeErr := m.reserveAll(ctx, prevOwned, newIDs, now)
	var failed []uint64
	for _, r := range results {
		if !r.ok {
			failed = append(failed, r.id)
		}
	}
	if len(failed) > 0 {
		m.compensateLocked(ctx, results, newIDs, prev, hasPrev, next)
		if writeErr != nil {
			m.metrics.StoreError()
			return model.Hold{}, m.fail(ctx, storeErr(op, writeErr))
		}
		m.metrics.HoldConflict()
		m.log.WithField("seats", failed).Info("hold aborted by concurrent change")
		return model.Hold{}, m.fail(ctx, seatErr(ErrConflict, failed...))
	}

	m.held = merged
	m.expiry = expiry
	m.restartCountdownLocked()
	for _, id := range newIDs {
		delete(m.candidates, id)
	}
	m.metrics.HoldPlaced()
	m.log.WithFields(logrus.Fields{"seats": merged, "expires_at": expiry}).Info("hold placed")

	m.refreshAfterWrite(ctx)
	return next, nil
}

// reserveAll writes the reservation of every seat in parallel.  Seats already
// held by the session are guarded on the existing reservation, new seats on
// this user's selection.  The returned error is the first store failure.
func (m *Manager) reserveAll(ctx context.Context, held, fresh []uint64, now time.Time) ([]writeResult, error) {
	me := m.cfg.User.ID
	patch := model.SeatPatch{
		Reserved:   model.Bool(true),
		ReservedAt: model.SetTime(now),
		ReservedBy: model.SetString(me),
		Selected:   model.Bool(false),
		SelectedBy: model.ClearString(),
	}
	results := make([]writeResult, len(held)+len(fresh))

	var g errgroup.Group
	g.SetLimit(maxParallelWrites)
	write := func(i int, filter model.SeatFilter) {
		id := filter.SeatIDs[0]
		g.Go(func() error {
			ids, err := m.seats.UpdateSeats(ctx, filter, patch)
			results[i] = writeResult{id: id, ok: err == nil && len(ids) == 1}
			return err
		})
	}
	for i, id := range held {
		write(i, model.SeatFilter{
			EventID:    m.cfg.EventID,
			SeatIDs:    []uint64{id},
			Reserved:   model.Bool(true),
			ReservedBy: model.Str(me),
		})
	}
	for j, id := range fresh {
		write(len(held)+j, model.SeatFilter{
			EventID:      m.cfg.EventID,
			SeatIDs:      []uint64{id},
			Availability: model.Bool(true),
			Reserved:     model.Bool(false),
			Selected:     model.Bool(true),
			SelectedBy:   model.Str(me),
		})
	}
	err := g.Wait()
	return results, err
}

// compensateLocked undoes the new reservations of a failed hold.  When the
// undo itself fails the merged record is kept and the countdown armed so the
// stray reservations are released at expiry.
func (m *Manager) compensateLocked(ctx context.Context, results []writeResult, newIDs []uint64, prev model.Hold, hasPrev bool, next model.Hold) {
	me := m.cfg.User.ID
	var undo []uint64
	for _, r := range results {
		if r.ok && slices.Contains(newIDs, r.id) {
			undo = append(undo, r.id)
		}
	}
	if len(undo) > 0 {
		_, err := m.seats.UpdateSeats(ctx,
			model.SeatFilter{EventID: m.cfg.EventID, SeatIDs: undo, Reserved: model.Bool(true), ReservedBy: model.Str(me)},
			model.SeatPatch{
				Reserved:   model.Bool(false),
				ReservedAt: model.ClearTime(),
				ReservedBy: model.ClearString(),
				Selected:   model.Bool(true),
				SelectedBy: model.SetString(me),
			})
		if err != nil {
			m.log.WithError(err).WithField("seats", undo).Error("undo of partial hold failed, seats stay reserved until expiry")
			m.held = next.SeatIDs
			m.expiry = next.ExpiresAt()
			m.restartCountdownLocked()
			return
		}
	}

	var err error
	if hasPrev {
		err = m.holds.Save(ctx, m.cfg.EventID, me, prev)
	} else {
		err = m.holds.Clear(ctx, m.cfg.EventID, me)
	}
	if err != nil {
		m.log.WithError(err).Warn("restore of previous hold record failed")
	}
}

// ConfirmPurchase sells the seats of the stored hold.  The hold is read from
// the durable store, not from memory, so a resumed session can confirm.  A
// lapsed hold is released instead and ErrHoldExpired returned.  Seats the
// session no longer holds are silently left out of the purchase.
func (m *Manager) ConfirmPurchase(ctx context.Context) (model.Purchase, error) {
	m.mu.Lock()
	p, err := m.confirmLocked(ctx)
	notify := m.notify
	m.mu.Unlock()

	if err == nil && notify != nil && len(p.Seats) > 0 {
		if nerr := notify.PurchaseConfirmed(ctx, p); nerr != nil {
			m.log.WithError(nerr).WithField("purchase_id", p.ID).Warn("purchase notification failed")
		}
	}
	return p, err
}

func (m *Manager) confirmLocked(ctx context.Context) (model.Purchase, error) {
	const op = "seathold.ConfirmPurchase"
	if m.closed {
		return model.Purchase{}, ErrSessionClosed
	}
	m.touch()
	me := m.cfg.User.ID

	h, ok, err := m.holds.Load(ctx, m.cfg.EventID, me)
	if err != nil {
		m.metrics.StoreError()
		return model.Purchase{}, m.fail(ctx, storeErr(op, err))
	}
	if !ok || h.Empty() {
		return model.Purchase{}, m.fail(ctx, ErrNoActiveHold)
	}
	now := m.clock.Now().UTC()
	if h.Expired(now) {
		if err := m.releaseLocked(ctx, h.SeatIDs, reasonExpired); err != nil {
			return model.Purchase{}, m.fail(ctx, err)
		}
		return model.Purchase{}, m.fail(ctx, ErrHoldExpired)
	}

	sold, err := m.seats.UpdateSeats(ctx,
		model.SeatFilter{EventID: m.cfg.EventID, SeatIDs: h.SeatIDs, Reserved: model.Bool(true), ReservedBy: model.Str(me)},
		model.SeatPatch{
			Availability: model.Bool(false),
			BoughtAt:     model.SetTime(now),
			Reserved:     model.Bool(false),
			ReservedAt:   model.ClearTime(),
		})
	if err != nil {
		m.metrics.StoreError()
		return model.Purchase{}, m.fail(ctx, storeErr(op, err))
	}

	m.stopCountdownLocked()
	m.held = nil
	m.expiry = time.Time{}
	if err := m.holds.Clear(ctx, m.cfg.EventID, me); err != nil {
		m.log.WithError(err).Warn("clear of hold record failed after purchase")
	}
	m.refreshAfterWrite(ctx)

	p := m.purchaseLocked(sold, now)
	m.metrics.Purchase(len(p.Seats))
	m.log.WithFields(logrus.Fields{"purchase_id": p.ID, "seats": sold, "dropped": len(h.SeatIDs) - len(sold)}).Info("purchase confirmed")
	return p, nil
}

func (m *Manager) purchaseLocked(sold []uint64, at time.Time) model.Purchase {
	p := model.Purchase{
		ID:       uuid.NewString(),
		EventID:  m.cfg.EventID,
		Buyer:    m.cfg.User,
		Seats:    make([]model.PurchasedSeat, 0, len(sold)),
		BoughtAt: at,
	}
	for _, id := range sold {
		line := model.PurchasedSeat{SeatID: id}
		if s, ok := m.cachedSeat(id); ok {
			line.Position = s.Position
			line.PriceCents = s.PriceCents
		}
		p.Seats = append(p.Seats, line)
		p.TotalCents += uint64(line.PriceCents)
	}
	return p
}

// Purchased reads back the seats this user has bought for the event, from the
// seat table rather than the cache.  BoughtAt is the latest sale time.
// ErrNoPurchase is returned when there are none.
func (m *Manager) Purchased(ctx context.Context) (model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return model.Purchase{}, ErrSessionClosed
	}
	m.touch()
	me := m.cfg.User.ID

	seats, err := m.seats.ListSeats(ctx, m.cfg.EventID)
	if err != nil {
		m.metrics.StoreError()
		return model.Purchase{}, storeErr("seathold.Purchased", err)
	}
	p := model.Purchase{EventID: m.cfg.EventID, Buyer: m.cfg.User, Seats: make([]model.PurchasedSeat, 0)}
	for _, s := range seats {
		if !s.BoughtByUser(me) {
			continue
		}
		p.Seats = append(p.Seats, model.PurchasedSeat{SeatID: s.SeatID, Position: s.Position, PriceCents: s.PriceCents})
		p.TotalCents += uint64(s.PriceCents)
		if s.BoughtAt.After(p.BoughtAt) {
			p.BoughtAt = *s.BoughtAt
		}
	}
	if len(p.Seats) == 0 {
		return model.Purchase{}, ErrNoPurchase
	}
	return p, nil
}

// CancelHold releases every seat still held by the session before expiry.
func (m *Manager) CancelHold(ctx context.Context) error {
	const op = "seathold.CancelHold"
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrSessionClosed
	}
	m.touch()

	h, _, err := m.holds.Load(ctx, m.cfg.EventID, m.cfg.User.ID)
	if err != nil {
		m.metrics.StoreError()
		return m.fail(ctx, storeErr(op, err))
	}
	ids := dedupe(append(slices.Clone(h.SeatIDs), m.held...))
	if len(ids) == 0 {
		return m.fail(ctx, ErrNoActiveHold)
	}
	if err := m.releaseLocked(ctx, ids, reasonCancel); err != nil {
		return m.fail(ctx, err)
	}
	m.refreshAfterWrite(ctx)
	return nil
}

// releaseLocked frees the reservations this user still owns among ids, then
// stops the countdown and forgets the hold.  On a store failure nothing is
// forgotten so the release can be retried.
func (m *Manager) releaseLocked(ctx context.Context, ids []uint64, reason string) error {
	me := m.cfg.User.ID
	if len(ids) > 0 {
		_, err := m.seats.UpdateSeats(ctx,
			model.SeatFilter{EventID: m.cfg.EventID, SeatIDs: ids, Reserved: model.Bool(true), ReservedBy: model.Str(me)},
			model.SeatPatch{Reserved: model.Bool(false), ReservedAt: model.ClearTime(), ReservedBy: model.ClearString()})
		if err != nil {
			m.metrics.StoreError()
			return storeErr("seathold.release", err)
		}
	}
	m.stopCountdownLocked()
	m.held = nil
	m.expiry = time.Time{}
	if err := m.holds.Clear(ctx, m.cfg.EventID, me); err != nil {
		m.log.WithError(err).Warn("clear of hold record failed after release")
	}
	m.metrics.HoldReleased(reason)
	m.log.WithFields(logrus.Fields{"seats": ids, "reason": reason}).Info("hold released")
	return nil
}

// CheckExpiry releases the hold if its expiry has passed.  The countdown
// calls it on every tick.
func (m *Manager) CheckExpiry(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	return m.expireIfDueLocked(ctx)
}

func (m *Manager) expireIfDueLocked(ctx context.Context) error {
	if m.expiry.IsZero() || m.clock.Now().Before(m.expiry) {
		return nil
	}
	if err := m.releaseLocked(ctx, m.held, reasonExpired); err != nil {
		return err
	}
	m.refreshAfterWrite(ctx)
	return nil
}

// restartCountdownLocked replaces the running countdown, if any.  A tick of a
// replaced countdown that is already waiting on the lock sees a stale
// generation and does nothing.
func (m *Manager) restartCountdownLocked() {
	m.stopCountdownLocked()
	m.countdownGen++
	gen := m.countdownGen
	ctx, cancel := context.WithCancel(m.ctx)
	m.stopCountdown = cancel
	ticker := m.clock.NewTicker(m.cfg.TickInterval)
	go m.runCountdown(ctx, gen, ticker)
}

func (m *Manager) stopCountdownLocked() {
	if m.stopCountdown != nil {
		m.stopCountdown()
		m.stopCountdown = nil
	}
}

func (m *Manager) runCountdown(ctx context.Context, gen uint64, ticker clockwork.Ticker) {
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.tick(ctx, gen)
		}
	}
}

func (m *Manager) tick(ctx context.Context, gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || gen != m.countdownGen || ctx.Err() != nil {
		return
	}
	if err := m.expireIfDueLocked(m.ctx); err != nil {
		m.log.WithError(err).Warn("expiry release failed, retrying on next tick")
	}
}

// Leave gives back the seats this user has selected but not reserved and
// marks the session as left.  Unlike Close it keeps the session running, so
// a hold in progress is still released by its countdown when it expires.
// Any later intent or Start clears the mark.
func (m *Manager) Leave(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	if err := m.releaseSelectionsLocked(ctx); err != nil {
		return err
	}
	m.left = true
	m.refreshAfterWrite(ctx)
	m.log.WithField("held", len(m.held)).Info("session left")
	return nil
}

// Close ends the session: it stops the countdown, unsubscribes and gives back
// the seats this user has selected but not reserved.  Reserved seats are kept
// so the user can come back within the hold window; if nobody does, they are
// released by the lapsed reservation sweep.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	err := m.releaseSelectionsLocked(ctx)
	m.shutdownLocked()
	if err != nil {
		return err
	}
	m.log.Info("session closed")
	return nil
}

func (m *Manager) releaseSelectionsLocked(ctx context.Context) error {
	me := m.cfg.User.ID
	_, err := m.seats.UpdateSeats(ctx,
		model.SeatFilter{EventID: m.cfg.EventID, Selected: model.Bool(true), SelectedBy: model.Str(me), Reserved: model.Bool(false)},
		model.SeatPatch{Selected: model.Bool(false), SelectedBy: model.ClearString()})
	if err != nil {
		m.metrics.StoreError()
		return storeErr("seathold.releaseSelections", err)
	}
	m.candidates = make(map[uint64]struct{})
	return nil
}

func (m *Manager) shutdownLocked() {
	m.closed = true
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.stopCountdownLocked()
	m.cancel()
}

// HasActiveHold reports whether the session currently holds seats.
func (m *Manager) HasActiveHold() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.held) > 0
}

// LastActive returns the time of the last intent.
func (m *Manager) LastActive() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActive
}

// Left reports whether the user left the session and has not come back.
func (m *Manager) Left() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.left
}

// Closed reports whether Close has run.
func (m *Manager) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) touch() {
	m.lastActive = m.clock.Now()
	m.left = false
}

func (m *Manager) cachedSeat(id uint64) (model.SeatView, bool) {
	i, ok := slices.BinarySearchFunc(m.cache, id, func(v model.SeatView, id uint64) int {
		switch {
		case v.SeatID < id:
			return -1
		case v.SeatID > id:
			return 1
		}
		return 0
	})
	if !ok {
		return model.SeatView{}, false
	}
	return m.cache[i], true
}

func indexSeats(seats []model.Seat) map[uint64]model.Seat {
	out := make(map[uint64]model.Seat, len(seats))
	for _, s := range seats {
		out[s.SeatID] = s
	}
	return out
}

// dedupe drops zero and repeated ids, keeping first-seen order.
func dedupe(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
