// Package session keeps the live seat sessions of this gateway instance, one
// per (user, event) pair, and closes the ones whose user has gone quiet.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-seat-hold/internal/metrics"
	"github.com/iliyamo/event-seat-hold/internal/model"
	"github.com/iliyamo/event-seat-hold/internal/seathold"
)

// DefaultIdleTimeout is used when Options.IdleTimeout is not set.
const DefaultIdleTimeout = 15 * time.Minute

// Options carries the collaborators every session is built with.
type Options struct {
	Seats        seathold.SeatStore
	Holds        seathold.HoldStore
	Notifier     seathold.PurchaseNotifier
	Metrics      *metrics.Metrics
	Clock        clockwork.Clock
	Log          *logrus.Entry
	HoldDuration time.Duration
	TickInterval time.Duration
	IdleTimeout  time.Duration
}

type key struct {
	userID  string
	eventID uint64
}

// Registry maps users and events to their running session.
type Registry struct {
	mu       sync.Mutex
	sessions map[key]*seathold.Manager
	opts     Options
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	return &Registry{sessions: make(map[key]*seathold.Manager), opts: opts}
}

// Open returns the user's session for the event, creating and starting it on
// first use.  Concurrent opens of the same session share one manager; the
// ones that lose the race wait for its start to finish.
func (r *Registry) Open(ctx context.Context, user model.User, eventID uint64) (*seathold.Manager, error) {
	k := key{userID: user.ID, eventID: eventID}

	r.mu.Lock()
	m, ok := r.sessions[k]
	if !ok {
		m = seathold.NewManager(seathold.Config{
			EventID:      eventID,
			User:         user,
			HoldDuration: r.opts.HoldDuration,
			TickInterval: r.opts.TickInterval,
		}, r.opts.Seats, r.opts.Holds, r.opts.Clock, r.opts.Log)
		m.SetNotifier(r.opts.Notifier)
		m.SetMetrics(r.opts.Metrics)
		r.sessions[k] = m
		r.opts.Metrics.SessionOpened()
	}
	r.mu.Unlock()

	if err := m.Start(ctx); err != nil {
		r.forget(k, m)
		return nil, err
	}
	return m, nil
}

// Get returns the running session, if any.
func (r *Registry) Get(userID string, eventID uint64) (*seathold.Manager, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.sessions[key{userID: userID, eventID: eventID}]
	return m, ok
}

// Leave ends the user's presence in the session.  Selections are given back
// straight away.  A session holding seats stays registered with its
// countdown running until the hold is bought, cancelled or expires; Sweep
// closes it after that.  Any other session is closed and forgotten.  Leaving
// a session that is not open is a no-op.
func (r *Registry) Leave(ctx context.Context, userID string, eventID uint64) error {
	k := key{userID: userID, eventID: eventID}
	r.mu.Lock()
	m, ok := r.sessions[k]
	r.mu.Unlock()
	if !ok {
		return nil
	}
	if m.HasActiveHold() {
		return m.Leave(ctx)
	}
	r.forget(k, m)
	return m.Close(ctx)
}

// Sweep closes sessions that were left or have been idle for longer than the
// idle timeout and returns how many it closed.  A session holding seats is
// kept: its countdown is still running and will release them.
func (r *Registry) Sweep(ctx context.Context) int {
	now := r.opts.Clock.Now()

	r.mu.Lock()
	all := make(map[key]*seathold.Manager, len(r.sessions))
	for k, m := range r.sessions {
		all[k] = m
	}
	r.mu.Unlock()

	closed := 0
	for k, m := range all {
		if m.HasActiveHold() {
			continue
		}
		if !m.Left() && now.Sub(m.LastActive()) < r.opts.IdleTimeout {
			continue
		}
		if !r.forget(k, m) {
			continue
		}
		if err := m.Close(ctx); err != nil {
			r.opts.Log.WithError(err).WithFields(logrus.Fields{
				"user_id":  k.userID,
				"event_id": k.eventID,
			}).Warn("closing idle session failed")
		}
		closed++
	}
	return closed
}

// ExpireStale releases reservations of every event that have outlived the
// hold duration and returns how many seats it released.  It covers holds
// whose countdown runs nowhere, such as those of a closed session or of a
// stopped instance.
func (r *Registry) ExpireStale(ctx context.Context) (int, error) {
	ex, ok := r.opts.Seats.(seathold.ReservationExpirer)
	if !ok {
		return 0, nil
	}
	hold := r.opts.HoldDuration
	if hold <= 0 {
		hold = seathold.DefaultHoldDuration
	}
	ids, err := ex.ExpireReservations(ctx, 0, r.opts.Clock.Now().UTC().Add(-hold))
	if err != nil {
		r.opts.Metrics.StoreError()
		return 0, err
	}
	return len(ids), nil
}

// CloseAll closes every session.  It is called on shutdown.  Reservations of
// open holds stay in the seat table for the user's next session to resume;
// ExpireStale releases them once they have lapsed.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[key]*seathold.Manager)
	r.mu.Unlock()

	var errs []error
	for _, m := range all {
		r.opts.Metrics.SessionClosed()
		if err := m.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// forget removes m if it is still the registered session for k.
func (r *Registry) forget(k key, m *seathold.Manager) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.sessions[k]; !ok || cur != m {
		return false
	}
	delete(r.sessions, k)
	r.opts.Metrics.SessionClosed()
	return true
}
