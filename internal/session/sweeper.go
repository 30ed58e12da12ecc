package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Sweeper periodically closes idle sessions and releases lapsed
// reservations.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	clock    clockwork.Clock
	log      *logrus.Entry
}

func NewSweeper(registry *Registry, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		registry: registry,
		interval: interval,
		clock:    registry.opts.Clock,
		log:      registry.opts.Log.WithField("component", "session_sweeper"),
	}
}

// Start blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval.String()).Info("session sweeper started")
	s.expire(ctx)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("session sweeper stopped")
			return
		case <-ticker.Chan():
			if n := s.registry.Sweep(ctx); n > 0 {
				s.log.WithFields(logrus.Fields{"closed": n, "open": s.registry.Len()}).Info("closed idle sessions")
			}
			s.expire(ctx)
		}
	}
}

func (s *Sweeper) expire(ctx context.Context) {
	n, err := s.registry.ExpireStale(ctx)
	if err != nil {
		s.log.WithError(err).Warn("release of lapsed reservations failed")
		return
	}
	if n > 0 {
		s.log.WithField("seats", n).Info("released lapsed reservations")
	}
}
