package main // Entry point package

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/event-seat-hold/internal/config"
	"github.com/iliyamo/event-seat-hold/internal/database"
	"github.com/iliyamo/event-seat-hold/internal/handler"
	"github.com/iliyamo/event-seat-hold/internal/logger"
	"github.com/iliyamo/event-seat-hold/internal/metrics"
	mw "github.com/iliyamo/event-seat-hold/internal/middleware"
	"github.com/iliyamo/event-seat-hold/internal/queue"
	"github.com/iliyamo/event-seat-hold/internal/repository"
	"github.com/iliyamo/event-seat-hold/internal/router"
	"github.com/iliyamo/event-seat-hold/internal/seathold"
	"github.com/iliyamo/event-seat-hold/internal/service"
	"github.com/iliyamo/event-seat-hold/internal/session"
)

// Redis key namespaces: hold:<event>:<user> and seats:event:<event>.
const (
	holdKeyPrefix  = "hold"
	seatFeedPrefix = "seats"
)

// seatBackend is the seat store plus the read side the public handler needs.
type seatBackend interface {
	seathold.SeatStore
	SeedEvent(ctx context.Context, eventID uint64, layout []int, priceCents uint32) (int, error)
}

func main() {
	cfg := config.Load() // Load environment config
	log := logger.Setup(cfg.LogLevel, cfg.Production(), os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := clockwork.NewRealClock()
	rdb := config.NewRedisClient() // nil when Redis is unreachable
	if rdb == nil {
		log.Warn("redis unavailable: caching and rate limiting disabled, holds kept in memory")
	} else {
		defer rdb.Close()
	}

	seats, cleanup, err := openSeatStore(ctx, cfg, rdb, clock, log)
	if err != nil {
		log.WithError(err).Fatal("seat store unavailable")
	}
	defer cleanup()

	if cfg.SeedEventID > 0 {
		n, err := seats.SeedEvent(ctx, cfg.SeedEventID, repository.DefaultHallLayout, cfg.SeedPriceCents)
		switch {
		case errors.Is(err, repository.ErrEventExists):
			log.WithField("event_id", cfg.SeedEventID).Info("seed skipped, event already has seats")
		case err != nil:
			log.WithError(err).Fatal("seeding event failed")
		default:
			log.WithFields(logrus.Fields{"event_id": cfg.SeedEventID, "seats": n}).Info("event seeded")
		}
	}

	var holds seathold.HoldStore = repository.NewMemoryHoldStore()
	if rdb != nil {
		holds = repository.NewRedisHoldStore(rdb, holdKeyPrefix, cfg.HoldRetention)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	registry := session.NewRegistry(session.Options{
		Seats:        seats,
		Holds:        holds,
		Notifier:     service.NewPurchasePublisher(cfg.RabbitMQURL, log),
		Metrics:      m,
		Clock:        clock,
		Log:          log,
		HoldDuration: cfg.HoldDuration,
		TickInterval: cfg.HoldTickInterval,
		IdleTimeout:  cfg.SessionIdleTimeout,
	})

	e := echo.New() // Create Echo instance
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(mw.RequestLogger(log))
	router.RegisterRoutes(e, reg)
	router.RegisterPublic(e, handler.NewPublicHandler(seats), mw.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterSession(e, handler.NewSessionHandler(registry, log), cfg.JWTSecret,
		mw.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		session.NewSweeper(registry, cfg.SessionSweepInterval).Start(gctx)
		return nil
	})
	if cfg.BookingConsumerEnabled {
		g.Go(func() error {
			err := queue.NewConsumer(cfg.RabbitMQURL, "", log).Start(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		addr := ":" + cfg.Port // Address string with port
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "store": cfg.SeatStore}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("http shutdown")
		}
		// Selections are released here.  Reservations of open holds stay for the
		// user's next session to resume; the sweeper of any instance releases
		// them once they are older than the hold duration.
		return registry.CloseAll(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server stopped with error")
		return
	}
	log.Info("server stopped")
}

// openSeatStore picks the seat table backend.  The MySQL store announces
// changes over Redis pub/sub when Redis is reachable and falls back to
// polling the table otherwise.
func openSeatStore(ctx context.Context, cfg config.Config, rdb *redis.Client, clock clockwork.Clock, log *logrus.Entry) (seatBackend, func(), error) {
	if cfg.SeatStore == config.StoreMemory {
		log.Warn("using in-memory seat store; seats are not shared between instances")
		return repository.NewMemorySeatStore(), func() {}, nil
	}

	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	repo := repository.NewSeatRepo(db)
	if rdb != nil {
		repo.SetChangeFeed(repository.NewRedisChangeFeed(rdb, seatFeedPrefix))
	} else {
		log.WithField("interval", cfg.FeedPollInterval.String()).Info("watching seat table by polling")
		repo.SetChangeFeed(repository.NewPollingChangeFeed(repo, cfg.FeedPollInterval, clock))
	}
	return repo, func() { _ = db.Close() }, nil
}
