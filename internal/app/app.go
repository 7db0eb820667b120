package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/tix-reserve/internal/clock"
	"github.com/kirinyoku/tix-reserve/internal/config"
	"github.com/kirinyoku/tix-reserve/internal/outbox"
	"github.com/kirinyoku/tix-reserve/internal/postgres"
	"github.com/kirinyoku/tix-reserve/internal/redis"
	"github.com/kirinyoku/tix-reserve/internal/repository"
	memoryrepo "github.com/kirinyoku/tix-reserve/internal/repository/memory"
	postgresrepo "github.com/kirinyoku/tix-reserve/internal/repository/postgres"
	"github.com/kirinyoku/tix-reserve/internal/repository/postgres/migrations"
	redisrepo "github.com/kirinyoku/tix-reserve/internal/repository/redis"
	"github.com/kirinyoku/tix-reserve/internal/service"
	"github.com/kirinyoku/tix-reserve/internal/service/expiry"
	"github.com/kirinyoku/tix-reserve/internal/service/query"
	"github.com/kirinyoku/tix-reserve/internal/service/retry"
	httpgin "github.com/kirinyoku/tix-reserve/internal/transport/http/gin"
)

type App struct {
	cfg        *config.Config
	logger     *zap.Logger
	httpServer *http.Server
	services   *service.Services
	dispatcher *outbox.Dispatcher
	closers    []func() error
}

func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	store, health, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var (
		rdb   *goredis.Client
		cache *redisrepo.Cache
		idem  httpgin.Idempotency
		deps  = service.Deps{Store: store, Clock: clock.NewSystem(), Logger: logger}
	)

	if cfg.Redis.Addr != "" {
		rdb, err = redis.New(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)

		cache = redisrepo.NewCache(rdb)
		deps.Cache = cache
		deps.Limiter = redisrepo.NewSlidingWindowLimiter(rdb, "reservations", cfg.Reservation.RateLimitPerMinute, time.Minute)
		idem = redisrepo.NewIdempotencyStore(rdb, cfg.Reservation.IdempotencyTTL)
	}

	pub, err := newPublisher(cfg.Outbox, rdb, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize outbox sink: %w", err)
	}
	a.closers = append(a.closers, pub.Close)

	a.dispatcher = outbox.NewDispatcher(store, pub, deps.Clock, logger.Named("outbox"), outbox.Config{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
	})
	deps.Wake = a.dispatcher.Notify

	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.Reservation.MaxAttempts

	a.services = service.NewServices(deps, service.Config{
		Retry: policy,
		Query: query.Config{},
		Expiry: expiry.Config{
			Interval:  cfg.Sweeper.Interval,
			BatchSize: cfg.Sweeper.BatchSize,
		},
	})

	router := httpgin.NewRouter(a.services, idem, health, logger.Named("http"))

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           otelhttp.NewHandler(router, "tix-reserve.http"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a, nil
}

func (a *App) openStore(ctx context.Context) (repository.Store, httpgin.HealthFunc, error) {
	if a.cfg.Storage == config.StorageMemory {
		a.logger.Warn("using in-memory store, data is lost on restart")
		return memoryrepo.NewStore(), nil, nil
	}

	pool, err := postgres.New(ctx, postgres.Config{DSN: a.cfg.Postgres.DSN(), MaxConns: a.cfg.Postgres.MaxConns})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	if err := migrations.Apply(ctx, pool); err != nil {
		return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	store := postgresrepo.NewStore(pool)
	return store, store.Ping, nil
}

func newPublisher(cfg config.OutboxConfig, rdb *goredis.Client, logger *zap.Logger) (outbox.Publisher, error) {
	switch cfg.Sink {
	case config.SinkRedis:
		return outbox.NewRedisPublisher(rdb), nil
	case config.SinkAMQP:
		return outbox.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPQueue)
	case config.SinkKafka:
		return outbox.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic), nil
	default:
		return outbox.NewLogPublisher(logger.Named("notifications")), nil
	}
}

// Run serves HTTP and runs the expiry sweeper and outbox dispatcher until
// ctx is done or SIGINT/SIGTERM arrives.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server listening", zap.String("addr", a.httpServer.Addr))
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.services.Sweeper.Run(gCtx)
	})

	g.Go(func() error {
		return a.dispatcher.Run(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("shutting down HTTP server")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return a.httpServer.Shutdown(ctx)
	})

	return g.Wait()
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close", zap.Error(err))
		}
	}
	a.closers = nil
}
