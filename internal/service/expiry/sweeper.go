// Package expiry drives pending reservations past their hold to expired.
package expiry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/tix-reserve/internal/clock"
	"github.com/kirinyoku/tix-reserve/internal/repository"
)

// Expirer is satisfied by reservation.Service.
type Expirer interface {
	Expire(ctx context.Context, id uuid.UUID) (bool, error)
}

type Config struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
}

type Sweeper struct {
	reservations repository.ReservationRepository
	expirer      Expirer
	clock        clock.Clock
	logger       *zap.Logger
	cfg          Config
}

func New(
	reservations repository.ReservationRepository,
	expirer Expirer,
	clk clock.Clock,
	logger *zap.Logger,
	cfg Config,
) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}

	return &Sweeper{
		reservations: reservations,
		expirer:      expirer,
		clock:        clk,
		logger:       logger,
		cfg:          cfg,
	}
}

// Result summarizes one sweep.
type Result struct {
	Scanned int
	Expired int
	Skipped int
	Failed  int
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("expiry sweeper started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Int("batch_size", s.cfg.BatchSize),
	)

	t := time.NewTicker(s.cfg.Interval)
	defer t.Stop()

	for {
		if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("expiry sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return nil
		case <-t.C:
		}
	}
}

// SweepOnce expires one batch of overdue reservations. Each reservation is
// handled on its own; a failure is logged and counted and does not stop
// the rest of the batch.
func (s *Sweeper) SweepOnce(ctx context.Context) (Result, error) {
	const op = "expiry.Sweeper.SweepOnce"

	due, err := s.reservations.ListExpiredPending(ctx, s.clock.Now(), s.cfg.BatchSize)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	var expired, skipped, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, r := range due {
		id := r.ID
		g.Go(func() error {
			ok, err := s.expirer.Expire(gctx, id)
			switch {
			case err != nil:
				failed.Add(1)
				s.logger.Warn("expire reservation", zap.String("reservation_id", id.String()), zap.Error(err))
			case ok:
				expired.Add(1)
			default:
				skipped.Add(1)
			}
			return nil
		})
	}

	_ = g.Wait()

	res := Result{
		Scanned: len(due),
		Expired: int(expired.Load()),
		Skipped: int(skipped.Load()),
		Failed:  int(failed.Load()),
	}

	if res.Scanned > 0 {
		s.logger.Info("expiry sweep",
			zap.Int("scanned", res.Scanned),
			zap.Int("expired", res.Expired),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed),
		)
	}

	return res, ctx.Err()
}
