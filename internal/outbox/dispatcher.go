// Package outbox delivers notifications committed to the outbox table to
// downstream publishers.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/kirinyoku/tix-reserve/internal/clock"
	"github.com/kirinyoku/tix-reserve/internal/repository"
)

type Config struct {
	PollInterval time.Duration
	BatchSize    int
}

// Dispatcher polls the outbox and publishes pending records in append
// order. A failed record stops its batch so later records are never
// delivered ahead of it.
type Dispatcher struct {
	store     repository.Store
	publisher Publisher
	clock     clock.Clock
	logger    *zap.Logger
	tracer    trace.Tracer
	cfg       Config

	wake chan struct{}
}

func NewDispatcher(
	store repository.Store,
	publisher Publisher,
	clk clock.Clock,
	logger *zap.Logger,
	cfg Config,
) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}

	return &Dispatcher{
		store:     store,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
		tracer:    otel.Tracer("tix-reserve/outbox"),
		cfg:       cfg,
		wake:      make(chan struct{}, 1),
	}
}

// Notify asks the dispatcher to poll now. It never blocks.
func (d *Dispatcher) Notify() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Run dispatches until ctx is done, polling on an interval and whenever
// Notify is called.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("outbox dispatcher started", zap.Duration("poll_interval", d.cfg.PollInterval))

	t := time.NewTicker(d.cfg.PollInterval)
	defer t.Stop()

	for {
		d.drain(ctx)

		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return nil
		case <-t.C:
		case <-d.wake:
		}
	}
}

// drain keeps dispatching while full batches are coming back.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		n, err := d.DispatchOnce(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				d.logger.Error("outbox dispatch failed", zap.Error(err))
			}
			return
		}
		if n < d.cfg.BatchSize {
			return
		}
	}
}

// DispatchOnce publishes up to one batch and returns how many records were
// marked dispatched.
func (d *Dispatcher) DispatchOnce(ctx context.Context) (int, error) {
	const op = "outbox.Dispatcher.DispatchOnce"

	ctx, span := d.tracer.Start(ctx, "outbox.dispatch")
	defer span.End()

	var sent int

	err := d.store.RunTx(ctx, func(ctx context.Context, tx repository.Repos) error {
		sent = 0

		recs, err := tx.Outbox().FetchPending(ctx, d.cfg.BatchSize)
		if err != nil {
			return err
		}

		for _, rec := range recs {
			if err := d.publisher.Publish(ctx, newMessage(rec.Notification)); err != nil {
				d.logger.Warn("publish notification",
					zap.String("id", rec.ID.String()),
					zap.String("type", string(rec.Type)),
					zap.Int("attempts", rec.Attempts+1),
					zap.Error(err),
				)
				return tx.Outbox().MarkFailed(ctx, rec.ID, err.Error())
			}

			if err := tx.Outbox().MarkDispatched(ctx, rec.ID, d.clock.Now()); err != nil {
				return err
			}
			sent++
		}

		return nil
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	span.SetAttributes(attribute.Int("outbox.dispatched", sent))
	return sent, nil
}
