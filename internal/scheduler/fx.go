package scheduler

import (
	"context"
	"time"

	"github.com/smallbiznis/tenor/internal/clock"
	"github.com/smallbiznis/tenor/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Worker drives the charge scheduler on a fixed interval for the lifetime of
// the process.
type Worker struct {
	scheduler *Scheduler
	clock     clock.Clock
	log       *zap.Logger
	cfg       Config

	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(scheduler *Scheduler, clk clock.Clock, log *zap.Logger) *Worker {
	return &Worker{
		scheduler: scheduler,
		clock:     clk,
		log:       log.Named("scheduler.worker"),
		cfg:       scheduler.cfg,
	}
}

// RunForever runs one pass immediately, then one per poll interval until the
// context is canceled.
func (w *Worker) RunForever(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	if _, err := w.scheduler.Run(ctx, w.clock.Now()); err != nil {
		w.log.Error("charge pass failed", zap.Error(err))
	}
}

func fromChargeJobConfig(cfg config.ChargeJobConfig) Config {
	return Config{
		BatchSize:     cfg.BatchSize,
		Workers:       cfg.Workers,
		ChargeTimeout: cfg.ChargeTimeout,
		PollInterval:  cfg.PollInterval,
	}.withDefaults()
}

var Module = fx.Module("scheduler",
	fx.Provide(func(cfg config.Config) Config {
		return fromChargeJobConfig(cfg.ChargeJob)
	}),
	fx.Provide(NewScheduler),
	fx.Provide(NewWorker),
	fx.Invoke(registerWorker),
)

func registerWorker(lc fx.Lifecycle, cfg config.Config, worker *Worker, log *zap.Logger) {
	if !cfg.ChargeJob.Enabled {
		log.Info("charge job disabled, scheduler worker not started")
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, cancel := context.WithCancel(context.Background())
			worker.cancel = cancel
			worker.done = make(chan struct{})
			go func() {
				defer close(worker.done)
				worker.RunForever(runCtx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if worker.cancel == nil {
				return nil
			}
			worker.cancel()
			select {
			case <-worker.done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
