// Package scheduler fires the sync orchestrator once per hour at minute 0.
// Each tick opens a fresh persistence handle so a failed pool never wedges
// the long-lived daemon.
package scheduler

import (
	"context"

	"github.com/calvella/bucketsync/internal/port"
	"github.com/calvella/bucketsync/internal/syncer"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// hourlySpec uses the 6-field (seconds-first) form: on the hour, every hour.
const hourlySpec = "0 0 * * * *"

// Scheduler owns the cron loop. The returned handle must be kept alive;
// Stop ends future ticks while in-flight ones run to completion.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New wires the hourly job. stores is invoked at every tick; a store that
// fails to open skips only that tick.
func New(sync *syncer.Syncer, stores port.StoreFactory, logger *zap.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithSeconds())

	_, err := c.AddFunc(hourlySpec, func() {
		runTick(context.Background(), sync, stores, logger)
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c, logger: logger}, nil
}

// Start arms the cron loop.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler armed", zap.String("spec", hourlySpec))
	s.cron.Start()
}

// Stop ends scheduling. The returned context is done once in-flight jobs
// have completed; callers wait on it for a clean shutdown.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// runTick opens a fresh store, runs one sync and closes the store again.
func runTick(ctx context.Context, sync *syncer.Syncer, stores port.StoreFactory, logger *zap.Logger) {
	store, err := stores(ctx)
	if err != nil {
		logger.Error("failed to open store for scheduled run", zap.Error(err))
		return
	}
	defer store.Close()

	sync.Run(ctx, store)
}
