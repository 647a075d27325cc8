// Package trigger serializes the events that start a reconciliation run:
// startup, explicit kicks, ledger-change signals, and an optional poll tick.
package trigger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/thkim0515/gagyebu/internal/apperr"
	"github.com/thkim0515/gagyebu/internal/bridge"
	"github.com/thkim0515/gagyebu/internal/models"
	"github.com/thkim0515/gagyebu/internal/recon"
)

// Scheduler funnels every trigger source through one loop into the engine.
// A trigger that lands while a run is active is dropped, not queued; the
// pending notifications stay at the bridge until the next trigger.
type Scheduler struct {
	engine *recon.Engine
	bridge bridge.Bridge
	logger *slog.Logger

	kickCh chan struct{}
	poll   time.Duration
}

// New creates a scheduler. poll <= 0 disables periodic polling.
func New(engine *recon.Engine, br bridge.Bridge, poll time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		engine: engine,
		bridge: br,
		logger: logger,
		kickCh: make(chan struct{}, 1),
		poll:   poll,
	}
}

// Trigger requests a run. It never blocks: when a kick is already pending
// the two collapse into one.
func (s *Scheduler) Trigger() {
	select {
	case s.kickCh <- struct{}{}:
	default:
	}
}

// OnLedgerChanged is the store-subscription hook: any committed write
// requests a run, mirroring the app's "db updated" re-sync.
func (s *Scheduler) OnLedgerChanged([]models.Record) {
	s.Trigger()
}

// Run executes the trigger loop until ctx is cancelled. An initial run is
// attempted immediately on startup.
func (s *Scheduler) Run(ctx context.Context) error {
	var tick <-chan time.Time
	if s.poll > 0 {
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()
		tick = ticker.C
	}

	s.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("trigger: scheduler stopped")
			return nil
		case <-s.kickCh:
			s.runOnce(ctx)
		case <-tick:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if !s.bridge.HasAccess() {
		s.logger.Debug("trigger: no notification access")
		return
	}
	batch := s.bridge.Pending()
	if len(batch) == 0 {
		return
	}

	err := s.engine.Run(ctx, batch)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrBusy):
		// Dropped by design; the batch stays queued at the bridge.
		s.logger.Debug("trigger: run already active, dropped")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
	default:
		s.logger.Error("trigger: run failed", slog.String("error", err.Error()))
	}
}
