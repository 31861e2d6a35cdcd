/*
scheduler.go - Periodic ledger consistency check

PURPOSE:
  Replays every account's chain on an interval and logs any account whose
  cached balance, tail closing balance, or opening/closing links disagree.
  The last run is kept for GET /api/consistency.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Checks once immediately on Start
  - Only reads: inconsistent accounts are reported, never repaired.
    Repair is an explicit POST /api/accounts/{id}/repair.

CONFIGURATION:
  - ledger.consistency_interval: How often to check (default: 1 hour,
    0 disables the scheduler)

USAGE:
  scheduler := NewConsistencyScheduler(engine, time.Hour)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: CheckConsistency endpoint (on-demand check)
  - ledger/reconcile.go: Replay rules
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/books/ledger"
)

// ConsistencyRun is the outcome of one scheduled check.
type ConsistencyRun struct {
	StartedAt    time.Time
	Duration     time.Duration
	Inconsistent []ledger.ReconcileReport
	Err          error
}

// ConsistencyScheduler periodically reconciles every account.
type ConsistencyScheduler struct {
	engine   *ledger.Engine
	interval time.Duration
	logger   *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	last    ConsistencyRun
	hasLast bool
}

// NewConsistencyScheduler creates a scheduler. It does nothing until Start.
func NewConsistencyScheduler(engine *ledger.Engine, interval time.Duration) *ConsistencyScheduler {
	return &ConsistencyScheduler{
		engine:   engine,
		interval: interval,
		logger:   engine.Logger().With("component", "consistency"),
	}
}

// Start begins the scheduler. A non-positive interval leaves it stopped.
func (cs *ConsistencyScheduler) Start() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.interval <= 0 {
		cs.logger.Info("scheduler disabled")
		return
	}
	if cs.ticker != nil {
		return
	}

	cs.ticker = time.NewTicker(cs.interval)
	cs.stop = make(chan struct{})
	cs.wg.Add(1)

	go cs.run(cs.ticker, cs.stop)

	cs.logger.Info("scheduler started", "interval", cs.interval)
}

// Stop stops the scheduler and waits for an in-flight check to finish.
func (cs *ConsistencyScheduler) Stop() {
	cs.mu.Lock()
	if cs.ticker == nil {
		cs.mu.Unlock()
		return
	}
	cs.ticker.Stop()
	close(cs.stop)
	cs.ticker = nil
	cs.mu.Unlock()

	cs.wg.Wait()
	cs.logger.Info("scheduler stopped")
}

func (cs *ConsistencyScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer cs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-stop
		cancel()
	}()

	cs.check(ctx)
	for {
		select {
		case <-ticker.C:
			cs.check(ctx)
		case <-stop:
			return
		}
	}
}

// RunNow performs one check immediately and returns its outcome.
func (cs *ConsistencyScheduler) RunNow(ctx context.Context) ConsistencyRun {
	return cs.check(ctx)
}

// LastRun returns the most recent check, if any has completed.
func (cs *ConsistencyScheduler) LastRun() (ConsistencyRun, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.last, cs.hasLast
}

func (cs *ConsistencyScheduler) check(ctx context.Context) ConsistencyRun {
	run := ConsistencyRun{StartedAt: time.Now()}
	run.Inconsistent, run.Err = cs.engine.CheckConsistency(ctx)
	run.Duration = time.Since(run.StartedAt)

	switch {
	case run.Err != nil:
		cs.logger.ErrorContext(ctx, "consistency check failed", "error", run.Err)
	case len(run.Inconsistent) > 0:
		for _, rep := range run.Inconsistent {
			cs.logger.WarnContext(ctx, "account inconsistent",
				"account_id", rep.AccountID,
				"cached", rep.Cached.StringFixed(ledger.MoneyPlaces),
				"ledger", rep.LedgerTail.StringFixed(ledger.MoneyPlaces),
				"replayed", rep.Replayed.StringFixed(ledger.MoneyPlaces),
				"breaks", len(rep.Breaks))
		}
	default:
		cs.logger.DebugContext(ctx, "consistency check passed", "duration", run.Duration)
	}

	cs.mu.Lock()
	cs.last, cs.hasLast = run, true
	cs.mu.Unlock()
	return run
}

func toRunDTO(run ConsistencyRun) *RunDTO {
	dto := &RunDTO{
		StartedAt:    timestamp(run.StartedAt),
		DurationMS:   run.Duration.Milliseconds(),
		Inconsistent: len(run.Inconsistent),
	}
	if run.Err != nil {
		dto.Error = run.Err.Error()
	}
	return dto
}
