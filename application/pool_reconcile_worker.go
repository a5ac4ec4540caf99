package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"apocaliptyx/infrastructure/observability"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// PoolRecalculator is the part of ScenarioService the worker drives
type PoolRecalculator interface {
	RecalculateAllActive(ctx context.Context, trigger string) (recalculated, failed int, err error)
}

// PoolReconcileWorker periodically rebuilds the pools of every active
// scenario so drift from missed recalculations heals on its own
type PoolReconcileWorker struct {
	cron         *cron.Cron
	schedule     string
	recalculator PoolRecalculator
	runTimeout   time.Duration

	mu      sync.Mutex
	running bool

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewPoolReconcileWorker creates a worker for a six-field cron schedule
// (seconds first)
func NewPoolReconcileWorker(recalculator PoolRecalculator, schedule string) *PoolReconcileWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &PoolReconcileWorker{
		cron:         cron.New(cron.WithSeconds()),
		schedule:     schedule,
		recalculator: recalculator,
		runTimeout:   5 * time.Minute,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start registers the job and starts the scheduler
func (w *PoolReconcileWorker) Start() error {
	if _, err := w.cron.AddFunc(w.schedule, w.tick); err != nil {
		return fmt.Errorf("invalid pool recalculation schedule %q: %w", w.schedule, err)
	}

	w.cron.Start()
	log.WithField("schedule", w.schedule).Info("Pool reconcile worker started")
	return nil
}

// Stop cancels any run in progress and waits for the scheduler to finish
func (w *PoolReconcileWorker) Stop() {
	log.Info("Stopping pool reconcile worker")
	w.cancel()
	<-w.cron.Stop().Done()
}

// RunOnce recalculates every active scenario immediately
func (w *PoolReconcileWorker) RunOnce(ctx context.Context) (recalculated, failed int, err error) {
	defer observability.GetMetrics().MeasureOperation("pool_reconcile")()

	recalculated, failed, err = w.recalculator.RecalculateAllActive(ctx, observability.RecalcTriggerSchedule)
	log.WithFields(log.Fields{
		"recalculated": recalculated,
		"failed":       failed,
	}).Info("Pool reconcile run finished")
	return recalculated, failed, err
}

func (w *PoolReconcileWorker) tick() {
	// Skip overlapping runs
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		log.Warn("Previous pool reconcile run still in progress, skipping")
		return
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(w.ctx, w.runTimeout)
	defer cancel()

	if _, _, err := w.RunOnce(ctx); err != nil {
		log.WithError(err).Error("Pool reconcile run failed")
	}
}
