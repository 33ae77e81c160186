package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/drivelink/internal/core/ports/driven"
	"github.com/custodia-labs/drivelink/internal/core/ports/driving"
)

// SyncLockName is the lease that keeps periodic syncs on one instance.
const SyncLockName = "drivelink:sync-all"

// Worker runs the periodic background jobs: sweeping consumed nonces and,
// when enabled, syncing every linked account.
type Worker struct {
	ledger driven.NonceLedger
	sync   driving.SyncService
	lock   driven.DistributedLock
	logger *slog.Logger

	sweepInterval time.Duration
	syncInterval  time.Duration
	lockTTL       time.Duration

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	Ledger driven.NonceLedger
	Sync   driving.SyncService    // Optional: nil disables periodic sync
	Lock   driven.DistributedLock // Optional: nil runs every sync cycle locally
	Logger *slog.Logger

	SweepInterval time.Duration // Nonce cleanup period (default: 1h)
	SyncInterval  time.Duration // 0 disables periodic sync
	LockTTL       time.Duration // Sync lease TTL (default: 10m)
}

// NewWorker creates a new background worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sweepInterval := cfg.SweepInterval
	if sweepInterval <= 0 {
		sweepInterval = time.Hour
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 10 * time.Minute
	}

	return &Worker{
		ledger:        cfg.Ledger,
		sync:          cfg.Sync,
		lock:          cfg.Lock,
		logger:        logger,
		sweepInterval: sweepInterval,
		syncInterval:  cfg.SyncInterval,
		lockTTL:       lockTTL,
	}
}

// Start launches the job loops.
// They run until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	syncEnabled := w.sync != nil && w.syncInterval > 0
	w.logger.Info("worker starting",
		"sweep_interval", w.sweepInterval,
		"sync_enabled", syncEnabled,
		"sync_interval", w.syncInterval,
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.loop(ctx, "nonce_sweep", w.sweepInterval, w.sweep)
	}()

	if syncEnabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx, "sync_all", w.syncInterval, w.syncAll)
		}()
	}

	go func() {
		wg.Wait()
		close(w.doneCh)
	}()

	return nil
}

// Stop gracefully stops the worker and waits for running jobs.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// Wait blocks until the worker stops.
func (w *Worker) Wait() {
	w.mu.RLock()
	done := w.doneCh
	w.mu.RUnlock()
	if done != nil {
		<-done
	}
}

func (w *Worker) loop(ctx context.Context, job string, interval time.Duration, run func(context.Context)) {
	logger := w.logger.With("job", job)
	logger.Debug("job loop started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			run(ctx)
		}
	}
}

// sweep drops nonces old enough that their states have expired anyway.
func (w *Worker) sweep(ctx context.Context) {
	start := time.Now()
	if err := w.ledger.Cleanup(ctx); err != nil {
		w.logger.Error("nonce cleanup failed", "error", err)
		return
	}
	w.logger.Debug("nonce cleanup finished", "duration", time.Since(start))
}

// syncAll runs one sync cycle over every account. With a lock configured the
// cycle is skipped unless this instance takes the lease.
func (w *Worker) syncAll(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if w.lock != nil {
		acquired, err := w.lock.Acquire(ctx, SyncLockName, w.lockTTL)
		if err != nil {
			w.logger.Warn("failed to acquire sync lock", "error", err)
			return
		}
		if !acquired {
			w.logger.Debug("sync lock held by another instance, skipping cycle")
			return
		}
		defer func() {
			if err := w.lock.Release(context.WithoutCancel(ctx), SyncLockName); err != nil {
				w.logger.Warn("failed to release sync lock", "error", err)
			}
		}()

		heartbeatDone := make(chan struct{})
		go func() {
			defer close(heartbeatDone)
			w.keepLease(ctx, cancel)
		}()
		// Stop the heartbeat before the deferred release runs.
		defer func() {
			cancel()
			<-heartbeatDone
		}()
	}

	start := time.Now()
	results, err := w.sync.SyncAll(ctx)
	if err != nil {
		w.logger.Error("sync cycle failed", "error", err)
		return
	}

	failed := 0
	for _, r := range results {
		if r.Error != "" {
			failed++
			w.logger.Warn("account sync failed", "account_id", r.AccountID, "error", r.Error)
		}
	}
	w.logger.Info("sync cycle finished",
		"accounts", len(results),
		"failed", failed,
		"duration", time.Since(start),
	)
}

// keepLease extends the sync lease at a third of its TTL until ctx ends.
// Losing the lease cancels the cycle so two instances never sync at once.
func (w *Worker) keepLease(ctx context.Context, cancel context.CancelFunc) {
	ticker := time.NewTicker(max(w.lockTTL/3, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.lock.Extend(ctx, SyncLockName, w.lockTTL); err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Error("lost sync lock, cancelling cycle", "error", err)
				cancel()
				return
			}
		}
	}
}

// Health describes the worker state.
type Health struct {
	Running    bool   `json:"running"`
	LockHealth bool   `json:"lock_health"`
	Error      string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{Running: running, LockHealth: true}
	if w.lock != nil {
		if err := w.lock.Ping(ctx); err != nil {
			health.LockHealth = false
			health.Error = err.Error()
		}
	}
	return health
}
