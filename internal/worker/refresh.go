// Package worker runs the periodic auto-refresh: the flag ledger and the
// current leaderboard page are re-fetched on an interval so every view
// converges with server-side state changed out of band.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ctfquest/internal/config"
	"github.com/ctfquest/internal/domain"
)

// Target is the engine surface the worker refreshes.
type Target interface {
	SignedIn() bool
	ReloadLedger(ctx context.Context) error
	RefreshLeaderboard(ctx context.Context) error
}

// RefreshWorker re-fetches game state on a fixed interval.
type RefreshWorker struct {
	target  Target
	config  *config.RefreshConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewRefreshWorker creates a refresh worker.
func NewRefreshWorker(target Target, cfg *config.RefreshConfig, logger *slog.Logger) *RefreshWorker {
	return &RefreshWorker{
		target: target,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background refresh loop.
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("refresh worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background refresh loop.
func (w *RefreshWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("refresh worker stopped")
	return nil
}

// run is the main worker loop.
func (w *RefreshWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

// refresh runs one refresh cycle. Connectivity and stale-response failures
// are absorbed; the next tick retries.
func (w *RefreshWorker) refresh(ctx context.Context) {
	start := time.Now()

	if w.target.SignedIn() {
		if err := w.target.ReloadLedger(ctx); err != nil {
			w.logger.Warn("periodic ledger reload failed", "error", err)
		}
	}

	if err := w.target.RefreshLeaderboard(ctx); err != nil && !domain.IsStale(err) {
		w.logger.Warn("periodic leaderboard refresh failed", "error", err)
	}

	w.logger.Debug("refresh cycle completed", "duration", time.Since(start))
}

// IsRunning returns whether the worker is currently running.
func (w *RefreshWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// RunOnce runs a single refresh cycle (useful for manual triggers).
func (w *RefreshWorker) RunOnce(ctx context.Context) {
	w.refresh(ctx)
}
